package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath  string
	envFile     string
	sessionName string
	verbose     bool
	metricsAddr string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "questionforge",
		Short: "QuestionForge - interactive exam question generation client",
		Long: `QuestionForge submits course material to the question-generation service,
tracks the generation job and lets you refine the question with feedback
until you accept it as final.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to environment file")
	flags.StringVar(&sessionName, "session", "", "Session to operate on (default: latest)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(
		newSubmitCmd(),
		newStatusCmd(),
		newRegenerateCmd(),
		newFinalizeCmd(),
		newResetCmd(),
		newShowCmd(),
		newSessionCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

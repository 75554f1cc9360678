package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lamim/questionforge/internal/checkpoint"
	"github.com/lamim/questionforge/internal/config"
	"github.com/lamim/questionforge/internal/render"
	"github.com/lamim/questionforge/internal/writer"
)

func newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved sessions",
		Long:  "List and inspect the sessions saved under the state directory",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all saved sessions",
		Args:  cobra.NoArgs,
		RunE:  listSessions,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <session>",
		Short: "Inspect a saved session",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectSession,
	}

	sessionCmd.AddCommand(listCmd, inspectCmd)
	return sessionCmd
}

// listSessions lists all sessions with their job status
func listSessions(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := writer.NewConsoleLogger(logLevel())

	names, err := writer.ListSessions(cfg.Session.StateDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No sessions found. Submit a document first.")
		return nil
	}

	fmt.Fprintf(out, "%-32s %-28s %-38s %s\n", "SESSION", "STATUS", "JOB ID", "ATTEMPTS")
	fmt.Fprintln(out, strings.Repeat("-", 110))
	for _, name := range names {
		status, jobID, attempts := "N/A", "-", "-"
		if st, err := checkpoint.Load(filepath.Join(cfg.Session.StateDir, name), logger); err == nil {
			status = render.StatusLabel(st.Job.Status)
			if st.Job.ID != "" {
				jobID = st.Job.ID
			}
			attempts = checkpoint.AttemptsSummary(st)
		}
		fmt.Fprintf(out, "%-32s %-28s %-38s %s\n", name, status, jobID, attempts)
	}
	return nil
}

// inspectSession displays the saved state of one session
func inspectSession(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	// Validate session path to prevent path traversal (CWE-22)
	if err := writer.ValidateSessionPath(cfg.Session.StateDir, name); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	logger := writer.NewConsoleLogger(logLevel())
	sm, err := writer.OpenSessionManager(cfg.Session.StateDir, name, logger)
	if err != nil {
		return err
	}
	st, err := checkpoint.Load(sm.GetSessionDir(), logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session Information for: %s\n", name)
	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintf(out, "Session ID:          %s\n", st.SessionID)
	fmt.Fprintf(out, "Created At:          %s\n", st.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Last Saved At:       %s\n", st.LastSavedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Service:             %s\n", st.BaseURL)
	fmt.Fprintf(out, "Config Hash:         %s\n", st.ConfigHash)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Job:")
	fmt.Fprintf(out, "  Job ID:            %s\n", st.Job.ID)
	fmt.Fprintf(out, "  Document:          %s\n", st.Job.OriginalFilename)
	fmt.Fprintf(out, "  Status:            %s\n", render.StatusLabel(st.Job.Status))
	fmt.Fprintf(out, "  Attempts:          %s\n", checkpoint.AttemptsSummary(st))
	if st.Params.TaxonomyLevel != "" {
		fmt.Fprintf(out, "  Course:            %s (%s)\n", st.Params.CourseName, st.Params.AcademicLevel)
		fmt.Fprintf(out, "  Taxonomy Level:    %s, %s marks\n", st.Params.TaxonomyLevel, st.Params.MarksForQuestion)
	}
	fmt.Fprintln(out)

	if results, err := writer.ReadResults(sm.GetResultsPath()); err != nil {
		logger.Warn("Failed to read results", "path", sm.GetResultsPath(), "error", err)
	} else {
		fmt.Fprintf(out, "Completed Questions: %d\n\n", len(results))
	}

	if err := checkpoint.ValidateState(st, cfg); err != nil {
		fmt.Fprintf(out, "This session cannot be resumed with the current configuration: %v\n", err)
		return nil
	}
	switch {
	case checkpoint.NeedsPolling(st):
		fmt.Fprintln(out, "The service is still working on this job. To follow it, run:")
		fmt.Fprintf(out, "  questionforge status --watch --session %s\n", name)
	case st.Job.Status.IsInteractive():
		fmt.Fprintln(out, "This job is waiting for your feedback. Run:")
		fmt.Fprintf(out, "  questionforge regenerate --feedback \"...\" --session %s\n", name)
		fmt.Fprintf(out, "  questionforge finalize --session %s\n", name)
	case st.Job.Status.IsTerminal():
		fmt.Fprintln(out, "This session is finished.")
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			data, err := config.Marshal(config.Default())
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}

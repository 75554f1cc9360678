package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamim/questionforge/internal/checkpoint"
	"github.com/lamim/questionforge/internal/orchestrator"
	"github.com/lamim/questionforge/internal/render"
	"github.com/lamim/questionforge/internal/writer"
	"github.com/lamim/questionforge/pkg/models"
)

// statusWaitSlack is added to the HTTP timeout when waiting for a single poll
const statusWaitSlack = 5 * time.Second

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type submitFlags struct {
	file                string
	wait                bool
	academicLevel       string
	major               string
	courseName          string
	taxonomyLevel       string
	marks               string
	topics              string
	retrievalLimit      int
	similarityThreshold float64
	diagrams            bool
}

func newSubmitCmd() *cobra.Command {
	var f submitFlags
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a PDF and start a new question generation job",
		Long: `Upload a PDF with the generation settings and start a new session.
Settings default to the [generation] section of the configuration file;
flags override individual fields.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "PDF document to upload")
	fl.BoolVar(&f.wait, "wait", false, "Wait until the first question is ready")
	fl.StringVar(&f.academicLevel, "academic-level", "", "Academic level")
	fl.StringVar(&f.major, "major", "", "Major")
	fl.StringVar(&f.courseName, "course", "", "Course name")
	fl.StringVar(&f.taxonomyLevel, "taxonomy-level", "", "Bloom's taxonomy level (Remember|Understand|Apply|Analyze|Evaluate|Create)")
	fl.StringVar(&f.marks, "marks", "", "Marks for the question (5|10|15|20)")
	fl.StringVar(&f.topics, "topics", "", "Comma separated topics")
	fl.IntVar(&f.retrievalLimit, "retrieval-limit", 0, "Number of context snippets retrieved for generation")
	fl.Float64Var(&f.similarityThreshold, "similarity-threshold", 0, "Minimum snippet similarity (0-1)")
	fl.BoolVar(&f.diagrams, "diagrams", false, "Ask the service to generate diagrams")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// submitParams overlays the flags the user set on the configured defaults
func submitParams(cmd *cobra.Command, f submitFlags, defaults models.GenerationParams) models.GenerationParams {
	p := defaults
	fl := cmd.Flags()
	if fl.Changed("academic-level") {
		p.AcademicLevel = f.academicLevel
	}
	if fl.Changed("major") {
		p.Major = f.major
	}
	if fl.Changed("course") {
		p.CourseName = f.courseName
	}
	if fl.Changed("taxonomy-level") {
		p.TaxonomyLevel = f.taxonomyLevel
	}
	if fl.Changed("marks") {
		p.MarksForQuestion = f.marks
	}
	if fl.Changed("topics") {
		p.TopicsList = f.topics
	}
	if fl.Changed("retrieval-limit") {
		p.RetrievalLimitGeneration = f.retrievalLimit
	}
	if fl.Changed("similarity-threshold") {
		p.SimilarityThresholdGeneration = f.similarityThreshold
	}
	if fl.Changed("diagrams") {
		p.GenerateDiagrams = f.diagrams
	}
	return p
}

func runSubmit(cmd *cobra.Command, f submitFlags) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	params := submitParams(cmd, f, a.cfg.Generation)
	jobID, err := a.session.Submit(ctx, f.file, params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s submitted (session %s)\n", jobID, a.sessionMgr.Name())
	if !f.wait {
		fmt.Fprintln(out, "Follow progress with: questionforge status --watch")
		return nil
	}

	if err := waitForJob(ctx, a.session); err != nil {
		return interrupted(err, a.sessionMgr.Name())
	}
	fmt.Fprintln(out)
	return printJob(out, a.session)
}

func newStatusCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch the current job status from the service",
		Long: `Fetch the job status once, or with --watch keep polling until the job
needs your feedback, completes or fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			job := a.session.Job()
			switch {
			case job.ID == "":
				// nothing to fetch
			case watch:
				if err := a.session.Watch(); err != nil {
					return err
				}
				if err := waitForJob(ctx, a.session); err != nil {
					return interrupted(err, a.sessionMgr.Name())
				}
			case a.session.Polling():
				// Resume already issued the first fetch
				waitForChange(ctx, a.session, a.cfg.Server.HTTPTimeout()+statusWaitSlack)
			default:
				if err := a.session.Refresh(ctx); err != nil {
					a.logger.Warn("Status refresh failed", "job_id", job.ID, "error", err)
				}
			}
			return printJob(cmd.OutOrStdout(), a.session)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until the job settles")
	return cmd
}

func newRegenerateCmd() *cobra.Command {
	var (
		feedback string
		wait     bool
	)
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate the current question using your feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			// A superseded response means the service took the feedback; polling catches up
			err = a.session.Regenerate(ctx, feedback)
			superseded := errors.Is(err, orchestrator.ErrSuperseded)
			if err != nil && !superseded {
				return err
			}
			if (wait || superseded) && a.session.Polling() {
				if err := waitForJob(ctx, a.session); err != nil {
					return interrupted(err, a.sessionMgr.Name())
				}
			}
			return printJob(cmd.OutOrStdout(), a.session)
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "What should change in the question")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait if the service regenerates in the background")
	_ = cmd.MarkFlagRequired("feedback")
	return cmd
}

func newFinalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize",
		Short: "Accept the current question as final",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.Finalize(ctx); err != nil && !errors.Is(err, orchestrator.ErrSuperseded) {
				return err
			}
			if a.session.Polling() {
				if err := waitForJob(ctx, a.session); err != nil {
					return interrupted(err, a.sessionMgr.Name())
				}
			}
			if err := printJob(cmd.OutOrStdout(), a.session); err != nil {
				return err
			}
			if a.session.Job().Status == models.StatusCompleted {
				fmt.Fprintf(cmd.OutOrStdout(), "\nSaved to %s\n", a.sessionMgr.GetResultsPath())
			}
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the session's job and start over",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			a.session.Reset()
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s reset.\n", a.sessionMgr.Name())
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var tmpl string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the saved job without contacting the service",
		Long: `Show the job as last saved in the session. --template renders a Go
text/template against the prepared view (fields such as .JobID, .StatusLabel,
.Question, .Attempts, .AttemptsLeft, .Evaluation and .Final).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			logger := writer.NewConsoleLogger(logLevel())
			sm, err := writer.OpenSessionManager(cfg.Session.StateDir, sessionName, logger)
			if err != nil {
				return err
			}
			st, err := checkpoint.Load(sm.GetSessionDir(), logger)
			if err != nil {
				return err
			}

			var out string
			if tmpl != "" {
				out, err = render.Custom(tmpl, st.Job)
			} else {
				out, err = render.Job(st.Job)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&tmpl, "template", "", "Go template rendered against the job view")
	return cmd
}

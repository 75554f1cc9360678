package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/lamim/questionforge/internal/orchestrator"
	"github.com/lamim/questionforge/internal/render"
)

const spinnerRefresh = 150 * time.Millisecond

// waitForJob shows a spinner until the session settles or ctx ends
func waitForJob(ctx context.Context, sess *orchestrator.Session) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(render.Progress(sess.Job())),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	settled := make(chan error, 1)
	go func() { settled <- sess.WaitSettled(ctx) }()

	ticker := time.NewTicker(spinnerRefresh)
	defer ticker.Stop()
	for {
		select {
		case err := <-settled:
			return err
		case <-ticker.C:
			bar.Describe(render.Progress(sess.Job()))
			_ = bar.Add(1)
		}
	}
}

// waitForChange blocks until the session reports its next change or timeout elapses
func waitForChange(ctx context.Context, sess *orchestrator.Session, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-sess.Changed():
	case <-ctx.Done():
	}
}

// interrupted turns a cancelled wait into a hint for picking the job up again
func interrupted(err error, session string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("stopped waiting; resume with: questionforge status --watch --session %s", session)
	}
	return err
}

// printJob renders the session's job and any pending error message
func printJob(w io.Writer, sess *orchestrator.Session) error {
	out, err := render.Job(sess.Job())
	if err != nil {
		return err
	}
	fmt.Fprint(w, out)
	if sess.HasError() {
		fmt.Fprintf(os.Stderr, "\nError: %s\n", sess.ErrorMessage())
	}
	return nil
}

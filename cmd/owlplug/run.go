package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/owlplug/owlplug-engine/internal/task"
)

// runForeground executes t on the calling goroutine and prints its progress
// to out as "[current/total] message" lines. SIGINT and SIGTERM cancel it
// cooperatively.
func runForeground(ctx context.Context, out io.Writer, t task.Task) error {
	if globalRunner == nil {
		return fmt.Errorf("task runner not initialized")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	err := globalRunner.Run(ctx, t, func(h *task.Handle) {
		if quiet {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			printProgress(out, h.Tracker())
		}()
	})
	wg.Wait()
	return err
}

// printProgress prints a line whenever the message or step of tr changes,
// until the unit of work finishes.
func printProgress(out io.Writer, tr *task.Tracker) {
	var last task.Status
	for {
		updated := tr.Wait()
		s := tr.Snapshot()
		if s.Message != "" && (s.Message != last.Message || s.Current != last.Current || s.Total != last.Total) {
			fmt.Fprintf(out, "[%d/%d] %s\n", s.Current, s.Total, s.Message)
		}
		last = s
		if s.Phase.Done() {
			return
		}
		<-updated
	}
}

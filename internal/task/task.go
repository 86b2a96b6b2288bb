// Package task runs cancellable, progress-reporting units of work on a
// bounded worker pool and records every run.
package task

import "context"

// Task is a unit of work.
type Task interface {
	// Name is a human-readable description, e.g. "Install Dexed".
	Name() string
	// Kind groups runs for listing and metrics, e.g. "install".
	Kind() string
	Run(ctx context.Context, p *Progress) error
}

// Func adapts a function to the Task interface.
type Func struct {
	TaskName string
	TaskKind string
	Fn       func(ctx context.Context, p *Progress) error
}

func (f Func) Name() string { return f.TaskName }
func (f Func) Kind() string { return f.TaskKind }

func (f Func) Run(ctx context.Context, p *Progress) error {
	return f.Fn(ctx, p)
}

package filesync

import (
	"context"

	"github.com/owlplug/owlplug-engine/internal/task"
)

// Task runs a Syncer as a unit of work reporting three coarse steps.
type Task struct {
	syncer *Syncer
	dir    string

	// Size is the synced total, set once Run succeeds.
	Size int64
}

// NewTask creates a file sync unit of work for dir.
func NewTask(syncer *Syncer, dir string) *Task {
	return &Task{syncer: syncer, dir: dir}
}

func (t *Task) Name() string { return "File sync " + t.dir }
func (t *Task) Kind() string { return "file-sync" }

func (t *Task) Run(ctx context.Context, p *task.Progress) error {
	p.Step(1, 3, "Running file sync on directory: "+t.dir)
	if err := p.Checkpoint(); err != nil {
		return err
	}

	p.Update(2, 3)
	size, err := t.syncer.Sync(ctx, t.dir)
	if err != nil {
		return err
	}
	t.Size = size

	p.Step(3, 3, "File sync task completed")
	t.syncer.logger.Info("file sync completed", "path", t.dir, "size", size)
	return nil
}

package install

import (
	"context"

	"github.com/owlplug/owlplug-engine/internal/task"
)

// Task runs one install as a unit of work.
type Task struct {
	installer *Installer
	product   Product
	targetDir string

	// Result is set once Run succeeds.
	Result *Result
}

// NewTask creates an install unit of work.
func NewTask(installer *Installer, product Product, targetDir string) *Task {
	return &Task{installer: installer, product: product, targetDir: targetDir}
}

func (t *Task) Name() string { return "Install plugin - " + t.product.Name }
func (t *Task) Kind() string { return "install" }

func (t *Task) Run(ctx context.Context, p *task.Progress) error {
	res, err := t.installer.Install(ctx, t.product, t.targetDir, p)
	if err != nil {
		return err
	}
	t.Result = res
	return nil
}

package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/owlplug/owlplug-engine/internal/metrics"
	"github.com/owlplug/owlplug-engine/internal/store"
	"github.com/owlplug/owlplug-engine/internal/task"
)

// ProjectStore persists explored projects. *store.Store satisfies it.
type ProjectStore interface {
	SaveProject(proj *store.Project) error
}

// Task explores a project file, or every eligible file beneath a directory,
// and saves each project.
type Task struct {
	explorer Explorer
	store    ProjectStore
	path     string
	logger   *slog.Logger

	// Explored counts the projects saved by Run.
	Explored int
}

// NewTask creates an exploration unit of work for path.
func NewTask(explorer Explorer, st ProjectStore, path string, logger *slog.Logger) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{explorer: explorer, store: st, path: path, logger: logger}
}

func (t *Task) Name() string { return "Explore projects " + t.path }
func (t *Task) Kind() string { return "explore" }

func (t *Task) Run(ctx context.Context, p *task.Progress) error {
	p.Message("Collecting project files in " + t.path)

	files, err := t.candidates()
	if err != nil {
		return err
	}
	total := int64(len(files))

	var errs []error
	for i, file := range files {
		if err := p.Checkpoint(); err != nil {
			return err
		}
		p.Step(int64(i), total, "Exploring project "+filepath.Base(file))

		proj, err := t.explorer.Explore(file)
		if err != nil {
			t.logger.Error("project exploration failed", "path", file, "error", err)
			metrics.RecordProjectExplored(false, 0)
			errs = append(errs, err)
			continue
		}
		if proj == nil {
			continue
		}

		if err := t.store.SaveProject(toStoreProject(proj)); err != nil {
			return fmt.Errorf("saving project %s: %w", file, err)
		}
		metrics.RecordProjectExplored(true, len(proj.Plugins))
		t.Explored++
		t.logger.Debug("project saved", "path", proj.Path, "plugins", len(proj.Plugins))
	}

	p.Step(total, total, fmt.Sprintf("Project discovery completed: %d projects", t.Explored))
	t.logger.Info("project discovery completed", "path", t.path, "projects", t.Explored, "failed", len(errs))

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d project files failed: %w", len(errs), total, errors.Join(errs...))
	}
	return nil
}

// candidates lists the eligible files at or beneath t.path.
func (t *Task) candidates() ([]string, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ExploreError{Kind: KindNotFound, Path: t.path, Err: err}
		}
		return nil, fmt.Errorf("exploring %s: %w", t.path, err)
	}
	if !info.IsDir() {
		if t.explorer.CanExplore(t.path) {
			return []string{t.path}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(t.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && t.explorer.CanExplore(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", t.path, err)
	}
	return files, nil
}

func toStoreProject(p *Project) *store.Project {
	sp := &store.Project{
		Application:    p.Application,
		Name:           p.Name,
		Path:           p.Path,
		AppFullName:    p.AppFullName,
		FormatVersion:  p.FormatVersion,
		CreatedAt:      p.CreatedAt,
		LastModifiedAt: p.LastModifiedAt,
		Plugins:        make([]store.ProjectPlugin, 0, len(p.Plugins)),
	}
	for _, ref := range p.Plugins {
		sp.Plugins = append(sp.Plugins, store.ProjectPlugin{
			Name:     ref.Name,
			FileName: ref.FileName,
			Format:   ref.Format,
			UID:      ref.UID,
		})
	}
	return sp
}

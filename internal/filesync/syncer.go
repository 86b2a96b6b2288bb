// Package filesync rebuilds the persisted, size-annotated snapshot of a
// directory tree.
package filesync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/owlplug/owlplug-engine/internal/metrics"
	"github.com/owlplug/owlplug-engine/internal/pathcodec"
	"github.com/owlplug/owlplug-engine/internal/store"
)

// FileStatStore is the persistence a Syncer writes through. *store.Store
// satisfies it.
type FileStatStore interface {
	DeleteFileStatTree(path string) error
	SaveFileStat(stat *store.FileStat) error
}

// Syncer walks directories and persists one FileStat per node.
type Syncer struct {
	store  FileStatStore
	logger *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(st FileStatStore, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{store: st, logger: logger}
}

// Sync replaces the snapshot rooted at root and returns the total size in
// bytes of every regular file beneath it.
//
// Every entry is persisted as soon as it is known, so a reader sees the tree
// being built. Any I/O error aborts the whole sync; the partially rebuilt
// snapshot is left as is.
func (s *Syncer) Sync(ctx context.Context, root string) (int64, error) {
	info, err := os.Stat(root)
	if err != nil {
		return 0, fmt.Errorf("file sync on %s: %w", root, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("file sync on %s: not a directory", root)
	}

	total, err := s.syncDir(filepath.Clean(root), "")
	if err != nil {
		return 0, fmt.Errorf("file sync on %s: %w", root, err)
	}

	s.logger.Debug("file sync finished", "path", root, "size", total)
	return total, nil
}

// syncDir rebuilds the entry for dir and everything beneath it. parent is
// the canonical path of dir's parent entry, empty at the top call.
func (s *Syncer) syncDir(dir, parent string) (int64, error) {
	key := pathcodec.Canonicalize(dir)

	if err := s.store.DeleteFileStatTree(key); err != nil {
		return 0, err
	}

	entry := &store.FileStat{
		Name:       filepath.Base(dir),
		Path:       key,
		ParentPath: parent,
	}
	if err := s.save(entry); err != nil {
		return 0, err
	}

	children, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading directory: %w", err)
	}

	var total int64
	for _, child := range children {
		childPath := filepath.Join(dir, child.Name())

		if child.IsDir() {
			size, err := s.syncDir(childPath, key)
			if err != nil {
				return 0, err
			}
			total += size
			continue
		}

		// Lstat kind: symlinks are leaves and are never followed.
		info, err := child.Info()
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", childPath, err)
		}
		leaf := &store.FileStat{
			Name:       child.Name(),
			Path:       pathcodec.Canonicalize(childPath),
			ParentPath: key,
			Length:     info.Size(),
		}
		if err := s.save(leaf); err != nil {
			return 0, err
		}
		total += leaf.Length
	}

	entry.Length = total
	if err := s.save(entry); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Syncer) save(stat *store.FileStat) error {
	if err := s.store.SaveFileStat(stat); err != nil {
		return err
	}
	metrics.IncFileStatsWritten()
	return nil
}

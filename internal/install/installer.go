// Package install downloads plugin package archives, infers their layout and
// places their contents into a target directory.
package install

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/owlplug/owlplug-engine/internal/download"
	"github.com/owlplug/owlplug-engine/internal/metrics"
	"github.com/owlplug/owlplug-engine/internal/safety"
	"github.com/owlplug/owlplug-engine/internal/task"
)

const (
	archiveExt = ".owlpack"
	totalSteps = 5

	// maxNameAttempts bounds the suffixes tried when a temp archive name is taken.
	maxNameAttempts = 100
	// progressInterval throttles byte progress messages during download.
	progressInterval = 250 * time.Millisecond
)

// Product describes a downloadable plugin package.
type Product struct {
	Name        string `json:"name"`
	DownloadURL string `json:"url"`
	Creator     string `json:"creator,omitempty"`
}

// ValidationError reports a request rejected before any network or disk I/O.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Options configures an Installer.
type Options struct {
	// TempDir receives downloaded archives and extraction directories.
	TempDir string
	// Platform selects the NESTED_ENV directory; empty means CurrentPlatform().
	Platform string
	// CleanupOnFailure removes temporary artifacts when an install fails.
	CleanupOnFailure bool
}

// Result describes a completed install.
type Result struct {
	Layout      Layout
	Source      string // directory whose contents were copied
	Files       int    // files copied into the target
	ArchiveSize int64
}

// Installer runs the download, extract, place and cleanup pipeline.
type Installer struct {
	client *download.Client
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewInstaller creates an Installer.
func NewInstaller(client *download.Client, opts Options, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Platform == "" {
		opts.Platform = CurrentPlatform()
	}
	return &Installer{
		client: client,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Install installs product into targetDir, reporting five steps to p.
//
// Temporary artifacts are removed on success. On failure they are left in
// place unless Options.CleanupOnFailure is set.
func (i *Installer) Install(ctx context.Context, product Product, targetDir string, p *task.Progress) (res *Result, err error) {
	prefix := "Installing plugin " + product.Name

	p.Update(1, totalSteps)
	if err := validateTarget(targetDir); err != nil {
		p.Message(prefix + " - Invalid installation target directory")
		i.logger.Error("invalid plugin installation target directory", "product", product.Name, "target", targetDir)
		return nil, err
	}
	if _, err := safety.ValidateDownloadURL(product.DownloadURL); err != nil {
		p.Message("Installation of " + product.Name + " canceled: Can't download plugin files")
		return nil, &ValidationError{Field: "download URL", Value: product.DownloadURL, Reason: err.Error()}
	}
	if err := p.Checkpoint(); err != nil {
		return nil, err
	}

	var artifacts []string
	defer func() {
		if err != nil && i.opts.CleanupOnFailure {
			i.removeAll(artifacts)
		}
	}()

	// Stage 1: download
	downloadMsg := prefix + " - Downloading files..."
	p.Message(downloadMsg)
	if err := os.MkdirAll(i.opts.TempDir, 0o755); err != nil {
		p.Message("Installation of " + product.Name + " canceled: Can't write file on disk")
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	// Cancellation is observed between stages only, never mid-stream.
	archive, err := i.download(context.WithoutCancel(ctx), product, p, downloadMsg)
	if archive != nil {
		artifacts = append(artifacts, archive.Path)
	}
	if err != nil {
		return nil, err
	}
	if err := p.Checkpoint(); err != nil {
		return nil, err
	}

	// Stage 2: extract
	p.Step(2, totalSteps, prefix+" - Extracting files...")
	extractDir := filepath.Join(i.opts.TempDir, "temp-"+strings.TrimSuffix(filepath.Base(archive.Path), archiveExt))
	artifacts = append(artifacts, extractDir)
	files, err := Unzip(archive.Path, extractDir)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", product.Name, err)
	}
	i.logger.Debug("archive extracted", "product", product.Name, "dir", extractDir, "files", files)
	if err := p.Checkpoint(); err != nil {
		return nil, err
	}

	// Stage 3: classify and place
	p.Step(3, totalSteps, prefix+" - Moving files...")
	layout, err := ClassifyDir(extractDir)
	if err != nil {
		return nil, fmt.Errorf("classifying %s: %w", product.Name, err)
	}
	source, err := ResolveSource(extractDir, layout, i.opts.Platform)
	if err != nil {
		return nil, fmt.Errorf("installing %s: %w", product.Name, err)
	}
	copied, err := CopyDir(source, targetDir)
	if err != nil {
		return nil, fmt.Errorf("installing %s: %w", product.Name, err)
	}
	if err := p.Checkpoint(); err != nil {
		return nil, err
	}

	// Stage 4: cleanup
	p.Step(4, totalSteps, prefix+" - Cleaning files...")
	if err := os.Remove(archive.Path); err != nil {
		return nil, fmt.Errorf("removing %s: %w", archive.Path, err)
	}
	if err := os.RemoveAll(extractDir); err != nil {
		return nil, fmt.Errorf("removing %s: %w", extractDir, err)
	}

	p.Step(5, totalSteps, "Plugin "+product.Name+" successfully Installed")
	metrics.RecordInstall(layout.String())
	i.logger.Info("plugin installed",
		"product", product.Name,
		"creator", product.Creator,
		"target", targetDir,
		"layout", layout.String(),
		"files", copied,
		"size", archive.Size,
	)

	return &Result{
		Layout:      layout,
		Source:      source,
		Files:       copied,
		ArchiveSize: archive.Size,
	}, nil
}

// download streams the product archive into a fresh temp file. A non-nil
// result carries the path even when the transfer failed.
func (i *Installer) download(ctx context.Context, product Product, p *task.Progress, msg string) (*download.Result, error) {
	var last time.Time
	onProgress := func(done, total int64) {
		now := time.Now()
		if now.Sub(last) < progressInterval && (total == 0 || done < total) {
			return
		}
		last = now
		p.Message(msg + " " + humanize.Bytes(uint64(done)))
	}

	base := i.archiveName()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := base
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d", base, attempt)
		}
		dest := filepath.Join(i.opts.TempDir, name+archiveExt)

		res, err := i.client.Download(ctx, download.Options{
			URL:        product.DownloadURL,
			DestPath:   dest,
			OnProgress: onProgress,
		})
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			var httpErr *download.HTTPError
			if errors.As(err, &httpErr) || !isLocalWriteError(err) {
				p.Message("Installation of " + product.Name + " canceled: Can't download plugin files")
			} else {
				p.Message("Installation of " + product.Name + " canceled: Can't write file on disk")
			}
			return &download.Result{Path: dest}, fmt.Errorf("downloading %s: %w", product.Name, err)
		}
		return res, nil
	}
	return nil, fmt.Errorf("downloading %s: no free archive name for %s", product.Name, base)
}

// archiveName derives a temp archive base name from the current time
// (day, month, year, 12-hour clock, milliseconds).
func (i *Installer) archiveName() string {
	t := i.now()
	return t.Format("020106030405") + fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
}

func (i *Installer) removeAll(paths []string) {
	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil {
			i.logger.Warn("failed to remove temporary artifact", "path", path, "error", err)
		}
	}
}

func validateTarget(dir string) error {
	if dir == "" {
		return &ValidationError{Field: "target directory", Value: dir, Reason: "not set"}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return &ValidationError{Field: "target directory", Value: dir, Reason: "does not exist"}
	}
	if !info.IsDir() {
		return &ValidationError{Field: "target directory", Value: dir, Reason: "not a directory"}
	}
	return nil
}

func isLocalWriteError(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}

// Package project explores DAW project files and extracts the plugins they
// reference.
package project

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Plugin formats a reference can carry.
const (
	FormatVST2 = "vst2"
	FormatVST3 = "vst3"
	FormatAU   = "au"
)

// Project is a DAW project discovered on disk.
type Project struct {
	Application    string            `json:"application"`
	Name           string            `json:"name"`
	Path           string            `json:"path"`
	AppFullName    string            `json:"app_full_name"`
	FormatVersion  string            `json:"format_version"`
	CreatedAt      time.Time         `json:"created_at"`
	LastModifiedAt time.Time         `json:"last_modified_at"`
	Plugins        []PluginReference `json:"plugins"`
}

// PluginReference is a plugin used by a project, in document order.
type PluginReference struct {
	Name     string `json:"name"`
	FileName string `json:"file_name,omitempty"`
	Format   string `json:"format"`
	UID      string `json:"uid,omitempty"`
}

// Explorer reads one vendor's project files.
type Explorer interface {
	// CanExplore reports whether path is eligible, from its name alone.
	CanExplore(path string) bool
	// Explore returns (nil, nil) for an ineligible file.
	Explore(path string) (*Project, error)
}

// Registry dispatches a file to the explorer registered for its extension.
type Registry struct {
	explorers map[string]Explorer
	logger    *slog.Logger
}

// NewRegistry creates a registry with the built-in explorers enabled by
// extensions (e.g. ".als"). maxDocumentBytes bounds decompressed documents.
func NewRegistry(extensions []string, maxDocumentBytes int64, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{explorers: make(map[string]Explorer), logger: logger}

	builtin := map[string]Explorer{
		AbletonExtension: NewAbletonExplorer(maxDocumentBytes, logger),
	}
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if e, ok := builtin[ext]; ok {
			r.Register(ext, e)
		} else {
			logger.Warn("no project explorer for extension", "extension", ext)
		}
	}
	return r
}

// Register adds or replaces the explorer for ext.
func (r *Registry) Register(ext string, e Explorer) {
	r.explorers[strings.ToLower(ext)] = e
}

// Extensions returns the registered extensions.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.explorers))
	for ext := range r.explorers {
		exts = append(exts, ext)
	}
	return exts
}

func (r *Registry) lookup(path string) Explorer {
	return r.explorers[strings.ToLower(filepath.Ext(path))]
}

// CanExplore reports whether an explorer accepts path.
func (r *Registry) CanExplore(path string) bool {
	e := r.lookup(path)
	return e != nil && e.CanExplore(path)
}

// Explore explores path with the explorer registered for its extension.
func (r *Registry) Explore(path string) (*Project, error) {
	e := r.lookup(path)
	if e == nil {
		return nil, nil
	}
	return e.Explore(path)
}

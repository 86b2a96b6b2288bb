package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/owlplug/owlplug-engine/internal/pathcodec"
	"github.com/owlplug/owlplug-engine/internal/store"
)

// FileStatJSON is the JSON representation of a file stat entry.
type FileStatJSON struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	ParentPath string `json:"parent_path,omitempty"`
	Length     int64  `json:"length"`
}

// FilesResponseBody is returned by GET /api/files. Entry is nil when the
// snapshot roots are listed.
type FilesResponseBody struct {
	Entry    *FileStatJSON  `json:"entry"`
	Children []FileStatJSON `json:"children"`
}

func fileStatToJSON(fs store.FileStat) FileStatJSON {
	return FileStatJSON{Name: fs.Name, Path: fs.Path, ParentPath: fs.ParentPath, Length: fs.Length}
}

// handleAPIFiles returns an entry and its direct children, largest first.
// Without a path query parameter it lists the snapshot roots.
func (s *Server) handleAPIFiles(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	var (
		entry    *FileStatJSON
		children []store.FileStat
		err      error
	)
	if path == "" {
		children, err = s.store.ListFileStatRoots()
	} else {
		key := pathcodec.Canonicalize(path)
		stat, getErr := s.store.GetFileStat(key)
		if getErr != nil {
			if errors.Is(getErr, store.ErrNotFound) {
				jsonError(w, http.StatusNotFound, "no file stat for "+key)
				return
			}
			err = getErr
		} else {
			e := fileStatToJSON(*stat)
			entry = &e
			children, err = s.store.ListFileStatChildren(key)
		}
	}
	if err != nil {
		s.logger.Error("failed to query file stats", "path", path, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to query file stats")
		return
	}

	response := FilesResponseBody{Entry: entry, Children: make([]FileStatJSON, 0, len(children))}
	for _, c := range children {
		response.Children = append(response.Children, fileStatToJSON(c))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// ProjectJSON is the JSON representation of an explored project.
type ProjectJSON struct {
	ID             int64        `json:"id"`
	Application    string       `json:"application"`
	Name           string       `json:"name"`
	Path           string       `json:"path"`
	AppFullName    string       `json:"app_full_name"`
	FormatVersion  string       `json:"format_version"`
	CreatedAt      time.Time    `json:"created_at"`
	LastModifiedAt time.Time    `json:"last_modified_at"`
	PluginCount    int          `json:"plugin_count"`
	Plugins        []PluginJSON `json:"plugins,omitempty"`
}

// PluginJSON is the JSON representation of a project's plugin reference.
type PluginJSON struct {
	Name     string `json:"name"`
	FileName string `json:"file_name,omitempty"`
	Format   string `json:"format"`
	UID      string `json:"uid,omitempty"`
}

func projectToJSON(p store.Project) ProjectJSON {
	return ProjectJSON{
		ID:             p.ID,
		Application:    p.Application,
		Name:           p.Name,
		Path:           p.Path,
		AppFullName:    p.AppFullName,
		FormatVersion:  p.FormatVersion,
		CreatedAt:      p.CreatedAt,
		LastModifiedAt: p.LastModifiedAt,
	}
}

// handleAPIProjects lists explored projects with their plugin counts.
func (s *Server) handleAPIProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects()
	if err != nil {
		s.logger.Error("failed to list projects", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	response := make([]ProjectJSON, 0, len(projects))
	for _, p := range projects {
		item := projectToJSON(p.Project)
		item.PluginCount = p.PluginCount
		response = append(response, item)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleAPIProject returns one project with its plugins in document order.
func (s *Server) handleAPIProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	p, err := s.store.GetProject(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "project not found")
			return
		}
		s.logger.Error("failed to get project", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get project")
		return
	}

	response := projectToJSON(*p)
	response.PluginCount = len(p.Plugins)
	for _, pl := range p.Plugins {
		response.Plugins = append(response.Plugins, PluginJSON{
			Name:     pl.Name,
			FileName: pl.FileName,
			Format:   pl.Format,
			UID:      pl.UID,
		})
	}
	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes v as a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

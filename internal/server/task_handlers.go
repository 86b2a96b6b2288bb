package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/owlplug/owlplug-engine/internal/filesync"
	"github.com/owlplug/owlplug-engine/internal/install"
	"github.com/owlplug/owlplug-engine/internal/project"
	"github.com/owlplug/owlplug-engine/internal/task"
)

// PathRequestBody is the request body for POST /api/sync and POST /api/explore.
type PathRequestBody struct {
	Path string `json:"path"`
}

// InstallRequestBody is the request body for POST /api/install.
type InstallRequestBody struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Creator string `json:"creator"`
	Target  string `json:"target"`
}

// SubmitResponseBody is returned when a unit of work has been queued.
type SubmitResponseBody struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// handleAPISync queues a file sync of a directory.
func (s *Server) handleAPISync(w http.ResponseWriter, r *http.Request) {
	var req PathRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		jsonError(w, http.StatusBadRequest, "path is required")
		return
	}

	s.submit(w, filesync.NewTask(s.syncer, path))
}

// handleAPIInstall queues a plugin package install.
func (s *Server) handleAPIInstall(w http.ResponseWriter, r *http.Request) {
	var req InstallRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" || req.Target == "" {
		jsonError(w, http.StatusBadRequest, "name, url and target are required")
		return
	}

	product := install.Product{Name: req.Name, DownloadURL: req.URL, Creator: req.Creator}
	s.submit(w, install.NewTask(s.installer, product, req.Target))
}

// handleAPIExplore queues exploration of a project file or directory.
func (s *Server) handleAPIExplore(w http.ResponseWriter, r *http.Request) {
	var req PathRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		jsonError(w, http.StatusBadRequest, "path is required")
		return
	}

	s.submit(w, project.NewTask(s.explorer, s.store, path, s.logger))
}

func (s *Server) submit(w http.ResponseWriter, t task.Task) {
	h, err := s.runner.Submit(t)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, task.ErrQueueFull) || errors.Is(err, task.ErrClosed) {
			code = http.StatusServiceUnavailable
		}
		jsonError(w, code, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, SubmitResponseBody{ID: h.ID(), Name: t.Name(), Kind: t.Kind()})
}

// handleAPITasks lists the units of work known to this process, newest first.
func (s *Server) handleAPITasks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.List())
}

// handleAPITask returns one unit of work's status.
func (s *Server) handleAPITask(w http.ResponseWriter, r *http.Request) {
	h, ok := s.runner.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, h.Status())
}

// handleAPITaskCancel requests cancellation. Finished units of work are
// reported unchanged.
func (s *Server) handleAPITaskCancel(w http.ResponseWriter, r *http.Request) {
	h, ok := s.runner.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "task not found")
		return
	}
	status := h.Status()
	if status.Phase.Done() {
		s.writeJSON(w, http.StatusConflict, status)
		return
	}
	h.Cancel()
	s.logger.Info("task cancel requested", "id", h.ID(), "task", status.Name)
	s.writeJSON(w, http.StatusAccepted, h.Status())
}

// TaskRunJSON is the JSON representation of a recorded task run.
type TaskRunJSON struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// handleAPITaskHistory lists recorded task runs, including those of earlier
// processes. Accepts optional kind and limit query parameters.
func (s *Server) handleAPITaskHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.store.ListTaskRuns(r.URL.Query().Get("kind"), limit)
	if err != nil {
		s.logger.Error("failed to list task runs", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list task runs")
		return
	}

	response := make([]TaskRunJSON, 0, len(runs))
	for _, run := range runs {
		item := TaskRunJSON{
			ID:        run.TaskID,
			Kind:      run.Kind,
			Name:      run.Name,
			Status:    run.Status,
			Message:   run.Message,
			Error:     run.Error,
			StartTime: run.StartTime,
		}
		if !run.EndTime.IsZero() {
			end := run.EndTime
			item.EndTime = &end
		}
		response = append(response, item)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleAPITaskEvents streams a unit of work's status as server-sent events.
// A "progress" event is sent on every update and a final "done" event once
// the unit of work has finished.
func (s *Server) handleAPITaskEvents(w http.ResponseWriter, r *http.Request) {
	h, ok := s.runner.Get(r.PathValue("id"))
	if !ok {
		jsonError(w, http.StatusNotFound, "task not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	tracker := h.Tracker()
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()
	ctx := r.Context()

	for {
		// Grab the notify channel before the snapshot so no update is missed.
		updated := tracker.Wait()
		status := tracker.Snapshot()

		event := "progress"
		if status.Phase.Done() {
			event = "done"
		}
		if err := writeEvent(w, event, status); err != nil {
			s.logger.Debug("event stream closed", "id", h.ID(), "error", err)
			return
		}
		flusher.Flush()
		if status.Phase.Done() {
			return
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return
			case <-updated:
				break wait
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

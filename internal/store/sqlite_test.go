package store

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore creates an in-memory SQLite store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveStats(t *testing.T, s *Store, stats ...FileStat) {
	t.Helper()
	for i := range stats {
		if err := s.SaveFileStat(&stats[i]); err != nil {
			t.Fatalf("SaveFileStat(%s) failed: %v", stats[i].Path, err)
		}
	}
}

// ============================================================================
// Store Lifecycle Tests
// ============================================================================

func TestNew(t *testing.T) {
	store, err := New(":memory:", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Expected db to be initialized")
	}
	if store.logger == nil {
		t.Error("Expected logger to be initialized")
	}
}

func TestNewOnDisk(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "owlplug.db")

	store, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", dbPath, err)
	}
	saveStats(t, store, FileStat{Name: "VST", Path: "/VST"})
	store.Close()

	// Reopening must not rerun migrations or lose data.
	store, err = New(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	count, err := store.CountFileStats()
	if err != nil {
		t.Fatalf("CountFileStats() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountFileStats() = %d, want 1", count)
	}
}

func TestClose(t *testing.T) {
	store, err := New(":memory:", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if _, err := store.ListTaskRuns("", 0); err == nil {
		t.Error("Expected error when using closed store, but got nil")
	}
}

// ============================================================================
// FileStat Tests
// ============================================================================

func TestSaveFileStatUpsert(t *testing.T) {
	s := newTestStore(t)

	stat := FileStat{Name: "VST", Path: "/plugins/VST", ParentPath: "", Length: 0}
	saveStats(t, s, stat)

	first, err := s.GetFileStat("/plugins/VST")
	if err != nil {
		t.Fatalf("GetFileStat() failed: %v", err)
	}
	if first.ParentPath != "" {
		t.Errorf("ParentPath = %q, want empty", first.ParentPath)
	}

	stat.Length = 4096
	if err := s.SaveFileStat(&stat); err != nil {
		t.Fatalf("SaveFileStat() update failed: %v", err)
	}
	if stat.ID != first.ID {
		t.Errorf("update changed ID: %d -> %d", first.ID, stat.ID)
	}

	got, err := s.GetFileStat("/plugins/VST")
	if err != nil {
		t.Fatalf("GetFileStat() failed: %v", err)
	}
	if got.Length != 4096 {
		t.Errorf("Length = %d, want 4096", got.Length)
	}
}

func TestGetFileStatNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetFileStat("/missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFileStat() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteFileStatTree(t *testing.T) {
	s := newTestStore(t)

	saveStats(t, s,
		FileStat{Name: "VST", Path: "/p/VST", Length: 30},
		FileStat{Name: "a.dll", Path: "/p/VST/a.dll", ParentPath: "/p/VST", Length: 10},
		FileStat{Name: "Synth", Path: "/p/VST/Synth", ParentPath: "/p/VST", Length: 20},
		FileStat{Name: "b.dll", Path: "/p/VST/Synth/b.dll", ParentPath: "/p/VST/Synth", Length: 20},
		// Shares a name prefix but is not beneath /p/VST.
		FileStat{Name: "VST3", Path: "/p/VST3", Length: 5},
	)

	if err := s.DeleteFileStatTree("/p/VST"); err != nil {
		t.Fatalf("DeleteFileStatTree() failed: %v", err)
	}

	count, err := s.CountFileStats()
	if err != nil {
		t.Fatalf("CountFileStats() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountFileStats() = %d, want 1", count)
	}
	if _, err := s.GetFileStat("/p/VST3"); err != nil {
		t.Errorf("sibling with shared prefix was deleted: %v", err)
	}
}

func TestDeleteFileStatTreeNonASCII(t *testing.T) {
	s := newTestStore(t)

	saveStats(t, s,
		FileStat{Name: "Plug-ins Ünïcode", Path: "/Plug-ins Ünïcode", Length: 1},
		FileStat{Name: "ä.vst3", Path: "/Plug-ins Ünïcode/ä.vst3", ParentPath: "/Plug-ins Ünïcode", Length: 1},
	)

	if err := s.DeleteFileStatTree("/Plug-ins Ünïcode"); err != nil {
		t.Fatalf("DeleteFileStatTree() failed: %v", err)
	}
	count, _ := s.CountFileStats()
	if count != 0 {
		t.Errorf("CountFileStats() = %d, want 0", count)
	}
}

func TestListFileStatChildren(t *testing.T) {
	s := newTestStore(t)

	saveStats(t, s,
		FileStat{Name: "root", Path: "/root", Length: 60},
		FileStat{Name: "small", Path: "/root/small", ParentPath: "/root", Length: 10},
		FileStat{Name: "big", Path: "/root/big", ParentPath: "/root", Length: 50},
		FileStat{Name: "deep", Path: "/root/big/deep", ParentPath: "/root/big", Length: 50},
	)

	children, err := s.ListFileStatChildren("/root")
	if err != nil {
		t.Fatalf("ListFileStatChildren() failed: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2", len(children))
	}
	if children[0].Name != "big" || children[1].Name != "small" {
		t.Errorf("children order = [%s %s], want [big small]", children[0].Name, children[1].Name)
	}

	tree, err := s.ListFileStatTree("/root")
	if err != nil {
		t.Fatalf("ListFileStatTree() failed: %v", err)
	}
	if len(tree) != 4 {
		t.Errorf("ListFileStatTree() returned %d entries, want 4", len(tree))
	}

	roots, err := s.ListFileStatRoots()
	if err != nil {
		t.Fatalf("ListFileStatRoots() failed: %v", err)
	}
	if len(roots) != 1 || roots[0].Path != "/root" {
		t.Errorf("ListFileStatRoots() = %+v, want only /root", roots)
	}
}

// ============================================================================
// Project Tests
// ============================================================================

func testProject(path string, plugins ...string) *Project {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Project{
		Application:    "ableton",
		Name:           filepath.Base(path),
		Path:           path,
		AppFullName:    "Ableton Live 11.0",
		FormatVersion:  "5",
		CreatedAt:      now,
		LastModifiedAt: now.Add(time.Hour),
	}
	for _, name := range plugins {
		p.Plugins = append(p.Plugins, ProjectPlugin{Name: name, Format: "vst2", FileName: name + ".dll"})
	}
	return p
}

func TestSaveProject(t *testing.T) {
	s := newTestStore(t)

	proj := testProject("/music/song.als", "Serum", "OTT", "Valhalla")
	if err := s.SaveProject(proj); err != nil {
		t.Fatalf("SaveProject() failed: %v", err)
	}
	if proj.ID == 0 {
		t.Fatal("Expected project ID to be set")
	}

	got, err := s.GetProjectByPath("/music/song.als")
	if err != nil {
		t.Fatalf("GetProjectByPath() failed: %v", err)
	}
	if got.AppFullName != "Ableton Live 11.0" {
		t.Errorf("AppFullName = %q", got.AppFullName)
	}
	if !got.CreatedAt.Equal(proj.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, proj.CreatedAt)
	}

	want := []string{"Serum", "OTT", "Valhalla"}
	if len(got.Plugins) != len(want) {
		t.Fatalf("got %d plugins, want %d", len(got.Plugins), len(want))
	}
	for i, name := range want {
		if got.Plugins[i].Name != name {
			t.Errorf("plugin[%d] = %q, want %q", i, got.Plugins[i].Name, name)
		}
		if got.Plugins[i].Position != i {
			t.Errorf("plugin[%d].Position = %d", i, got.Plugins[i].Position)
		}
	}
}

func TestSaveProjectReplacesByPath(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveProject(testProject("/music/song.als", "A", "B", "C")); err != nil {
		t.Fatalf("SaveProject() failed: %v", err)
	}
	if err := s.SaveProject(testProject("/music/song.als", "D")); err != nil {
		t.Fatalf("SaveProject() second failed: %v", err)
	}

	projects, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects() failed: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("got %d projects, want 1", len(projects))
	}
	if projects[0].PluginCount != 1 {
		t.Errorf("PluginCount = %d, want 1", projects[0].PluginCount)
	}

	// Orphaned plugin rows must be gone.
	var orphans int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM project_plugins").Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 1 {
		t.Errorf("project_plugins rows = %d, want 1", orphans)
	}
}

func TestGetProject(t *testing.T) {
	s := newTestStore(t)

	proj := testProject("/music/a.als", "Serum")
	if err := s.SaveProject(proj); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetProject(proj.ID)
	if err != nil {
		t.Fatalf("GetProject() failed: %v", err)
	}
	if got.Path != "/music/a.als" || len(got.Plugins) != 1 {
		t.Errorf("GetProject() = %+v", got)
	}

	if _, err := s.GetProject(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject(9999) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteProject(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveProject(testProject("/music/a.als", "Serum")); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteProject("/music/a.als"); err != nil {
		t.Fatalf("DeleteProject() failed: %v", err)
	}
	if _, err := s.GetProjectByPath("/music/a.als"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteProject("/music/a.als"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteProject() error = %v, want ErrNotFound", err)
	}
}

// ============================================================================
// TaskRun Tests
// ============================================================================

func TestTaskRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	run := &TaskRun{
		TaskID:    "6f1c",
		Kind:      "install",
		Name:      "Install Dexed",
		Status:    "running",
		StartTime: time.Now(),
	}
	if err := s.CreateTaskRun(run); err != nil {
		t.Fatalf("CreateTaskRun() failed: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("Expected ID to be set")
	}

	run.Status = "failed"
	run.Message = "Installing plugin Dexed - Extracting files..."
	run.Error = "zip: not a valid zip file"
	run.EndTime = time.Now()
	if err := s.UpdateTaskRun(run); err != nil {
		t.Fatalf("UpdateTaskRun() failed: %v", err)
	}

	got, err := s.GetTaskRun("6f1c")
	if err != nil {
		t.Fatalf("GetTaskRun() failed: %v", err)
	}
	if got.Status != "failed" || got.Error != run.Error || got.Message != run.Message {
		t.Errorf("GetTaskRun() = %+v", got)
	}

	if err := s.UpdateTaskRun(&TaskRun{ID: 404}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTaskRun(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestListTaskRuns(t *testing.T) {
	s := newTestStore(t)

	base := time.Now()
	runs := []TaskRun{
		{TaskID: "1", Kind: "file-sync", Name: "a", Status: "completed", StartTime: base},
		{TaskID: "2", Kind: "install", Name: "b", Status: "completed", StartTime: base.Add(time.Second)},
		{TaskID: "3", Kind: "file-sync", Name: "c", Status: "running", StartTime: base.Add(2 * time.Second)},
	}
	for i := range runs {
		if err := s.CreateTaskRun(&runs[i]); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		kind    string
		limit   int
		wantIDs []string
	}{
		{"all", "", 0, []string{"3", "2", "1"}},
		{"by kind", "file-sync", 0, []string{"3", "1"}},
		{"limited", "", 1, []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTaskRuns(tt.kind, tt.limit)
			if err != nil {
				t.Fatalf("ListTaskRuns() failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d runs, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].TaskID != id {
					t.Errorf("run[%d] = %s, want %s", i, got[i].TaskID, id)
				}
			}
		})
	}
}

package store

import "time"

// FileStat is one persisted node of a directory snapshot
type FileStat struct {
	ID         int64
	Name       string
	Path       string // canonical path, unique
	ParentPath string // canonical path of the parent directory, empty for a snapshot root
	Length     int64  // file length, or recursive sum of descendants for a directory
}

// Project is a DAW project discovered on disk
type Project struct {
	ID             int64
	Application    string // e.g. "ableton"
	Name           string
	Path           string // canonical path, unique
	AppFullName    string
	FormatVersion  string
	CreatedAt      time.Time
	LastModifiedAt time.Time
	Plugins        []ProjectPlugin
}

// ProjectPlugin is a plugin reference owned by a project, kept in document order
type ProjectPlugin struct {
	ID        int64
	ProjectID int64
	Position  int
	Name      string
	FileName  string
	Format    string // "vst2", "vst3", "au"
	UID       string
}

// TaskRun records one execution of a unit of work
type TaskRun struct {
	ID        int64
	TaskID    string
	Kind      string // "file-sync", "install", "explore"
	Name      string
	Status    string // "running", "completed", "failed", "cancelled"
	Message   string // last progress message
	Error     string
	StartTime time.Time
	EndTime   time.Time
}

// ProjectSummary is a project listing row
type ProjectSummary struct {
	Project
	PluginCount int
}

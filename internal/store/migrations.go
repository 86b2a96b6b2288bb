package store

import (
	"fmt"
)

// migrate runs all pending migrations
func (s *Store) migrate() error {
	createMigrationsTableSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := s.db.Exec(createMigrationsTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.logger.Debug("current schema version", "version", currentVersion)

	migrations := []struct {
		version int
		sql     string
	}{
		{
			version: 1,
			sql: `
				CREATE TABLE file_stats (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					path TEXT NOT NULL UNIQUE,
					parent_path TEXT,
					length INTEGER NOT NULL DEFAULT 0
				);

				CREATE INDEX idx_file_stats_parent ON file_stats(parent_path);

				CREATE TABLE projects (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					application TEXT NOT NULL,
					name TEXT NOT NULL,
					path TEXT NOT NULL UNIQUE,
					app_full_name TEXT,
					format_version TEXT,
					created_at DATETIME,
					last_modified_at DATETIME
				);

				CREATE TABLE project_plugins (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					project_id INTEGER NOT NULL,
					position INTEGER NOT NULL,
					name TEXT NOT NULL,
					file_name TEXT,
					format TEXT,
					uid TEXT,
					FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
				);

				CREATE INDEX idx_project_plugins_project ON project_plugins(project_id, position);
			`,
		},
		{
			version: 2,
			sql: `
				CREATE TABLE task_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					task_id TEXT NOT NULL UNIQUE,
					kind TEXT NOT NULL,
					name TEXT NOT NULL,
					status TEXT DEFAULT 'running',
					message TEXT,
					error TEXT,
					start_time DATETIME NOT NULL,
					end_time DATETIME
				);
			`,
		},
	}

	for _, mig := range migrations {
		if mig.version > currentVersion {
			s.logger.Info("running migration", "version", mig.version)

			if err := s.runMigration(mig.version, mig.sql); err != nil {
				return fmt.Errorf("failed to run migration %d: %w", mig.version, err)
			}
		}
	}

	return nil
}

// runMigration executes a migration and records it
func (s *Store) runMigration(version int, sql string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}

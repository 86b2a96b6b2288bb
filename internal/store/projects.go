package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ============================================================================
// Project Operations
// ============================================================================

// SaveProject replaces any project stored at the same path with proj and its
// plugin references, inside one transaction. IDs are set on proj and its plugins.
func (s *Store) SaveProject(proj *Project) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Plugins go with their project through ON DELETE CASCADE.
	if _, err := tx.Exec("DELETE FROM projects WHERE path = ?", proj.Path); err != nil {
		return fmt.Errorf("failed to delete previous project %s: %w", proj.Path, err)
	}

	const insertProject = `
		INSERT INTO projects (
			application, name, path, app_full_name, format_version, created_at, last_modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.Exec(
		insertProject,
		proj.Application, proj.Name, proj.Path, proj.AppFullName,
		proj.FormatVersion, proj.CreatedAt, proj.LastModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	proj.ID = id

	const insertPlugin = `
		INSERT INTO project_plugins (project_id, position, name, file_name, format, uid)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for i := range proj.Plugins {
		pl := &proj.Plugins[i]
		pl.ProjectID = id
		pl.Position = i
		res, err := tx.Exec(insertPlugin, id, i, pl.Name, pl.FileName, pl.Format, pl.UID)
		if err != nil {
			return fmt.Errorf("failed to insert plugin %q: %w", pl.Name, err)
		}
		if pl.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}
	return nil
}

// GetProject retrieves a project and its plugins by ID
func (s *Store) GetProject(id int64) (*Project, error) {
	return s.getProject("id = ?", id)
}

// GetProjectByPath retrieves a project and its plugins by canonical path
func (s *Store) GetProjectByPath(path string) (*Project, error) {
	return s.getProject("path = ?", path)
}

func (s *Store) getProject(where string, arg interface{}) (*Project, error) {
	query := `
		SELECT id, application, name, path, COALESCE(app_full_name, ''),
		       COALESCE(format_version, ''), created_at, last_modified_at
		FROM projects WHERE ` + where

	proj := &Project{}
	err := s.db.QueryRow(query, arg).Scan(
		&proj.ID, &proj.Application, &proj.Name, &proj.Path, &proj.AppFullName,
		&proj.FormatVersion, &proj.CreatedAt, &proj.LastModifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %v: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query project: %w", err)
	}

	plugins, err := s.ListProjectPlugins(proj.ID)
	if err != nil {
		return nil, err
	}
	proj.Plugins = plugins
	return proj, nil
}

// ListProjectPlugins retrieves a project's plugin references in document order
func (s *Store) ListProjectPlugins(projectID int64) ([]ProjectPlugin, error) {
	const query = `
		SELECT id, project_id, position, name, COALESCE(file_name, ''),
		       COALESCE(format, ''), COALESCE(uid, '')
		FROM project_plugins WHERE project_id = ? ORDER BY position
	`

	rows, err := s.db.Query(query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query project plugins: %w", err)
	}
	defer rows.Close()

	var plugins []ProjectPlugin
	for rows.Next() {
		pl := ProjectPlugin{}
		if err := rows.Scan(&pl.ID, &pl.ProjectID, &pl.Position, &pl.Name, &pl.FileName, &pl.Format, &pl.UID); err != nil {
			return nil, fmt.Errorf("failed to scan project plugin: %w", err)
		}
		plugins = append(plugins, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project plugins: %w", err)
	}
	return plugins, nil
}

// ListProjects retrieves all projects without their plugins, ordered by name.
// PluginCount is reported per project.
func (s *Store) ListProjects() ([]ProjectSummary, error) {
	const query = `
		SELECT p.id, p.application, p.name, p.path, COALESCE(p.app_full_name, ''),
		       COALESCE(p.format_version, ''), p.created_at, p.last_modified_at,
		       (SELECT COUNT(*) FROM project_plugins pp WHERE pp.project_id = p.id)
		FROM projects p ORDER BY p.name, p.path
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectSummary
	for rows.Next() {
		ps := ProjectSummary{}
		err := rows.Scan(
			&ps.ID, &ps.Application, &ps.Name, &ps.Path, &ps.AppFullName,
			&ps.FormatVersion, &ps.CreatedAt, &ps.LastModifiedAt, &ps.PluginCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// DeleteProject deletes a project and its plugin references by path
func (s *Store) DeleteProject(path string) error {
	result, err := s.db.Exec("DELETE FROM projects WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project %s: %w", path, ErrNotFound)
	}
	return nil
}

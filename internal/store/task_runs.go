package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ============================================================================
// TaskRun Operations
// ============================================================================

// CreateTaskRun inserts a new TaskRun and sets its ID
func (s *Store) CreateTaskRun(run *TaskRun) error {
	const query = `
		INSERT INTO task_runs (
			task_id, kind, name, status, message, error, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(
		query,
		run.TaskID, run.Kind, run.Name, run.Status, run.Message, run.Error,
		run.StartTime, run.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	run.ID = id
	return nil
}

// UpdateTaskRun updates an existing TaskRun by ID
func (s *Store) UpdateTaskRun(run *TaskRun) error {
	const query = `
		UPDATE task_runs SET
			status = ?, message = ?, error = ?, end_time = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query, run.Status, run.Message, run.Error, run.EndTime, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update task run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task run %d: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetTaskRun retrieves a TaskRun by its task ID
func (s *Store) GetTaskRun(taskID string) (*TaskRun, error) {
	const query = `
		SELECT id, task_id, kind, name, status, COALESCE(message, ''), COALESCE(error, ''),
		       start_time, end_time
		FROM task_runs WHERE task_id = ?
	`

	run := &TaskRun{}
	err := s.db.QueryRow(query, taskID).Scan(
		&run.ID, &run.TaskID, &run.Kind, &run.Name, &run.Status, &run.Message,
		&run.Error, &run.StartTime, &run.EndTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task run %s: %w", taskID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query task run: %w", err)
	}
	return run, nil
}

// ListTaskRuns retrieves TaskRuns, newest first, optionally filtered by kind
func (s *Store) ListTaskRuns(kind string, limit int) ([]TaskRun, error) {
	query := `
		SELECT id, task_id, kind, name, status, COALESCE(message, ''), COALESCE(error, ''),
		       start_time, end_time
		FROM task_runs
	`
	var args []interface{}

	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY start_time DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query task runs: %w", err)
	}
	defer rows.Close()

	var runs []TaskRun
	for rows.Next() {
		run := TaskRun{}
		err := rows.Scan(
			&run.ID, &run.TaskID, &run.Kind, &run.Name, &run.Status, &run.Message,
			&run.Error, &run.StartTime, &run.EndTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task runs: %w", err)
	}
	return runs, nil
}

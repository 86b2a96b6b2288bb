package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/owlplug/owlplug-engine/internal/pathcodec"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store, opening the SQLite database and running migrations.
// dbPath ":memory:" opens a private in-memory database.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var dsn string
	if dbPath == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	} else {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", filepath.ToSlash(absPath))
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: in-memory databases are per-connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug("store initialized", "path", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ============================================================================
// FileStat Operations
// ============================================================================

// DeleteFileStatTree deletes the entry stored at path together with every
// entry beneath it.
func (s *Store) DeleteFileStatTree(path string) error {
	prefix := pathcodec.SubtreePrefix(path)
	const query = `
		DELETE FROM file_stats
		WHERE path = ? OR substr(CAST(path AS BLOB), 1, ?) = CAST(? AS BLOB)
	`

	if _, err := s.db.Exec(query, path, len(prefix), prefix); err != nil {
		return fmt.Errorf("failed to delete file stats under %s: %w", path, err)
	}
	return nil
}

// SaveFileStat inserts the entry or updates the one already stored at its path,
// and sets its ID.
func (s *Store) SaveFileStat(stat *FileStat) error {
	const query = `
		INSERT INTO file_stats (name, path, parent_path, length)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			parent_path = excluded.parent_path,
			length = excluded.length
		RETURNING id
	`

	err := s.db.QueryRow(query, stat.Name, stat.Path, nullString(stat.ParentPath), stat.Length).Scan(&stat.ID)
	if err != nil {
		return fmt.Errorf("failed to save file stat %s: %w", stat.Path, err)
	}
	return nil
}

// GetFileStat retrieves the entry stored at path
func (s *Store) GetFileStat(path string) (*FileStat, error) {
	const query = `
		SELECT id, name, path, COALESCE(parent_path, ''), length
		FROM file_stats WHERE path = ?
	`

	stat := &FileStat{}
	err := s.db.QueryRow(query, path).Scan(&stat.ID, &stat.Name, &stat.Path, &stat.ParentPath, &stat.Length)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file stat %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query file stat: %w", err)
	}
	return stat, nil
}

// ListFileStatChildren retrieves the direct children of parentPath, largest first
func (s *Store) ListFileStatChildren(parentPath string) ([]FileStat, error) {
	const query = `
		SELECT id, name, path, COALESCE(parent_path, ''), length
		FROM file_stats WHERE parent_path = ?
		ORDER BY length DESC, name
	`
	return s.queryFileStats(query, parentPath)
}

// ListFileStatTree retrieves root and every entry beneath it, ordered by path
func (s *Store) ListFileStatTree(root string) ([]FileStat, error) {
	prefix := pathcodec.SubtreePrefix(root)
	const query = `
		SELECT id, name, path, COALESCE(parent_path, ''), length
		FROM file_stats
		WHERE path = ? OR substr(CAST(path AS BLOB), 1, ?) = CAST(? AS BLOB)
		ORDER BY path
	`
	return s.queryFileStats(query, root, len(prefix), prefix)
}

// ListFileStatRoots retrieves every entry that has no parent
func (s *Store) ListFileStatRoots() ([]FileStat, error) {
	const query = `
		SELECT id, name, path, '', length
		FROM file_stats WHERE parent_path IS NULL
		ORDER BY path
	`
	return s.queryFileStats(query)
}

// CountFileStats returns the number of persisted entries
func (s *Store) CountFileStats() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM file_stats").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count file stats: %w", err)
	}
	return count, nil
}

func (s *Store) queryFileStats(query string, args ...interface{}) ([]FileStat, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query file stats: %w", err)
	}
	defer rows.Close()

	var stats []FileStat
	for rows.Next() {
		stat := FileStat{}
		if err := rows.Scan(&stat.ID, &stat.Name, &stat.Path, &stat.ParentPath, &stat.Length); err != nil {
			return nil, fmt.Errorf("failed to scan file stat: %w", err)
		}
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file stats: %w", err)
	}
	return stats, nil
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

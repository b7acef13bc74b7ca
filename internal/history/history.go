// Package history persists interactive-mode command lines to a small
// sqlite database. Writes go through a file lock so concurrent sessions on
// the same machine do not corrupt each other.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

type Store struct {
	db          *sql.DB
	lock        *flock.Flock
	lockTimeout time.Duration
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"CREATE TABLE IF NOT EXISTS history_entries (id INTEGER PRIMARY KEY AUTOINCREMENT, line TEXT NOT NULL, created_at INTEGER NOT NULL);",
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init history schema: %w", err)
		}
	}

	return &Store{db: db, lock: flock.New(lockPath), lockTimeout: 5 * time.Second}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one line. The file lock is retried only until the
// deadline; a session holding the lock indefinitely must not wedge this one.
func (s *Store) Append(line string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock history: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	_, err = s.db.Exec(
		"INSERT INTO history_entries (line, created_at) VALUES (?, ?)",
		line, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("history write: %w", err)
	}
	return nil
}

// Recent returns up to limit lines, oldest first.
func (s *Store) Recent(limit int) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT line FROM history_entries ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history read: %w", err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history read: %w", err)
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}

// Package history persists which stories have been viewed, in a local
// SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// View is one story shown during one session.
type View struct {
	SessionID string
	StoryID   int
	User      string
	ViewedAt  time.Time
}

// Store records and queries views.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS views (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	story_id INTEGER NOT NULL,
	user TEXT NOT NULL,
	viewed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_views_user_story ON views(user, story_id);
CREATE INDEX IF NOT EXISTS idx_views_session ON views(session_id);
`

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordView stores a single view.
func (s *Store) RecordView(ctx context.Context, v View) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO views (session_id, story_id, user, viewed_at) VALUES (?, ?, ?, ?)`,
		v.SessionID, v.StoryID, v.User, v.ViewedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert view %d: %w", v.StoryID, err)
	}
	return nil
}

// Seen returns, per user, the set of story ids viewed in any session.
func (s *Store) Seen(ctx context.Context) (map[string]map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user, story_id FROM views`)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]map[int]bool)
	for rows.Next() {
		var user string
		var id int
		if err := rows.Scan(&user, &id); err != nil {
			return nil, err
		}
		if seen[user] == nil {
			seen[user] = make(map[int]bool)
		}
		seen[user][id] = true
	}
	return seen, rows.Err()
}

// Views returns the views of one session in the order they were recorded.
func (s *Store) Views(ctx context.Context, sessionID string) ([]View, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, story_id, user, viewed_at
		FROM views
		WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query views: %w", err)
	}
	defer rows.Close()

	var views []View
	for rows.Next() {
		var v View
		var at string
		if err := rows.Scan(&v.SessionID, &v.StoryID, &v.User, &at); err != nil {
			return nil, err
		}
		v.ViewedAt, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse viewed_at %q: %w", at, err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

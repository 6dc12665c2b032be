// Package history persists a local record of created posts in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one created post.
type Entry struct {
	URI       string
	CID       string
	Text      string
	CreatedAt time.Time
}

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		uri        TEXT PRIMARY KEY,
		cid        TEXT NOT NULL,
		text       TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`

// Store records created posts in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the history database at path, creating the file and schema as
// needed. The caller should call Close when the store is no longer needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records a created post. Re-recording the same URI is a no-op.
func (s *Store) Append(ctx context.Context, entry *Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (uri, cid, text, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (uri) DO NOTHING`,
		entry.URI,
		entry.CID,
		entry.Text,
		entry.CreatedAt,
	)
	return err
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, cid, text, created_at
		FROM posts
		ORDER BY created_at DESC, uri DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts (limit=%d): %w", limit, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.URI, &e.CID, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return entries, nil
}

// Package history keeps a local ledger of finished capture sessions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/pagesnap/internal/capture"
)

// Store records terminal sessions in SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Entry is one recorded session.
type Entry struct {
	SessionID  string
	URL        string
	Title      string
	State      string
	Columns    int
	Rows       int
	Captured   int
	Skipped    int
	Artifact   string
	DurationMs int64
	CreatedAt  time.Time
}

// Open opens (or creates) the history database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("history store opened", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			columns INTEGER NOT NULL DEFAULT 0,
			rows INTEGER NOT NULL DEFAULT 0,
			captured INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			artifact TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

// Record implements capture.Recorder.
func (s *Store) Record(ctx context.Context, rec capture.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions
			(id, url, title, state, columns, rows, captured, skipped, artifact, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.URL, rec.Title, string(rec.State),
		rec.Columns, rec.Rows, rec.Captured, rec.Skipped,
		rec.Artifact, rec.Duration.Milliseconds(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Recent returns the newest n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n < 1 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, state, columns, rows, captured, skipped, artifact, duration_ms, created_at
		 FROM sessions ORDER BY created_at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		err := rows.Scan(&e.SessionID, &e.URL, &e.Title, &e.State,
			&e.Columns, &e.Rows, &e.Captured, &e.Skipped,
			&e.Artifact, &e.DurationMs, &created)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package history records frame commits to SQLite so operators can see
// what each display showed and when.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mezgrman/flipdot/internal/infrastructure/database"
)

// schema is the single table this package owns. Additive changes only.
const schema = `
CREATE TABLE IF NOT EXISTS commit_log (
	id          TEXT PRIMARY KEY,
	display     TEXT NOT NULL,
	render_ms   REAL NOT NULL,
	success     INTEGER NOT NULL,
	error       TEXT,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_commit_log_display ON commit_log(display, created_at);
`

// Entry represents one committed (or failed) frame.
type Entry struct {
	ID        string        `json:"id"`
	Display   string        `json:"display"`
	Render    time.Duration `json:"render"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store persists commit entries.
type Store struct {
	db *database.DB
}

// New creates a Store and ensures its schema exists.
func New(db *database.DB) (*Store, error) {
	if _, err := db.DB.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts a commit entry. The ID and CreatedAt are generated if empty.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "cmt-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commit_log (id, display, render_ms, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Display,
		float64(e.Render.Microseconds())/1000.0,
		boolToInt(e.Success), nullableString(e.Error),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting commit entry: %w", err)
	}

	return nil
}

// Recent returns the newest entries, optionally filtered by display.
// A limit of 0 or less defaults to 50; the ceiling is 200.
func (s *Store) Recent(ctx context.Context, display string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `SELECT id, display, render_ms, success, error, created_at
	          FROM commit_log`
	var args []any
	if display != "" {
		query += ` WHERE display = ?`
		args = append(args, display)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying commit log: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			renderMS float64
			success  int
			errText  sql.NullString
			created  string
		)
		if err := rows.Scan(&e.ID, &e.Display, &renderMS, &success, &errText, &created); err != nil {
			return nil, fmt.Errorf("scanning commit entry: %w", err)
		}
		e.Render = time.Duration(renderMS * float64(time.Millisecond))
		e.Success = success != 0
		e.Error = errText.String
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading commit log: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than the retention window.
//
// Returns:
//   - int64: Number of rows removed
//   - error: If the delete fails
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM commit_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning commit log: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return n, nil
}

// boolToInt maps a bool onto SQLite's INTEGER boolean convention.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

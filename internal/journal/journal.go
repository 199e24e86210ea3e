// Package journal keeps an audit trail of every circulation request a desk made.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Outcome of a request as seen by the desk
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeError    Outcome = "error"
	OutcomeNotFound Outcome = "not_found"
)

// Entry is one request and its result
type Entry struct {
	ID        string
	At        time.Time
	Station   string
	Mode      string
	Code      string
	MemberID  int64
	Outcome   Outcome
	Detail    string
	Discarded bool // the operator had moved on before the answer arrived
	Elapsed   time.Duration
}

// Store persists entries in SQLite
type Store struct {
	db         *sql.DB
	insertStmt *sql.Stmt
}

// Open opens (or creates) the journal database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	stmt, err := db.Prepare(`INSERT INTO entries
		(id, at, station, mode, code, member_id, outcome, detail, discarded, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}

	return &Store{db: db, insertStmt: stmt}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		id         TEXT PRIMARY KEY,
		at         INTEGER NOT NULL,
		station    TEXT NOT NULL DEFAULT '',
		mode       TEXT NOT NULL,
		code       TEXT NOT NULL,
		member_id  INTEGER NOT NULL DEFAULT 0,
		outcome    TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		discarded  INTEGER NOT NULL DEFAULT 0,
		elapsed_ns INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS entries_at ON entries(at);`)
	if err != nil {
		return fmt.Errorf("create entries table: %w", err)
	}
	return nil
}

// Close releases the prepared statement and closes the database
func (s *Store) Close() error {
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	return s.db.Close()
}

// Record appends an entry, filling in its ID and time when unset
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.insertStmt.ExecContext(ctx,
		e.ID, e.At.UnixMilli(), e.Station, e.Mode, e.Code, e.MemberID,
		string(e.Outcome), e.Detail, e.Discarded, int64(e.Elapsed))
	if err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}

// List returns the newest entries first; limit <= 0 returns everything
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, at, station, mode, code, member_id, outcome, detail, discarded, elapsed_ns
		FROM entries ORDER BY at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			at      int64
			outcome string
			elapsed int64
		)
		if err := rows.Scan(&e.ID, &at, &e.Station, &e.Mode, &e.Code, &e.MemberID, &outcome, &e.Detail, &e.Discarded, &elapsed); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.At = time.UnixMilli(at)
		e.Outcome = Outcome(outcome)
		e.Elapsed = time.Duration(elapsed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

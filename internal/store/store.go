// Package store is a small local SQLite run index (SPEC_FULL §3
// RunIndexEntry), supplementing internal/journal's file-only persistence
// with a queryable history for the `nerovaagent history` and
// `nerovaagent history show` commands.
// Grounded on internal/store/pg's factory-on-startup convention, adapted
// from Postgres to a single embedded file via modernc.org/sqlite (pure Go,
// no cgo — the teacher's own choice for this exact reason).
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// RunIndexEntry is one row of the run index (SPEC_FULL §3).
type RunIndexEntry struct {
	ID           string
	BasePrompt   string
	Status       string
	Iterations   int
	StartedAt    time.Time
	FinishedAt   time.Time
	ArtifactDir  string
	ErrorMessage string
}

// Store wraps the sqlite-backed run index.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	base_prompt   TEXT NOT NULL,
	status        TEXT NOT NULL,
	iterations    INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	artifact_dir  TEXT NOT NULL,
	error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// UpsertRun writes a RunIndexEntry, inserting or replacing by ID. The
// Control Loop calls this once at run finalization (SPEC_FULL §4.5),
// alongside — not instead of — journal.WriteSummary.
func (s *Store) UpsertRun(e RunIndexEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, base_prompt, status, iterations, started_at, finished_at, artifact_dir, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			iterations = excluded.iterations,
			finished_at = excluded.finished_at,
			error_message = excluded.error_message`,
		e.ID, e.BasePrompt, e.Status, e.Iterations,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(e.FinishedAt),
		e.ArtifactDir, e.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("store: upsert run %s: %w", e.ID, err)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Get returns one run by ID.
func (s *Store) Get(id string) (*RunIndexEntry, error) {
	row := s.db.QueryRow(
		`SELECT id, base_prompt, status, iterations, started_at, finished_at, artifact_dir, error_message
		 FROM runs WHERE id = ?`, id,
	)
	e, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	return e, nil
}

// List returns runs newest-first, up to limit (0 means no limit).
func (s *Store) List(limit int) ([]RunIndexEntry, error) {
	query := `SELECT id, base_prompt, status, iterations, started_at, finished_at, artifact_dir, error_message
	          FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunIndexEntry
	for rows.Next() {
		e, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunIndexEntry, error) {
	var e RunIndexEntry
	var startedAt string
	var finishedAt, errMsg sql.NullString

	if err := row.Scan(&e.ID, &e.BasePrompt, &e.Status, &e.Iterations, &startedAt, &finishedAt, &e.ArtifactDir, &errMsg); err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		e.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
			e.FinishedAt = t
		}
	}
	e.ErrorMessage = errMsg.String
	return &e, nil
}

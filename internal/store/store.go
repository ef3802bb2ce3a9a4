// Package store persists emitted triples in SQLite so runs can be browsed
// after the fact with the inspect command.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/condtrace/condtrace/internal/report"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	logs_path   TEXT NOT NULL,
	meta_dir    TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS triples (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	suite        TEXT NOT NULL,
	test_name    TEXT NOT NULL,
	assert_id    INTEGER NOT NULL,
	assert_file  TEXT,
	assert_line  INTEGER,
	record_json  TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
CREATE INDEX IF NOT EXISTS idx_triples_run ON triples(run_id);
CREATE INDEX IF NOT EXISTS idx_triples_suite ON triples(run_id, suite, test_name);
`

// #endregion schema

// #region types

// Run is one recorded pipeline execution.
type Run struct {
	RunID     string
	LogsPath  string
	MetaDir   string
	CreatedAt time.Time
}

// TripleRow is one stored triple with its addressing columns.
type TripleRow struct {
	ID       int64
	RunID    string
	Suite    string
	TestName string
	AssertID uint64
	File     string
	Line     int
	Record   report.Record
}

// Store manages the report database.
type Store struct {
	db *sql.DB
}

// #endregion types

// #region constructor

// Open opens (or creates) the report database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open report db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region runs

// BeginRun registers a new run and returns its identifier.
func (s *Store) BeginRun(logsPath, metaDir string) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, logs_path, meta_dir, created_at) VALUES (?, ?, ?, ?)`,
		runID, logsPath, metaDir, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT run_id, logs_path, COALESCE(meta_dir, ''), created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt string
		if err := rows.Scan(&r.RunID, &r.LogsPath, &r.MetaDir, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// #endregion runs

// #region triples

// InsertTriple stores one emitted record under a run.
func (s *Store) InsertTriple(runID string, rec report.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO triples (run_id, suite, test_name, assert_id, assert_file, assert_line, record_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Test.Suite, rec.Test.Name, rec.Assertion.AssertID,
		rec.Assertion.File, rec.Assertion.Line, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert triple: %w", err)
	}
	return nil
}

// ListTriples returns the stored triples of a run in insertion order,
// optionally filtered by suite/test-name substrings.
func (s *Store) ListTriples(runID, suiteFilter, nameFilter string) ([]TripleRow, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, suite, test_name, assert_id, COALESCE(assert_file, ''), COALESCE(assert_line, 0), record_json
		 FROM triples
		 WHERE run_id = ?
		   AND suite LIKE '%' || ? || '%'
		   AND test_name LIKE '%' || ? || '%'
		 ORDER BY id ASC`,
		runID, suiteFilter, nameFilter,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TripleRow
	for rows.Next() {
		var t TripleRow
		var recJSON string
		if err := rows.Scan(&t.ID, &t.RunID, &t.Suite, &t.TestName, &t.AssertID, &t.File, &t.Line, &recJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(recJSON), &t.Record); err != nil {
			return nil, fmt.Errorf("decode stored record %d: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// #endregion triples

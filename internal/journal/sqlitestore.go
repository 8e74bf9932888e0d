package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mavwarf/anchorpatch/internal/paths"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) a SQLite database at path, creates
// tables and indexes, and performs one-time migration from journal.log
// if it exists in the same directory.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), paths.DirPerm); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs are per connection; a single connection keeps foreign_keys
	// in effect for every statement.
	db.SetMaxOpenConns(1)

	// Set PRAGMAs before any DDL.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}

	// Timestamps are stored as UTC RFC3339 so that text comparison orders them.
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT    PRIMARY KEY,
    seq        INTEGER NOT NULL,
    timestamp  TEXT    NOT NULL,
    target     TEXT    NOT NULL DEFAULT '',
    plan       TEXT    NOT NULL DEFAULT '',
    outcome    TEXT    NOT NULL,
    written    INTEGER NOT NULL DEFAULT 0,
    error      TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_steps (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id       TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    step_num     INTEGER NOT NULL,
    name         TEXT    NOT NULL DEFAULT '',
    occurrence   TEXT    NOT NULL,
    replacements INTEGER NOT NULL DEFAULT 0,
    skipped      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_runs_target    ON runs(target);
CREATE INDEX IF NOT EXISTS idx_steps_run      ON run_steps(run_id, step_num);
`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}

	// One-time migration from flat file.
	logPath := filepath.Join(filepath.Dir(path), paths.JournalFileName)
	if _, err := os.Stat(logPath); err == nil {
		if err := s.migrateFromFile(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "journal: migration: %v\n", err)
		}
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) Record(run Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRun(tx, run); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRun(db execer, run Run) error {
	written := 0
	if run.Written {
		written = 1
	}
	if _, err := db.Exec(
		`INSERT INTO runs (id, seq, timestamp, target, plan, outcome, written, error)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Time.UTC().Format(time.RFC3339), run.Target, run.Plan,
		string(run.Outcome), written, run.Error,
	); err != nil {
		return err
	}

	for _, st := range run.Steps {
		skipped := 0
		if st.Skipped {
			skipped = 1
		}
		if _, err := db.Exec(
			`INSERT INTO run_steps (run_id, step_num, name, occurrence, replacements, skipped)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, st.Index, st.Name, st.Occurrence, st.Replacements, skipped,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Entries(days int) ([]Run, error) {
	query := `SELECT id, timestamp, target, plan, outcome, written, error FROM runs`
	var args []any
	if days > 0 {
		query += ` WHERE timestamp >= ?`
		args = append(args, DayCutoff(days).UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY seq`
	return s.queryRuns(query, args...)
}

func (s *SQLiteStore) queryRuns(query string, args ...any) ([]Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	index := map[string]int{}
	for rows.Next() {
		var r Run
		var tsStr, outcome string
		var written int
		if err := rows.Scan(&r.ID, &tsStr, &r.Target, &r.Plan, &outcome, &written, &r.Error); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, tsStr)
		if err != nil {
			continue
		}
		r.Time = ts.Local()
		r.Outcome = Outcome(outcome)
		r.Written = written != 0
		index[r.ID] = len(runs)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}

	stepRows, err := s.db.Query(
		`SELECT run_id, step_num, name, occurrence, replacements, skipped
		 FROM run_steps ORDER BY run_id, step_num`)
	if err != nil {
		return nil, err
	}
	defer stepRows.Close()

	for stepRows.Next() {
		var runID string
		var st Step
		var skipped int
		if err := stepRows.Scan(&runID, &st.Index, &st.Name, &st.Occurrence, &st.Replacements, &skipped); err != nil {
			return nil, err
		}
		i, ok := index[runID]
		if !ok {
			continue
		}
		st.Skipped = skipped != 0
		runs[i].Steps = append(runs[i].Steps, st)
	}
	return runs, stepRows.Err()
}

// ReadContent renders every run in the flat-file format.
func (s *SQLiteStore) ReadContent() (string, error) {
	runs, err := s.Entries(0)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(FormatRun(r))
	}
	return b.String(), nil
}

func (s *SQLiteStore) Clean(days int) (int, error) {
	cutoff := DayCutoff(days).UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`DELETE FROM runs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM runs`)
	return err
}

func (s *SQLiteStore) Path() string {
	return s.path
}

// migrateFromFile imports an existing journal.log into the database. On
// success, renames the log to journal.log.migrated.
func (s *SQLiteStore) migrateFromFile(logPath string) error {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return err
	}
	runs := ParseRuns(string(data))

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range runs {
		if r.ID == "" {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, r.ID); err != nil {
			return fmt.Errorf("migrate run: %w", err)
		}
		if err := insertRun(tx, r); err != nil {
			return fmt.Errorf("migrate run: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "journal: migrated %d runs from %s\n", len(runs), paths.JournalFileName)
	return os.Rename(logPath, logPath+".migrated")
}

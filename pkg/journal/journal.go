package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultPath is where run history is kept when the journal is enabled without an explicit path.
const DefaultPath = "/var/lib/peerlab-bird/state.db"

const schema = `CREATE TABLE IF NOT EXISTS runs(
	run_id TEXT PRIMARY KEY,
	ts INTEGER NOT NULL,
	output TEXT NOT NULL,
	digest TEXT NOT NULL,
	changed INTEGER NOT NULL,
	clauses INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(ts);`

// Entry is one recorded sync cycle.
type Entry struct {
	RunID   string
	Time    time.Time
	Output  string
	Digest  string
	Changed bool
	Clauses int
	Skipped int
	Detail  string
}

// Journal records sync cycles in a local SQLite database.
type Journal struct {
	db *sql.DB
}

// Open creates (if needed) and opens the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal mkdir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal init schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record stores e.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	changed := 0
	if e.Changed {
		changed = 1
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, ts, output, digest, changed, clauses, skipped, detail) VALUES(?,?,?,?,?,?,?,?)`,
		e.RunID, e.Time.UnixNano(), e.Output, e.Digest, changed, e.Clauses, e.Skipped, e.Detail)
	if err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT run_id, ts, output, digest, changed, clauses, skipped, detail FROM runs ORDER BY ts DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			ts      int64
			changed int
		)
		if err := rows.Scan(&e.RunID, &ts, &e.Output, &e.Digest, &changed, &e.Clauses, &e.Skipped, &e.Detail); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Time = time.Unix(0, ts).UTC()
		e.Changed = changed == 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastChange returns the newest entry that replaced the output file.
func (j *Journal) LastChange(ctx context.Context) (Entry, bool, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT run_id, ts, output, digest, changed, clauses, skipped, detail FROM runs WHERE changed = 1 ORDER BY ts DESC LIMIT 1`)
	var (
		e       Entry
		ts      int64
		changed int
	)
	err := row.Scan(&e.RunID, &ts, &e.Output, &e.Digest, &changed, &e.Clauses, &e.Skipped, &e.Detail)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("journal last change: %w", err)
	}
	e.Time = time.Unix(0, ts).UTC()
	e.Changed = true
	return e, true, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/netsheet-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_attempts (
	id               TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL REFERENCES runs(id),
	attempt_number   INTEGER NOT NULL,
	method           TEXT NOT NULL,
	success          BOOLEAN NOT NULL,
	fields_extracted INTEGER NOT NULL,
	error            TEXT NOT NULL DEFAULT '',
	timed_out        BOOLEAN NOT NULL DEFAULT 0,
	duration_ms      INTEGER NOT NULL,
	cost_usd         REAL NOT NULL DEFAULT 0,
	started_at       DATETIME NOT NULL,
	UNIQUE (run_id, attempt_number)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document);
CREATE INDEX IF NOT EXISTS idx_run_attempts_run_id ON run_attempts(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, document string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, document, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, document, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Document:  document,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, runID string, a model.ExtractionAttempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_attempts (id, run_id, attempt_number, method, success, fields_extracted, error, timed_out, duration_ms, cost_usd, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, a.AttemptNumber, string(a.Method), a.Success, a.FieldsExtracted,
		a.Error, a.TimedOut, a.Duration.Milliseconds(), a.CostUSD, a.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record attempt %d for run %s", a.AttemptNumber, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts(ctx, runID)
	if err != nil {
		return nil, err
	}
	r.Attempts = attempts
	return r, nil
}

func (s *SQLiteStore) attempts(ctx context.Context, runID string) ([]model.ExtractionAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_number, method, success, fields_extracted, error, timed_out, duration_ms, cost_usd, started_at
		 FROM run_attempts WHERE run_id = ? ORDER BY attempt_number`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ExtractionAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list attempts iterate")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, document, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Document != "" {
		query += ` AND document = ?`
		args = append(args, filter.Document)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Document, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}

func scanAttempt(row scannable) (model.ExtractionAttempt, error) {
	var (
		a          model.ExtractionAttempt
		method     string
		durationMs int64
	)
	err := row.Scan(&a.AttemptNumber, &method, &a.Success, &a.FieldsExtracted, &a.Error,
		&a.TimedOut, &durationMs, &a.CostUSD, &a.StartedAt)
	if err != nil {
		return a, err
	}
	a.Method = model.Method(method)
	a.Duration = time.Duration(durationMs) * time.Millisecond
	return a, nil
}

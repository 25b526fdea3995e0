package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/construdata/proposta-cli/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL DEFAULT '',
	file_name              TEXT NOT NULL,
	file_size              INTEGER NOT NULL DEFAULT 0,
	method                 TEXT NOT NULL,
	status                 TEXT NOT NULL,
	identified_client      TEXT NOT NULL DEFAULT '',
	extracted_total        REAL NOT NULL DEFAULT 0,
	quality_score          REAL NOT NULL DEFAULT 0,
	elapsed_ms             INTEGER NOT NULL DEFAULT 0,
	raw_result_json        TEXT,
	structured_result_json TEXT,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_extraction_runs_status ON extraction_runs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_user ON extraction_runs(user_id);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_method ON extraction_runs(method);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run record and returns its id. A missing id is assigned.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.ExtractionRun) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var structured []byte
	if run.Proposal != nil {
		var err error
		structured, err = json.Marshal(run.Proposal)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: marshal structured result")
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_runs
			(id, user_id, file_name, file_size, method, status, identified_client,
			 extracted_total, quality_score, elapsed_ms, raw_result_json,
			 structured_result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, run.FileName, run.FileSize, string(run.Method),
		string(run.Status), run.Client, run.Total, run.Quality, run.ElapsedMS,
		nullIfEmpty(run.RawResult), nullIfEmpty(string(structured)), run.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}

	return run.ID, nil
}

// GetRun loads one run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_name, file_size, method, status,
		       identified_client, extracted_total, quality_score, elapsed_ms,
		       raw_result_json, structured_result_json, created_at
		FROM extraction_runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error) {
	query := `
		SELECT id, user_id, file_name, file_size, method, status,
		       identified_client, extracted_total, quality_score, elapsed_ms,
		       raw_result_json, structured_result_json, created_at
		FROM extraction_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Method != "" {
		query += " AND method = ?"
		args = append(args, string(filter.Method))
	}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ExtractionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.ExtractionRun, error) {
	var run model.ExtractionRun
	var method, status string
	var raw, structured sql.NullString

	err := row.Scan(&run.ID, &run.UserID, &run.FileName, &run.FileSize,
		&method, &status, &run.Client, &run.Total, &run.Quality,
		&run.ElapsedMS, &raw, &structured, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	run.Method = model.ExtractionMethod(method)
	run.Status = model.RunStatus(status)
	if raw.Valid {
		run.RawResult = raw.String
	}
	if structured.Valid && structured.String != "" {
		var p model.Proposal
		if err := json.Unmarshal([]byte(structured.String), &p); err == nil {
			run.Proposal = &p
		}
	}

	return &run, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

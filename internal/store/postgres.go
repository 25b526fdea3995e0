package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/construdata/proposta-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id                     UUID PRIMARY KEY,
	user_id                TEXT NOT NULL DEFAULT '',
	file_name              TEXT NOT NULL,
	file_size              BIGINT NOT NULL DEFAULT 0,
	method                 TEXT NOT NULL,
	status                 TEXT NOT NULL,
	identified_client      TEXT NOT NULL DEFAULT '',
	extracted_total        DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_score          DOUBLE PRECISION NOT NULL DEFAULT 0,
	elapsed_ms             BIGINT NOT NULL DEFAULT 0,
	raw_result_json        TEXT,
	structured_result_json JSONB,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extraction_runs_status ON extraction_runs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_user ON extraction_runs(user_id);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_method ON extraction_runs(method);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

// SaveRun inserts a run record and returns its id.
func (s *PostgresStore) SaveRun(ctx context.Context, run *model.ExtractionRun) (string, error) {
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
			return "", eris.Wrap(err, "postgres: marshal structured result")
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO extraction_runs
			(id, user_id, file_name, file_size, method, status, identified_client,
			 extracted_total, quality_score, elapsed_ms, raw_result_json,
			 structured_result_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, run.UserID, run.FileName, run.FileSize, string(run.Method),
		string(run.Status), run.Client, run.Total, run.Quality, run.ElapsedMS,
		nullIfEmpty(run.RawResult), nullIfEmpty(string(structured)), run.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert run")
	}

	return run.ID, nil
}

// GetRun loads one run by id.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, file_name, file_size, method, status,
		       identified_client, extracted_total, quality_score, elapsed_ms,
		       raw_result_json, structured_result_json, created_at
		FROM extraction_runs WHERE id = $1`, runID)

	run, err := scanPgRun(row)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("postgres: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error) {
	query := `
		SELECT id, user_id, file_name, file_size, method, status,
		       identified_client, extracted_total, quality_score, elapsed_ms,
		       raw_result_json, structured_result_json, created_at
		FROM extraction_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.Method != "" {
		args = append(args, string(filter.Method))
		query += " AND method = $" + strconv.Itoa(len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += " AND user_id = $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ExtractionRun
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func scanPgRun(row pgx.Row) (*model.ExtractionRun, error) {
	var run model.ExtractionRun
	var method, status string
	var raw, structured *string

	err := row.Scan(&run.ID, &run.UserID, &run.FileName, &run.FileSize,
		&method, &status, &run.Client, &run.Total, &run.Quality,
		&run.ElapsedMS, &raw, &structured, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	run.Method = model.ExtractionMethod(method)
	run.Status = model.RunStatus(status)
	if raw != nil {
		run.RawResult = *raw
	}
	if structured != nil && *structured != "" {
		var p model.Proposal
		if err := json.Unmarshal([]byte(*structured), &p); err == nil {
			run.Proposal = &p
		}
	}

	return &run, nil
}

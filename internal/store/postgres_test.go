package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construdata/proposta-cli/internal/model"
)

func TestPostgresSaveRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO extraction_runs").
		WithArgs(pgxmock.AnyArg(), "user-1", "proposta.pdf", int64(2048),
			"remote-service", "completed", "Construtora Alfa Ltda",
			6201.00, 0.85, int64(3200), nil, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := NewPostgresWithPool(mock)
	id, err := s.SaveRun(context.Background(), sampleRun())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	structured := `{"client":"Construtora Alfa Ltda","items":[{"description":"Placa Gesso ST","quantity":100,"unit":"PC","unit_price":62.01,"total":6201}],"subtotal":6201,"total":6201}`
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "file_name", "file_size", "method", "status",
		"identified_client", "extracted_total", "quality_score", "elapsed_ms",
		"raw_result_json", "structured_result_json", "created_at",
	}).AddRow("run-1", "user-1", "proposta.pdf", int64(2048), "remote-service",
		"completed", "Construtora Alfa Ltda", 6201.00, 0.85, int64(3200),
		(*string)(nil), &structured, now)

	mock.ExpectQuery(`FROM extraction_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	s := NewPostgresWithPool(mock)
	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, model.MethodRemoteService, got.Method)
	require.NotNil(t, got.Proposal)
	require.Len(t, got.Proposal.Items, 1)
	assert.InDelta(t, 62.01, got.Proposal.Items[0].UnitPrice, 0.001)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRuns_FilterPlaceholders(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "file_name", "file_size", "method", "status",
		"identified_client", "extracted_total", "quality_score", "elapsed_ms",
		"raw_result_json", "structured_result_json", "created_at",
	}).AddRow("run-2", "user-2", "outra.pdf", int64(1024), "synthetic-fallback",
		"degraded", "", 0.0, 0.2, int64(90), (*string)(nil), (*string)(nil), time.Now())

	mock.ExpectQuery(`WHERE 1=1 AND status = \$1 AND user_id = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("degraded", "user-2", 10).
		WillReturnRows(rows)

	s := NewPostgresWithPool(mock)
	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status: model.StatusDegraded,
		UserID: "user-2",
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.StatusDegraded, runs[0].Status)
	assert.Nil(t, runs[0].Proposal)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS extraction_runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	s := NewPostgresWithPool(mock)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construdata/proposta-cli/internal/model"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRun() *model.ExtractionRun {
	p := model.NewProposal()
	p.Client = "Construtora Alfa Ltda"
	p.Items = []model.LineItem{
		{Description: "Placa Gesso ST", Quantity: 100, Unit: "PC", UnitPrice: 62.01, Total: 6201.00},
	}
	p.Subtotal = 6201.00
	p.Total = 6201.00

	return &model.ExtractionRun{
		UserID:    "user-1",
		FileName:  "proposta.pdf",
		FileSize:  2048,
		Method:    model.MethodRemoteService,
		Status:    model.StatusCompleted,
		Client:    p.Client,
		Total:     p.Total,
		Quality:   0.85,
		ElapsedMS: 3200,
		Proposal:  p,
	}
}

func TestSQLiteSaveAndGet(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, sampleRun())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, model.MethodRemoteService, got.Method)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "Construtora Alfa Ltda", got.Client)
	assert.InDelta(t, 6201.00, got.Total, 0.001)
	assert.InDelta(t, 0.85, got.Quality, 0.001)
	require.NotNil(t, got.Proposal)
	require.Len(t, got.Proposal.Items, 1)
	assert.Equal(t, "Placa Gesso ST", got.Proposal.Items[0].Description)
}

func TestSQLiteGetRun_NotFound(t *testing.T) {
	s := newSQLiteStore(t)

	_, err := s.GetRun(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteSaveRun_NilProposal(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	run := sampleRun()
	run.Proposal = nil
	run.Status = model.StatusFailed

	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Proposal)
	assert.Equal(t, model.StatusFailed, got.Status)
}

func TestSQLiteListRuns_Filters(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	completed := sampleRun()
	_, err := s.SaveRun(ctx, completed)
	require.NoError(t, err)

	degraded := sampleRun()
	degraded.Status = model.StatusDegraded
	degraded.Method = model.MethodSyntheticFallback
	degraded.UserID = "user-2"
	_, err = s.SaveRun(ctx, degraded)
	require.NoError(t, err)

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byStatus, err := s.ListRuns(ctx, RunFilter{Status: model.StatusDegraded})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, model.MethodSyntheticFallback, byStatus[0].Method)

	byUser, err := s.ListRuns(ctx, RunFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, model.StatusCompleted, byUser[0].Status)

	byMethod, err := s.ListRuns(ctx, RunFilter{Method: model.MethodRemoteService})
	require.NoError(t, err)
	assert.Len(t, byMethod, 1)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteSaveRun_KeepsProvidedID(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	run := sampleRun()
	run.ID = "fixed-id-123"

	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id-123", id)
}

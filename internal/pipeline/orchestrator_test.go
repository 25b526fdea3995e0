package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/construdata/proposta-cli/internal/cache"
	"github.com/construdata/proposta-cli/internal/extract"
	"github.com/construdata/proposta-cli/internal/model"
	"github.com/construdata/proposta-cli/internal/parse"
	"github.com/construdata/proposta-cli/internal/store"
	"github.com/construdata/proposta-cli/pkg/doccloud"
)

// stubDocClient satisfies doccloud.Client; only ExtractDocument is exercised
// through the remote tier.
type stubDocClient struct {
	mu      sync.Mutex
	calls   int
	extract func() (*doccloud.ExtractionResult, error)
}

func (s *stubDocClient) Authenticate(context.Context) (string, error) { return "tok", nil }
func (s *stubDocClient) UploadAsset(context.Context, string, []byte, string) (string, error) {
	return "asset", nil
}
func (s *stubDocClient) StartExtraction(context.Context, string, string) (string, error) {
	return "/job", nil
}
func (s *stubDocClient) PollResult(context.Context, string, string, ...doccloud.PollOption) (*doccloud.JobStatus, error) {
	return &doccloud.JobStatus{Status: "done"}, nil
}
func (s *stubDocClient) DownloadResult(context.Context, string) ([]byte, error) { return nil, nil }

func (s *stubDocClient) ExtractDocument(context.Context, []byte, string) (*doccloud.ExtractionResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.extract()
}

func (s *stubDocClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memStore records saved runs in memory.
type memStore struct {
	mu   sync.Mutex
	runs []*model.ExtractionRun
}

func (m *memStore) SaveRun(_ context.Context, run *model.ExtractionRun) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return run.ID, nil
}
func (m *memStore) GetRun(context.Context, string) (*model.ExtractionRun, error) { return nil, nil }
func (m *memStore) ListRuns(context.Context, store.RunFilter) ([]model.ExtractionRun, error) {
	return nil, nil
}
func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func (m *memStore) last() *model.ExtractionRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return nil
	}
	return m.runs[len(m.runs)-1]
}

func goodRemoteResult() (*doccloud.ExtractionResult, error) {
	return &doccloud.ExtractionResult{
		Elements: []doccloud.Element{{Text: "Cliente: Construtora Alfa Ltda\nVALOR TOTAL: R$ 6.201,00"}},
		Tables: []doccloud.Table{{Rows: [][]string{
			{"Descrição", "Qtd", "Valor Unitário", "Valor Total"},
			{"Placa Gesso ST 12,5mm", "100", "62,01", "6.201,00"},
		}}},
	}, nil
}

// scrapeableData is plain readable bytes the direct tier can parse when the
// remote tier is down.
var scrapeableData = []byte("Cliente: Construtora Alfa Ltda\n" +
	"Placa Gesso ST 12,5mm  100  62,01  6.201,00\n" +
	"TOTAL: R$ 6.201,00\n")

func newTestOrchestrator(client *stubDocClient, st store.Store, c cache.Cache, opts Options) *Orchestrator {
	var remote *extract.Remote
	if client != nil {
		remote = extract.NewRemote(client)
	}
	return NewOrchestrator(opts, remote, parse.NewParser(1.0), nil, st, c)
}

func TestProcess_RemoteSuccess(t *testing.T) {
	client := &stubDocClient{extract: goodRemoteResult}
	st := &memStore{}

	o := newTestOrchestrator(client, st, cache.Noop{}, Options{})
	result, err := o.Process(context.Background(), []byte("%PDF"), "proposta.pdf", "user-1")
	require.NoError(t, err)

	assert.Equal(t, model.MethodRemoteService, result.Method)
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, "Construtora Alfa Ltda", result.Proposal.Client)
	require.Len(t, result.Proposal.Items, 1)
	assert.InDelta(t, 6201.00, result.Proposal.Total, 0.001)
	assert.Greater(t, result.Quality, 0.0)

	run := st.last()
	require.NotNil(t, run)
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, "user-1", run.UserID)
	assert.Equal(t, model.StatusCompleted, run.Status)
}

func TestProcess_FallsBackToDirectText(t *testing.T) {
	client := &stubDocClient{extract: func() (*doccloud.ExtractionResult, error) {
		return nil, &doccloud.TimeoutError{Step: "poll", Attempts: 20, Elapsed: time.Minute}
	}}
	st := &memStore{}

	o := newTestOrchestrator(client, st, cache.Noop{}, Options{})
	result, err := o.Process(context.Background(), scrapeableData, "proposta.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, model.MethodDirectText, result.Method)
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, "Construtora Alfa Ltda", result.Proposal.Client)
	assert.NotEmpty(t, result.Proposal.Items)
}

func TestProcess_FallsBackToSynthetic(t *testing.T) {
	client := &stubDocClient{extract: func() (*doccloud.ExtractionResult, error) {
		return nil, &doccloud.AuthError{StatusCode: 401, Body: "expired"}
	}}
	st := &memStore{}

	o := newTestOrchestrator(client, st, cache.NewMemory(), Options{})
	result, err := o.Process(context.Background(), []byte{0x00, 0x01}, "ilegivel.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, model.MethodSyntheticFallback, result.Method)
	assert.Equal(t, model.StatusDegraded, result.Status)
	assert.NotEmpty(t, result.Warning)
	assert.True(t, result.Proposal.TotalsConsistent(0.01))

	// A second pass still runs the chain: synthetic results are not memoized.
	_, err = o.Process(context.Background(), []byte{0x00, 0x01}, "ilegivel.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount())
}

func TestProcess_ProductionFailsHard(t *testing.T) {
	client := &stubDocClient{extract: func() (*doccloud.ExtractionResult, error) {
		return nil, &doccloud.TimeoutError{Step: "poll", Attempts: 20, Elapsed: time.Minute}
	}}
	st := &memStore{}

	o := newTestOrchestrator(client, st, cache.Noop{}, Options{Production: true})

	done := make(chan struct{})
	var result *Result
	var err error
	go func() {
		result, err = o.Process(context.Background(), []byte{0x00}, "doc.pdf", "user-9")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("exhausted chain did not terminate")
	}

	require.Nil(t, result)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.NotEmpty(t, failure.RequestID)
	assert.NotEmpty(t, failure.Suggestions)

	run := st.last()
	require.NotNil(t, run)
	assert.Equal(t, model.StatusFailed, run.Status)
	assert.Equal(t, "user-9", run.UserID)
}

func TestProcess_CacheShortCircuits(t *testing.T) {
	client := &stubDocClient{extract: goodRemoteResult}
	st := &memStore{}

	o := newTestOrchestrator(client, st, cache.NewMemory(), Options{})
	first, err := o.Process(context.Background(), []byte("%PDF"), "proposta.pdf", "")
	require.NoError(t, err)

	second, err := o.Process(context.Background(), []byte("%PDF"), "proposta.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, 1, client.callCount(), "identical input is served from cache")
	assert.Equal(t, first.Proposal.Client, second.Proposal.Client)
	assert.Equal(t, first.Method, second.Method)
	assert.NotEqual(t, first.RunID, second.RunID, "each request keeps its own run record")
}

func TestProcess_NoRemoteTierConfigured(t *testing.T) {
	st := &memStore{}

	o := newTestOrchestrator(nil, st, cache.Noop{}, Options{})
	result, err := o.Process(context.Background(), scrapeableData, "proposta.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, model.MethodDirectText, result.Method)
}

type stubAI struct {
	response string
}

func (s *stubAI) Complete(context.Context, string, string) (string, error) {
	return s.response, nil
}

func TestProcess_AIEnhancesWeakParse(t *testing.T) {
	st := &memStore{}
	ai := &stubAI{response: `{
		"client": "Construtora Alfa Ltda",
		"vendor": "Ricardo Mendes",
		"payment_terms": "30/60 dias",
		"items": [{"description": "Placa Gesso ST", "quantity": 100, "unit_price": 62.01, "total": 6201.00}],
		"total": 6201.00
	}`}

	o := NewOrchestrator(Options{QualityThreshold: 0.9}, nil, parse.NewParser(1.0), ai, st, cache.Noop{})

	// Items but no client or vendor: the rule-based score falls below 0.9.
	data := []byte("Placa Gesso ST 12,5mm  100  62,01  6.201,00\n")
	result, err := o.Process(context.Background(), data, "fraco.pdf", "")
	require.NoError(t, err)

	assert.Equal(t, model.MethodDirectText, result.Method)
	assert.Equal(t, "Construtora Alfa Ltda", result.Proposal.Client)
	assert.Equal(t, "Ricardo Mendes", result.Proposal.Vendor)
	assert.InDelta(t, 1.0, result.Quality, 0.001)
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&doccloud.CredentialError{Missing: []string{"client_id"}}, "missing-credentials"},
		{&doccloud.AuthError{StatusCode: 401}, "auth-rejected"},
		{&doccloud.UploadError{StatusCode: 500}, "upload-failed"},
		{&doccloud.SubmissionError{StatusCode: 400}, "submission-failed"},
		{&doccloud.TimeoutError{Step: "poll"}, "timeout-poll"},
		{&doccloud.TimeoutError{Step: "upload"}, "timeout-upload"},
		{&doccloud.MalformedResponseError{Path: "status"}, "malformed-response"},
		{&extract.EmptyResultError{FileName: "x.pdf"}, "empty-result"},
		{&extract.ErrFallbackDisabled{FileName: "x.pdf"}, "fallback-disabled"},
		{assert.AnError, "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, failureReason(tt.err), tt.want)
	}
}

// Package pipeline orchestrates the multi-tier extraction of commercial
// documents: remote service first, direct local scraping on failure,
// synthetic fallback as a last resort. Whichever tier succeeds, its result is
// persisted and returned tagged with the method used.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/construdata/proposta-cli/internal/cache"
	"github.com/construdata/proposta-cli/internal/extract"
	"github.com/construdata/proposta-cli/internal/model"
	"github.com/construdata/proposta-cli/internal/parse"
	"github.com/construdata/proposta-cli/internal/store"
	"github.com/construdata/proposta-cli/pkg/aiparse"
)

// Result is one terminal pipeline outcome.
type Result struct {
	RunID    string                 `json:"id"`
	Method   model.ExtractionMethod `json:"method"`
	Status   model.RunStatus        `json:"status"`
	Proposal *model.Proposal        `json:"proposal"`
	Quality  float64                `json:"quality_score"`
	Elapsed  time.Duration          `json:"-"`
	Warning  string                 `json:"warning,omitempty"`
}

// Options configures an Orchestrator.
type Options struct {
	OuterTimeout     time.Duration
	RemoteTimeout    time.Duration
	QualityThreshold float64
	CacheTTL         time.Duration
	Production       bool
}

func (o Options) withDefaults() Options {
	if o.OuterTimeout <= 0 {
		o.OuterTimeout = 90 * time.Second
	}
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = 45 * time.Second
	}
	if o.QualityThreshold <= 0 {
		o.QualityThreshold = 0.4
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 30 * time.Minute
	}
	return o
}

// Orchestrator runs the tier chain for each uploaded file. Each run owns its
// own data; no state is shared across concurrent runs except the cache.
type Orchestrator struct {
	opts      Options
	remote    *extract.Remote // nil when remote credentials are absent
	scraper   *extract.Scraper
	synthetic *extract.Synthetic
	parser    *parse.Parser
	ai        aiparse.Client // nil when no AI provider is configured
	store     store.Store    // nil in library use without persistence
	cache     cache.Cache
}

// NewOrchestrator wires the pipeline. remote, ai and st may be nil; the
// corresponding behaviors are skipped.
func NewOrchestrator(opts Options, remote *extract.Remote, parser *parse.Parser, ai aiparse.Client, st store.Store, c cache.Cache) *Orchestrator {
	if c == nil {
		c = cache.Noop{}
	}
	return &Orchestrator{
		opts:      opts.withDefaults(),
		remote:    remote,
		scraper:   extract.NewScraper(),
		synthetic: extract.NewSynthetic(opts.Production),
		parser:    parser,
		ai:        ai,
		store:     st,
		cache:     c,
	}
}

// tier is one attempt in the fallback chain.
type tier struct {
	method model.ExtractionMethod
	run    func(ctx context.Context) (*model.Proposal, error)
}

// cachedResult is the memoized outcome of a prior identical extraction.
type cachedResult struct {
	Method   model.ExtractionMethod `json:"method"`
	Proposal *model.Proposal        `json:"proposal"`
}

// Process runs one file through the pipeline. It always returns either a
// Result or a *Failure; tier-local errors never surface to the caller.
func (o *Orchestrator) Process(ctx context.Context, data []byte, fileName, userID string) (*Result, error) {
	requestID := uuid.New().String()
	start := time.Now()

	log := zap.L().With(
		zap.String("request_id", requestID),
		zap.String("file", fileName),
		zap.Int("size", len(data)),
	)

	// The outer deadline is authoritative: when it elapses, in-flight remote
	// calls are cancelled through their derived contexts.
	ctx, cancel := context.WithTimeout(ctx, o.opts.OuterTimeout)
	defer cancel()

	cacheKey := cache.Key(data, []byte(fileName))
	if hit, ok := o.cache.Get(cacheKey); ok {
		var cached cachedResult
		if err := json.Unmarshal(hit, &cached); err == nil && cached.Proposal != nil {
			log.Info("cache hit", zap.String("method", string(cached.Method)))
			return o.finish(ctx, log, requestID, fileName, userID, int64(len(data)), cached.Method, cached.Proposal, start, "")
		}
	}

	// Text recovered by an earlier tier is preserved for later ones: a parse
	// that hung downstream should not force re-extraction.
	var recoveredText string

	tiers := []tier{
		{model.MethodRemoteService, func(ctx context.Context) (*model.Proposal, error) {
			return o.remoteTier(ctx, requestID, data, fileName, &recoveredText)
		}},
		{model.MethodDirectText, func(ctx context.Context) (*model.Proposal, error) {
			return o.directTier(ctx, requestID, data, fileName, &recoveredText)
		}},
		{model.MethodSyntheticFallback, func(ctx context.Context) (*model.Proposal, error) {
			return o.synthetic.Proposal(fileName)
		}},
	}

	var lastErr error
	for attempt, t := range tiers {
		if t.method == model.MethodRemoteService && o.remote == nil {
			continue
		}

		proposal, err := t.run(ctx)
		if err == nil && proposal != nil {
			warning := ""
			if t.method == model.MethodSyntheticFallback {
				warning = "resultado sintético: o documento não pôde ser extraído"
			}
			if result, ferr := o.finish(ctx, log, requestID, fileName, userID, int64(len(data)), t.method, proposal, start, warning); ferr == nil {
				o.memoize(cacheKey, t.method, proposal)
				return result, nil
			} else {
				lastErr = ferr
				continue
			}
		}

		lastErr = err
		log.Warn("extraction tier failed",
			zap.String("tier", string(t.method)),
			zap.String("reason", failureReason(err)),
			zap.Int("attempt", attempt+1),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}

	o.persistFailure(ctx, requestID, fileName, userID, int64(len(data)), start)

	log.Error("all extraction tiers failed", zap.Duration("elapsed", time.Since(start)))
	return nil, &Failure{
		RequestID:   requestID,
		Err:         lastErr,
		Suggestions: defaultSuggestions,
	}
}

// remoteTier runs the remote service path under its own shorter deadline so
// a hung remote call cannot consume the whole budget.
func (o *Orchestrator) remoteTier(ctx context.Context, requestID string, data []byte, fileName string, recoveredText *string) (*model.Proposal, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.RemoteTimeout)
	defer cancel()

	result, err := o.remote.ExtractResult(ctx, data, fileName)
	if err != nil {
		return nil, err
	}
	*recoveredText = result.Text()

	proposal := o.parser.Parse(requestID, result)
	proposal = o.maybeEnhance(ctx, requestID, proposal, result.Text())

	if !parse.Usable(proposal) {
		return nil, &parse.ParseError{Reason: "remote result yielded no items or totals"}
	}
	return proposal, nil
}

// directTier scrapes the raw bytes locally. Text already recovered by the
// remote tier is reused instead of re-scraping.
func (o *Orchestrator) directTier(ctx context.Context, requestID string, data []byte, fileName string, recoveredText *string) (*model.Proposal, error) {
	text := *recoveredText
	if text == "" {
		var err error
		text, err = o.scraper.ExtractText(ctx, data, fileName)
		if err != nil {
			return nil, err
		}
		*recoveredText = text
	}
	if text == "" {
		return nil, &parse.ParseError{Reason: "no readable text recovered from byte buffer"}
	}

	proposal := o.parser.ParseText(requestID, text)
	proposal = o.maybeEnhance(ctx, requestID, proposal, text)

	if !parse.Usable(proposal) {
		return nil, &parse.ParseError{Reason: "scraped text yielded no items or totals"}
	}
	return proposal, nil
}

// maybeEnhance asks the AI-completion service to re-parse the text when the
// rule-based result scored below threshold. The AI result replaces the
// rule-based one only when it scores better; AI failures are logged and the
// rule-based result stands.
func (o *Orchestrator) maybeEnhance(ctx context.Context, requestID string, proposal *model.Proposal, text string) *model.Proposal {
	if o.ai == nil || text == "" {
		return proposal
	}
	score := parse.Quality(proposal)
	if score >= o.opts.QualityThreshold {
		return proposal
	}

	aiProposal, err := aiparse.ExtractProposal(ctx, o.ai, text)
	if err != nil {
		zap.L().Warn("ai parse failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return proposal
	}
	if parse.Quality(aiProposal) > score {
		zap.L().Info("ai parse improved extraction",
			zap.String("request_id", requestID),
			zap.Float64("rule_score", score),
			zap.Float64("ai_score", parse.Quality(aiProposal)),
		)
		return aiProposal
	}
	return proposal
}

// finish persists the run and assembles the terminal Result.
func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, requestID, fileName, userID string, size int64, method model.ExtractionMethod, proposal *model.Proposal, start time.Time, warning string) (*Result, error) {
	status := model.StatusCompleted
	if method == model.MethodSyntheticFallback {
		status = model.StatusDegraded
	}

	quality := parse.Quality(proposal)
	elapsed := time.Since(start)

	run := &model.ExtractionRun{
		ID:        requestID,
		UserID:    userID,
		FileName:  fileName,
		FileSize:  size,
		Method:    method,
		Status:    status,
		Client:    proposal.Client,
		Total:     proposal.Total,
		Quality:   quality,
		ElapsedMS: elapsed.Milliseconds(),
		Proposal:  proposal,
	}

	if o.store != nil {
		// Persistence must survive an elapsed outer deadline.
		if _, err := o.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			log.Error("persist run failed", zap.Error(err))
			return nil, err
		}
	}

	log.Info("extraction complete",
		zap.String("method", string(method)),
		zap.String("status", string(status)),
		zap.Float64("quality", quality),
		zap.Int("items", len(proposal.Items)),
		zap.Float64("total", proposal.Total),
		zap.Duration("elapsed", elapsed),
	)

	return &Result{
		RunID:    requestID,
		Method:   method,
		Status:   status,
		Proposal: proposal,
		Quality:  quality,
		Elapsed:  elapsed,
		Warning:  warning,
	}, nil
}

func (o *Orchestrator) memoize(key string, method model.ExtractionMethod, proposal *model.Proposal) {
	// Synthetic records are never memoized; a later attempt may do better.
	if method == model.MethodSyntheticFallback {
		return
	}
	data, err := json.Marshal(cachedResult{Method: method, Proposal: proposal})
	if err != nil {
		return
	}
	o.cache.Set(key, data, o.opts.CacheTTL)
}

// persistFailure best-effort records the hard failure so operators can trace
// the document's journey.
func (o *Orchestrator) persistFailure(ctx context.Context, requestID, fileName, userID string, size int64, start time.Time) {
	if o.store == nil {
		return
	}
	run := &model.ExtractionRun{
		ID:        requestID,
		UserID:    userID,
		FileName:  fileName,
		FileSize:  size,
		Method:    model.MethodSyntheticFallback,
		Status:    model.StatusFailed,
		Client:    model.UnknownClient,
		ElapsedMS: time.Since(start).Milliseconds(),
	}
	if _, err := o.store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		zap.L().Error("persist failed run",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

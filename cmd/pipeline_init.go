package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/construdata/proposta-cli/internal/cache"
	"github.com/construdata/proposta-cli/internal/config"
	"github.com/construdata/proposta-cli/internal/extract"
	"github.com/construdata/proposta-cli/internal/parse"
	"github.com/construdata/proposta-cli/internal/pipeline"
	"github.com/construdata/proposta-cli/internal/store"
	"github.com/construdata/proposta-cli/pkg/aiparse"
	"github.com/construdata/proposta-cli/pkg/doccloud"
)

// pipelineEnv bundles the wired collaborators for one command invocation.
type pipelineEnv struct {
	Orchestrator *pipeline.Orchestrator
	Store        store.Store
}

// Close releases held resources.
func (e *pipelineEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initPipeline wires the store, remote client, AI client and orchestrator
// from config. Missing remote credentials disable the remote tier rather
// than failing: the local tiers still work.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	var remote *extract.Remote
	if missing := cfg.MissingDocCloudCredentials(); len(missing) == 0 {
		opts := []doccloud.Option{
			doccloud.WithUploadTimeout(time.Duration(cfg.DocCloud.UploadTimeoutSecs) * time.Second),
			doccloud.WithPollOptions(
				doccloud.WithPollMaxAttempts(cfg.DocCloud.PollMaxAttempts),
				doccloud.WithPollMaxWait(time.Duration(cfg.DocCloud.PollMaxWaitSecs)*time.Second),
			),
		}
		if cfg.DocCloud.BaseURL != "" {
			opts = append(opts, doccloud.WithBaseURL(cfg.DocCloud.BaseURL))
		}
		client, err := doccloud.NewClient(doccloud.Credentials{
			ClientID:     cfg.DocCloud.ClientID,
			ClientSecret: cfg.DocCloud.ClientSecret,
			OrgID:        cfg.DocCloud.OrgID,
		}, opts...)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		remote = extract.NewRemote(client)
	} else {
		zap.L().Warn("remote tier disabled, credentials missing",
			zap.Strings("missing", missing),
		)
	}

	var ai aiparse.Client
	if cfg.AI.Key != "" {
		ai, err = aiparse.NewClient(aiparse.Config{
			Provider: cfg.AI.Provider,
			Key:      cfg.AI.Key,
			BaseURL:  cfg.AI.BaseURL,
			Model:    cfg.AI.Model,
		})
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
	}

	var memo cache.Cache = cache.Noop{}
	if cfg.Cache.Enabled {
		memo = cache.NewMemory()
	}

	orch := pipeline.NewOrchestrator(
		pipeline.Options{
			OuterTimeout:     time.Duration(cfg.Pipeline.OuterTimeoutSecs) * time.Second,
			RemoteTimeout:    time.Duration(cfg.Pipeline.RemoteTimeoutSecs) * time.Second,
			QualityThreshold: cfg.Pipeline.QualityThreshold,
			CacheTTL:         time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
			Production:       cfg.Pipeline.Production,
		},
		remote,
		parse.NewParser(cfg.Pipeline.TotalTolerance),
		ai,
		st,
		memo,
	)

	return &pipelineEnv{Orchestrator: orch, Store: st}, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite", "":
		return store.NewSQLite(sc.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", sc.Driver)
	}
}

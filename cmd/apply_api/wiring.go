package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/apply-app/apply-api/internal/config"
	"github.com/apply-app/apply-api/internal/db"
	"github.com/apply-app/apply-api/internal/fetch"
	"github.com/apply-app/apply-api/internal/llm"
	"github.com/apply-app/apply-api/internal/logging"
	"github.com/apply-app/apply-api/internal/pipeline"
	"github.com/apply-app/apply-api/internal/tasks"
)

// app holds the backends shared by the long-running commands.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	db      *db.DB
	rdb     *redis.Client // nil for in-memory runs
	llm     llm.Client
	runtime *tasks.Runtime
}

// newApp connects the database, the model and the run backend. With
// inMemory set, runs live in process memory instead of Redis.
func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger, inMemory bool) (_ *app, err error) {
	needs := []config.Requirement{config.NeedDatabase, config.NeedLLM}
	if !inMemory {
		needs = append(needs, config.NeedRedis)
	}
	if err := cfg.Require(needs...); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.db, err = db.Connect(ctx, cfg.DatabaseURL); err != nil {
		return nil, err
	}

	apiKey, _ := cfg.LLMAPIKey()
	llmCfg := llm.ConfigFor(llm.Provider(cfg.LLMProvider), cfg.LLMModel)
	if a.llm, err = llm.NewClient(ctx, llmCfg, apiKey); err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var (
		store tasks.Store
		queue tasks.Queue
		cache fetch.TextCache
	)
	if inMemory {
		store, queue = tasks.NewMemoryStore(), tasks.NewMemoryQueue(0)
	} else {
		if a.rdb, err = tasks.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
		store, queue = tasks.NewRedisStore(a.rdb, tasks.DefaultRunTTL), tasks.NewRedisQueue(a.rdb)
		cache = fetch.NewRedisTextCache(a.rdb, fetch.DefaultPageCacheTTL)
	}

	fetchOpts := fetch.DefaultOptions()
	if cfg.FetchTimeoutSecs > 0 {
		fetchOpts.Timeout = cfg.FetchTimeout()
	}
	fetcher := fetch.NewPageFetcher(&fetch.PageFetcherConfig{
		Options:    fetchOpts,
		UseBrowser: cfg.UseBrowser,
		Cache:      cache,
	}, log.With("component", "fetch"))

	companies, err := db.NewCompanyCache(a.db, db.DefaultCompanyCacheSize)
	if err != nil {
		return nil, err
	}

	orchestrator := pipeline.New(pipeline.Deps{
		Offers:      a.db,
		Companies:   companies,
		Fetcher:     fetcher,
		LLM:         a.llm,
		Checkpoints: tasks.RunCheckpoints{Store: store},
		Log:         log.With("component", "pipeline"),
		PlainText:   cfg.LLMPlainText,
	})

	opts := tasks.DefaultOptions()
	opts.Concurrency = cfg.WorkerConcurrency
	opts.MaxAttempts = cfg.RunMaxAttempts
	opts.MaxDuration = cfg.RunMaxDuration()

	a.runtime = tasks.NewRuntime(store, queue, opts, log.With("component", "tasks"))
	a.runtime.Register(tasks.AnalyzeJobOffer, tasks.NewAnalyzeHandler(orchestrator))

	return a, nil
}

// scheduler builds the housekeeping scheduler for the app's runtime.
func (a *app) scheduler() *tasks.Scheduler {
	sc := tasks.DefaultSchedulerConfig()
	sc.PublishSpec = a.cfg.PublishSweepSpec
	return tasks.NewScheduler(a.runtime, a.db, sc, a.log.With("component", "scheduler"))
}

// Close releases every backend that was opened.
func (a *app) Close() {
	if a.llm != nil {
		if err := a.llm.Close(); err != nil {
			a.log.Warn("failed to close LLM client", "error", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("failed to close redis client", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

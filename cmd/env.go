package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mandela-labs/report-cli/internal/assistant"
	"github.com/mandela-labs/report-cli/internal/fetch"
	"github.com/mandela-labs/report-cli/internal/report"
	"github.com/mandela-labs/report-cli/internal/retention"
	"github.com/mandela-labs/report-cli/internal/store"
	"github.com/mandela-labs/report-cli/internal/summary"
	"github.com/mandela-labs/report-cli/pkg/wayback"
)

// appEnv holds the wired collaborators shared by the commands.
type appEnv struct {
	Store       store.Store
	Service     *report.Service
	Interpreter assistant.Interpreter
	Sweeper     *retention.Sweeper
}

func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	archive := wayback.NewClient(
		wayback.WithCDXBaseURL(cfg.Wayback.CDXBaseURL),
		wayback.WithWebBaseURL(cfg.Wayback.WebBaseURL),
		wayback.WithUserAgent(cfg.Fetch.UserAgent),
		wayback.WithRateLimit(cfg.Wayback.RatePerSec),
	)

	fetcher := fetch.New(fetch.Config{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxBytes:   int64(cfg.Fetch.MaxResponseMB) << 20,
		ObeyRobots: cfg.Fetch.ObeyRobots,
	})

	var llm summary.Summarizer
	if cfg.Summary.AnthropicKey != "" {
		llm = summary.NewClaude(cfg.Summary.AnthropicKey, cfg.Summary.Model)
	}

	interp := assistant.Interpreter(assistant.NewHeuristic())
	if cfg.Assistant.Provider == assistant.ProviderLLM && cfg.Summary.AnthropicKey != "" {
		interp = assistant.WithFallback(
			assistant.NewClaude(cfg.Summary.AnthropicKey, cfg.Summary.Model),
			assistant.NewHeuristic(),
		)
	}

	svc := report.NewService(st, archive, fetcher, llm, report.Config{
		DefaultSnapshots:     cfg.Diff.DefaultSnapshots,
		MaxConcurrentFetches: cfg.Diff.MaxConcurrentFetches,
		QueryLimit:           cfg.Wayback.QueryLimit,
		DefaultProvider:      cfg.Summary.Provider,
		WebBaseURL:           cfg.Wayback.WebBaseURL,
	})

	sweeper := retention.NewSweeper(st, retention.Config{
		Enabled:           cfg.Retention.Enabled,
		Days:              cfg.Retention.Days,
		Interval:          time.Duration(cfg.Retention.IntervalHours) * time.Hour,
		CompactAfterPurge: cfg.Retention.CompactAfterPurge,
	})

	return &appEnv{
		Store:       st,
		Service:     svc,
		Interpreter: interp,
		Sweeper:     sweeper,
	}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

func (e *appEnv) Close() {
	_ = e.Store.Close()
}

// Package summary turns a set of computed diffs into a human-readable change
// summary. Two strategies exist: a rule-based one that always succeeds and a
// Claude-backed one that falls back to the rules on any failure.
package summary

import (
	"context"

	"go.uber.org/zap"

	"github.com/mandela-labs/report-cli/internal/model"
)

// Providers selectable via config or the per-view style override.
const (
	ProviderAuto = "auto"
	ProviderLLM  = "llm"
	ProviderRule = "rule"
)

// Request carries everything a summarizer needs about one report.
type Request struct {
	URL      string
	Pairs    []model.DiffResult
	FromText string
	ToText   string
}

// Summarizer produces a textual change summary for a report.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// fallback tries a primary summarizer and degrades to a secondary on failure.
type fallback struct {
	primary   Summarizer
	secondary Summarizer
}

func (f *fallback) Summarize(ctx context.Context, req Request) (string, error) {
	out, err := f.primary.Summarize(ctx, req)
	if err == nil {
		return out, nil
	}
	zap.L().Warn("summary: primary provider failed, falling back",
		zap.String("url", req.URL),
		zap.Error(err),
	)
	return f.secondary.Summarize(ctx, req)
}

// WithFallback wraps a summarizer so any failure degrades to the secondary.
func WithFallback(primary, secondary Summarizer) Summarizer {
	return &fallback{primary: primary, secondary: secondary}
}

// ForProvider returns the summarizer for a provider name. An unknown or
// "auto" provider yields the LLM summarizer with rule-based fallback; with no
// LLM configured it degrades to rules alone.
func ForProvider(provider string, llm Summarizer) Summarizer {
	rule := NewRule()
	switch provider {
	case ProviderRule:
		return rule
	case ProviderLLM:
		if llm == nil {
			return rule
		}
		return WithFallback(llm, rule)
	default:
		if llm == nil {
			return rule
		}
		return WithFallback(llm, rule)
	}
}

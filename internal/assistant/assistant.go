// Package assistant interprets conversational messages into diff-request
// slots. Two strategies exist: a regex-based heuristic interpreter and a
// Claude-backed one that falls back to the heuristics on any failure.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Slots are the fields the wizard needs before a diff can run. Empty string
// means unset; for Until it also means "up to now".
type Slots struct {
	URL       string `json:"url,omitempty"`
	Since     string `json:"since,omitempty"`
	Until     string `json:"until,omitempty"`
	Snapshots int    `json:"snapshots,omitempty"`
	Style     string `json:"style,omitempty"`
}

// Response is one assistant turn: a reply to show the user, the merged slots,
// and whether enough is known to start the diff.
type Response struct {
	Reply string `json:"reply"`
	Slots Slots  `json:"slots"`
	Ready bool   `json:"ready"`
}

// Interpreter extracts slot updates from a user message.
type Interpreter interface {
	Interpret(ctx context.Context, message string, slots Slots) (Response, error)
}

// Providers selectable via config.
const (
	ProviderHeuristic = "heuristic"
	ProviderLLM       = "llm"
)

// fallbackInterpreter degrades to the heuristic interpreter when the primary
// fails; slot filling must never error out of a conversation.
type fallbackInterpreter struct {
	primary   Interpreter
	secondary Interpreter
}

func (f *fallbackInterpreter) Interpret(ctx context.Context, message string, slots Slots) (Response, error) {
	resp, err := f.primary.Interpret(ctx, message, slots)
	if err == nil {
		return resp, nil
	}
	zap.L().Warn("assistant: primary interpreter failed, falling back", zap.Error(err))
	return f.secondary.Interpret(ctx, message, slots)
}

// WithFallback wraps an interpreter so failures degrade to the secondary.
func WithFallback(primary, secondary Interpreter) Interpreter {
	return &fallbackInterpreter{primary: primary, secondary: secondary}
}

// merge overlays non-empty update fields onto existing slots.
func merge(existing, updates Slots) Slots {
	out := existing
	if updates.URL != "" {
		out.URL = updates.URL
	}
	if updates.Since != "" {
		out.Since = updates.Since
	}
	if updates.Until != "" {
		out.Until = updates.Until
	}
	if updates.Snapshots != 0 {
		out.Snapshots = updates.Snapshots
	}
	if updates.Style != "" {
		out.Style = updates.Style
	}
	return out
}

func ready(s Slots) bool {
	return s.URL != ""
}

// buildReply composes a confirmation of what the assistant understood so far.
func buildReply(s Slots, untilIsNow bool, today string) string {
	parts := []string{"Got it."}
	if s.URL != "" {
		parts = append(parts, fmt.Sprintf("URL set to %s.", s.URL))
	} else {
		parts = append(parts, "Tell me the page URL to begin.")
	}
	if s.Since != "" {
		parts = append(parts, fmt.Sprintf("Using since %s.", s.Since))
	}
	if s.Until != "" {
		parts = append(parts, fmt.Sprintf("Using until %s.", s.Until))
	} else if untilIsNow {
		parts = append(parts, fmt.Sprintf("Using until %s.", today))
	}
	parts = append(parts, "You can also tell me exact dates like 2024-01-01 and a snapshot count (3, 5, or 7).")
	return strings.Join(parts, " ")
}

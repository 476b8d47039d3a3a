package summary

import (
	"context"
	"fmt"
	"strings"
)

// Rule is the heuristic summarizer: word-count delta plus the list of spans
// compared. It never fails, which makes it the terminal fallback.
type Rule struct{}

// NewRule creates the rule-based summarizer.
func NewRule() *Rule {
	return &Rule{}
}

func (r *Rule) Summarize(_ context.Context, req Request) (string, error) {
	delta := len(strings.Fields(req.ToText)) - len(strings.Fields(req.FromText))
	sign := "increased"
	if delta < 0 {
		sign = "decreased"
		delta = -delta
	}

	spans := make([]string, 0, len(req.Pairs))
	for _, p := range req.Pairs {
		spans = append(spans, fmt.Sprintf("%s (%s -> %s)",
			p.Label,
			p.FromWhen.Format("2006-01-02 15:04"),
			p.ToWhen.Format("2006-01-02 15:04"),
		))
	}

	var sb strings.Builder
	sb.WriteString("Mandela Report (rule-based):\n")
	sb.WriteString(fmt.Sprintf("- Subject: %s\n", req.URL))
	sb.WriteString(fmt.Sprintf("- Spans compared: %s\n", strings.Join(spans, ", ")))
	sb.WriteString(fmt.Sprintf("- Overall word count %s by %d words.\n", sign, delta))
	sb.WriteString("- See highlighted insertions and deletions below for details.\n")
	return sb.String(), nil
}

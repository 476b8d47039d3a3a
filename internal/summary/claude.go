package summary

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// maxExcerptLen caps how much of each text version goes into the prompt.
const maxExcerptLen = 8000

const claudeSystemPrompt = "Be precise, neutral, and helpful. Focus on how " +
	"changes could lead to mismatched public memory (Mandela Effects)."

// Claude summarizes changes using the Anthropic Messages API.
type Claude struct {
	client sdk.Client
	model  string
}

// NewClaude creates the Claude-backed summarizer.
func NewClaude(apiKey, model string) *Claude {
	return &Claude{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *Claude) Summarize(ctx context.Context, req Request) (string, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   400,
		Temperature: sdk.Float(0.3),
		System: []sdk.TextBlockParam{
			{Text: claudeSystemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildPrompt(req))),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "summary: claude request")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", eris.New("summary: empty claude response")
	}
	return sb.String(), nil
}

func buildPrompt(req Request) string {
	spans := make([]string, 0, len(req.Pairs))
	for _, p := range req.Pairs {
		spans = append(spans, fmt.Sprintf("%s (%s -> %s)",
			p.Label,
			p.FromWhen.Format("2006-01-02"),
			p.ToWhen.Format("2006-01-02"),
		))
	}

	return fmt.Sprintf(
		"You are a concise change analyst. Given two versions of a webpage,\n"+
			"summarize the key changes for a non-technical reader.\n"+
			"Focus on: new/removed sections, wording shifts affecting meaning\n"+
			"(dates, prices, policies), and metadata like titles or disclaimers.\n"+
			"Write 5-10 bullet points and a one-line TL;DR.\n"+
			"URL: %s\n"+
			"Spans: %s\n"+
			"----- BEFORE -----\n%s\n"+
			"----- AFTER -----\n%s\n",
		req.URL,
		strings.Join(spans, "; "),
		truncate(req.FromText, maxExcerptLen),
		truncate(req.ToText, maxExcerptLen),
	)
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

package assistant

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const interpreterSystemPrompt = "You are Mandela for the Mandela Report. You help investigate " +
	"possible Mandela Effects by comparing a webpage across time. " +
	"Ask short, friendly questions and update slots. " +
	"Slots: url (required), since (YYYY-MM-DD, optional), until " +
	"(YYYY-MM-DD, optional), snapshots (3|5|7, default 5), style " +
	"(llm|rule, default llm). When url is set, you may set ready=true. " +
	`Respond with ONLY a single JSON object: {"reply": str, "slots": {...}, "ready": bool}.`

// Claude interprets messages with the Anthropic Messages API, then fills any
// slots the model missed using the heuristic extractor. Wrap it with
// WithFallback so model failures degrade to pure heuristics.
type Claude struct {
	client    sdk.Client
	model     string
	heuristic *Heuristic
}

// NewClaude creates the Claude-backed interpreter.
func NewClaude(apiKey, model string) *Claude {
	return &Claude{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		heuristic: NewHeuristic(),
	}
}

func (c *Claude) Interpret(ctx context.Context, message string, slots Slots) (Response, error) {
	input, err := json.Marshal(map[string]any{"message": message, "slots": slots})
	if err != nil {
		return Response{}, eris.Wrap(err, "assistant: marshal input")
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   300,
		Temperature: sdk.Float(0.2),
		System: []sdk.TextBlockParam{
			{Text: interpreterSystemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(string(input))),
		},
	})
	if err != nil {
		return Response{}, eris.Wrap(err, "assistant: claude request")
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	parsed, err := parseResponseJSON(content.String())
	if err != nil {
		return Response{}, err
	}

	// Merge model output over existing slots, then fill gaps heuristically
	// without overriding what the model provided.
	merged := merge(slots, parsed.Slots)
	heur, _ := c.heuristic.Interpret(ctx, message, merged)
	merged = heur.Slots

	resp := Response{
		Reply: parsed.Reply,
		Slots: merged,
		Ready: ready(merged),
	}
	if resp.Reply == "" {
		resp.Reply = heur.Reply
	}
	return resp, nil
}

// parseResponseJSON locates the JSON object in model output, tolerating
// surrounding prose.
func parseResponseJSON(content string) (Response, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return Response{}, eris.New("assistant: no JSON in model output")
	}
	var resp Response
	if err := json.Unmarshal([]byte(content[start:end+1]), &resp); err != nil {
		return Response{}, eris.Wrap(err, "assistant: decode model output")
	}
	return resp, nil
}

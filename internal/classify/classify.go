// Package classify asks an AI oracle for advisory suggestions, such as the
// probable playwright of a work title. Answers below a confidence floor
// are discarded.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/pkg/anthropic"
)

// ErrLowConfidence is returned when the oracle answered but below the
// configured confidence. Callers treat it like not found.
var ErrLowConfidence = eris.New("classify: low confidence")

// Suggestion is an oracle answer.
type Suggestion struct {
	Value      string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// Oracle answers one question about a piece of text.
type Oracle interface {
	// Classify returns the suggestion for text. An oracle that has no
	// answer returns an error wrapping model.ErrNotFound.
	Classify(ctx context.Context, text string) (Suggestion, error)
}

// Gated wraps an oracle and rejects answers under Min with ErrLowConfidence.
type Gated struct {
	Oracle Oracle
	Min    float64
}

// Classify implements Oracle.
func (g Gated) Classify(ctx context.Context, text string) (Suggestion, error) {
	s, err := g.Oracle.Classify(ctx, text)
	if err != nil {
		return Suggestion{}, err
	}
	if s.Confidence < g.Min {
		zap.L().Debug("classify: below confidence floor",
			zap.String("text", text),
			zap.String("answer", s.Value),
			zap.Float64("confidence", s.Confidence),
			zap.Float64("min", g.Min),
		)
		return s, eris.Wrapf(ErrLowConfidence, "%.2f < %.2f for %q", s.Confidence, g.Min, text)
	}
	return s, nil
}

// PlaywrightPrompt is the system prompt for playwright identification.
const PlaywrightPrompt = `You identify the playwright or author of theatre and radio drama works.
The user message is a work title, optionally followed by a description, as listed in a Norwegian
broadcast archive. Answer with a single JSON object and nothing else:
{"answer": "<full name of the playwright, or empty if unknown>", "confidence": <number between 0 and 1>}
Use the name as it is usually written in Norwegian sources.`

// AnthropicOracle classifies with a Claude model.
type AnthropicOracle struct {
	client    anthropic.Client
	model     string
	system    string
	maxTokens int64
}

// NewAnthropicOracle returns an oracle that asks model with the given system
// prompt.
func NewAnthropicOracle(client anthropic.Client, model, systemPrompt string) *AnthropicOracle {
	return &AnthropicOracle{
		client:    client,
		model:     model,
		system:    systemPrompt,
		maxTokens: 256,
	}
}

// Classify implements Oracle.
func (o *AnthropicOracle) Classify(ctx context.Context, text string) (Suggestion, error) {
	temp := 0.0
	resp, err := o.client.Complete(ctx, anthropic.Request{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		System:      o.system,
		Prompt:      text,
		Temperature: &temp,
	})
	if err != nil {
		return Suggestion{}, eris.Wrap(err, "classify: ask oracle")
	}
	resp.Usage.LogCost(o.model, "classify")

	s, err := ParseSuggestion(resp.Text)
	if err != nil {
		return Suggestion{}, err
	}
	if s.Value == "" {
		return Suggestion{}, eris.Wrapf(model.ErrNotFound, "classify: no answer for %q", text)
	}
	return s, nil
}

// ParseSuggestion reads the JSON answer, tolerating a surrounding markdown
// code fence or prose.
func ParseSuggestion(raw string) (Suggestion, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return Suggestion{}, eris.Errorf("classify: no JSON object in %q", truncate(raw, 80))
	}
	var s Suggestion
	if err := json.Unmarshal([]byte(raw[start:end+1]), &s); err != nil {
		return Suggestion{}, eris.Wrap(err, "classify: decode answer")
	}
	s.Value = strings.TrimSpace(s.Value)
	s.Confidence = min(max(s.Confidence, 0), 1)
	return s, nil
}

// WorkPrompt formats the user message for a work.
func WorkPrompt(w *model.Work, description string) string {
	if description == "" {
		return w.Title
	}
	return fmt.Sprintf("%s\n\n%s", w.Title, truncate(description, 600))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

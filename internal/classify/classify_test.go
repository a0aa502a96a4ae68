package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teaterarkiv/archive-cli/internal/model"
	"github.com/teaterarkiv/archive-cli/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Complete(ctx context.Context, req anthropic.Request) (*anthropic.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.Response), args.Error(1)
}

func textResponse(text string) *anthropic.Response {
	return &anthropic.Response{Text: text}
}

type stubOracle struct {
	s   Suggestion
	err error
}

func (o stubOracle) Classify(context.Context, string) (Suggestion, error) { return o.s, o.err }

func TestAnthropicOracle_Classify(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req anthropic.Request) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.Prompt == "Vildanden" && req.System == PlaywrightPrompt &&
			req.Temperature != nil && *req.Temperature == 0
	})).Return(textResponse("```json\n{\"answer\": \" Henrik Ibsen \", \"confidence\": 0.97}\n```"), nil)

	o := NewAnthropicOracle(client, "claude-haiku-4-5-20251001", PlaywrightPrompt)
	s, err := o.Classify(context.Background(), "Vildanden")
	require.NoError(t, err)
	assert.Equal(t, "Henrik Ibsen", s.Value)
	assert.InDelta(t, 0.97, s.Confidence, 1e-9)
	client.AssertExpectations(t)
}

func TestAnthropicOracle_EmptyAnswer(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Return(textResponse(`{"answer": "", "confidence": 0.1}`), nil)

	_, err := NewAnthropicOracle(client, "m", PlaywrightPrompt).Classify(context.Background(), "Ukjent tittel")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAnthropicOracle_ClientError(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, err := NewAnthropicOracle(client, "m", PlaywrightPrompt).Classify(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify: ask oracle")
}

func TestGated(t *testing.T) {
	high := Gated{Oracle: stubOracle{s: Suggestion{Value: "Henrik Ibsen", Confidence: 0.9}}, Min: 0.8}
	s, err := high.Classify(context.Background(), "Gengangere")
	require.NoError(t, err)
	assert.Equal(t, "Henrik Ibsen", s.Value)

	low := Gated{Oracle: stubOracle{s: Suggestion{Value: "Henrik Ibsen", Confidence: 0.5}}, Min: 0.8}
	_, err = low.Classify(context.Background(), "Gengangere")
	assert.ErrorIs(t, err, ErrLowConfidence)

	failing := Gated{Oracle: stubOracle{err: model.ErrNotFound}, Min: 0.8}
	_, err = failing.Classify(context.Background(), "x")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NotErrorIs(t, err, ErrLowConfidence)
}

func TestParseSuggestion(t *testing.T) {
	s, err := ParseSuggestion(`Sure! {"answer":"Ludvig Holberg","confidence":1.4}`)
	require.NoError(t, err)
	assert.Equal(t, "Ludvig Holberg", s.Value)
	assert.Equal(t, 1.0, s.Confidence)

	_, err = ParseSuggestion("I don't know")
	assert.Error(t, err)

	_, err = ParseSuggestion(`{"answer": }`)
	assert.Error(t, err)
}

func TestWorkPrompt(t *testing.T) {
	w := &model.Work{Title: "Et dukkehjem"}
	assert.Equal(t, "Et dukkehjem", WorkPrompt(w, ""))
	assert.Equal(t, "Et dukkehjem\n\nNora forlater", WorkPrompt(w, "Nora forlater"))
}

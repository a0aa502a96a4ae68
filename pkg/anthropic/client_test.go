package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teaterarkiv/archive-cli/internal/resilience"
)

func TestComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-haiku-4-5-20251001", body["model"])
		system, ok := body["system"].([]any)
		require.True(t, ok)
		require.Len(t, system, 1)
		block := system[0].(map[string]any)
		assert.Equal(t, "You identify playwrights.", block["text"])
		assert.NotNil(t, block["cache_control"])
		messages := body["messages"].([]any)
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_1",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"answer":"Henrik Ibsen",`},
				{"type": "text", "text": `"confidence":0.93}`},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 120, "output_tokens": 14},
		})
	}))
	defer ts.Close()

	c := NewClient("test-key", option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	resp, err := c.Complete(context.Background(), Request{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 256,
		System:    "You identify playwrights.",
		Prompt:    "Vildanden",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, `{"answer":"Henrik Ibsen","confidence":0.93}`, resp.Text)
	assert.Equal(t, int64(120), resp.Usage.InputTokens)
}

func TestComplete_Overloaded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	c := NewClient("test-key", option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	_, err := c.Complete(context.Background(), Request{Model: "claude-haiku-4-5-20251001", MaxTokens: 16, Prompt: "x"})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	var te *resilience.TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 12*time.Second, te.RetryAfter)
}

func TestComplete_BadRequestIsPermanent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	c := NewClient("test-key", option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	_, err := c.Complete(context.Background(), Request{Model: "m", MaxTokens: 16, Prompt: "x"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 4.80, u.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
	assert.Zero(t, u.EstimateCost("unknown-model"))

	cached := TokenUsage{CacheReadInputTokens: 1_000_000}
	assert.InDelta(t, 0.08, cached.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
}

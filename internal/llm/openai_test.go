// ABOUTME: Tests for the chat completions generator against a fake HTTP endpoint.
// ABOUTME: Verifies request shape, confidence parsing, and error handling.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, status int, content string, captured *capturedRequest, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIValidation(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{Model: "m"}, nil)
	assert.EqualError(t, err, "api key is required")

	_, err = NewOpenAI(OpenAIConfig{APIKey: "k"}, nil)
	assert.EqualError(t, err, "model is required")
}

func TestOpenAIGenerate(t *testing.T) {
	var captured capturedRequest
	srv := completionServer(t, http.StatusOK, "Build an emergency fund first.\nCONFIDENCE: 0.85", &captured, nil)

	gen, err := NewOpenAI(OpenAIConfig{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/v1",
		Model:       "test-model",
		Temperature: 0.2,
		Timeout:     5 * time.Second,
	}, nil)
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), Prompt{
		Stage:  "advice_synthesis",
		System: "You are a financial advisor.",
		User:   "Summarize.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Build an emergency fund first.", out.Text)
	assert.InDelta(t, 0.85, out.Confidence, 1e-9)

	assert.Equal(t, "test-model", captured.Model)
	assert.InDelta(t, 0.2, captured.Temperature, 1e-9)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "You are a financial advisor.")
	assert.Contains(t, captured.Messages[0].Content, "CONFIDENCE:")
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "Summarize.", captured.Messages[1].Content)
}

func TestOpenAIDefaultsConfidence(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "No confidence here.", nil, nil)
	gen, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}, nil)
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), Prompt{Stage: "spending_analysis"})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfidence, out.Confidence)
}

func TestOpenAIEmptyTextIsError(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "CONFIDENCE: 0.9", nil, nil)
	gen, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}, nil)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Prompt{Stage: "goal_feasibility"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAIUpstreamErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := completionServer(t, http.StatusInternalServerError, "", nil, &calls)
	gen, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}, nil)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Prompt{Stage: "spending_analysis"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIRateLimiterRespectsContext(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "ok\nCONFIDENCE: 0.5", nil, nil)
	gen, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m", RequestsPerMinute: 1}, nil)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Prompt{Stage: "spending_analysis"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = gen.Generate(ctx, Prompt{Stage: "goal_feasibility"})
	assert.Error(t, err)
}

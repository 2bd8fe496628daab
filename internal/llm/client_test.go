package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glycowatch/backend/pkg/circuitbreaker"
	"github.com/glycowatch/backend/pkg/config"
)

func completionServer(t *testing.T, calls *atomic.Int32, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
			return
		}

		assert.Equal(t, "gemini-2.0-flash", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		}
		assert.Equal(t, 400, req.MaxTokens)

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			}},
			Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		APIKey:           "test-key",
		BaseURL:          url + "/",
		Model:            "gemini-2.0-flash",
		Temperature:      0.4,
		MaxTokens:        400,
		Timeout:          5 * time.Second,
		FailureThreshold: 2,
	})
}

func TestComplete(t *testing.T) {
	var calls atomic.Int32
	srv := completionServer(t, &calls, http.StatusOK, "Take a short walk after meals.")

	c := newTestClient(srv.URL)
	resp, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "coach",
		UserPrompt:   "tired after lunch",
	})
	require.NoError(t, err)

	assert.Equal(t, "Take a short walk after meals.", resp.Content)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.Equal(t, "gemini-2.0-flash", c.Model())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteDoesNotRetryAndOpensBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := completionServer(t, &calls, http.StatusServiceUnavailable, "")

	c := newTestClient(srv.URL)
	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())

	_, err := c.Complete(context.Background(), CompletionRequest{UserPrompt: "hi"})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.AdvisorConfig{
		Provider:   config.ProviderGemini,
		APIKey:     "k",
		Model:      "gemini-2.0-flash",
		MaxTokens:  400,
		TimeoutSec: 12,
	})

	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
	assert.Contains(t, cfg.BaseURL, "generativelanguage.googleapis.com")
	assert.Equal(t, 12*time.Second, cfg.Timeout)
}

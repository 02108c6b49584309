package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafwise/leafwise/types"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAICompatProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAICompat(OpenAICompatConfig{
		ProviderName: "groq",
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		DefaultModel: "llama3-8b-8192",
	}, zap.NewNop())
}

func TestOpenAICompat_Chat(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3-8b-8192", body["model"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "llama3-8b-8192",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "apply copper fungicide"},
			}},
			"usage": map[string]any{"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49},
		})
	})

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("remedy for rust?")},
	})
	require.NoError(t, err)
	assert.Equal(t, "apply copper fungicide", resp.Text())
	assert.Equal(t, 49, resp.Usage.TotalTokens)
	assert.Equal(t, "groq", resp.Provider)
}

func TestOpenAICompat_MapsRateLimitAsRetryable(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestOpenAICompat_MapsAuthFailureAsFatal(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	})

	_, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
	assert.False(t, types.IsRetryable(err))
}

func TestMapHTTPError_ServerErrorsRetryable(t *testing.T) {
	t.Parallel()
	err := MapHTTPError(http.StatusBadGateway, "upstream down", "groq")
	assert.Equal(t, types.ErrUpstreamError, err.Code)
	assert.True(t, err.Retryable)

	err = MapHTTPError(http.StatusBadRequest, "bad payload", "groq")
	assert.Equal(t, types.ErrInvalidRequest, err.Code)
	assert.False(t, err.Retryable)
}

package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafwise/leafwise/types"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "text-embedding-3-small",
		Dimensions: 4,
	})
}

func TestOpenAIProvider_EmbedQuery(t *testing.T) {
	t.Parallel()
	p := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"symptoms of rust"}, body.Input)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "text-embedding-3-small",
			"data": []map[string]any{
				{"index": 0, "embedding": []float64{0.1, 0.2, 0.3, 0.4}},
			},
			"usage": map[string]any{"prompt_tokens": 4, "total_tokens": 4},
		})
	})

	vec, err := p.EmbedQuery(context.Background(), "symptoms of rust")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, vec)
}

func TestOpenAIProvider_EmbedQueryEmptyResponse(t *testing.T) {
	t.Parallel()
	p := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	})

	_, err := p.EmbedQuery(context.Background(), "anything")
	require.Error(t, err)
}

func TestOpenAIProvider_MapsUpstreamFailure(t *testing.T) {
	t.Parallel()
	p := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := p.EmbedQuery(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
}

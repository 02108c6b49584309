package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leafwise/leafwise/llm"
	"github.com/leafwise/leafwise/types"
)

// OpenAIConfig configures an OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	// ProviderName identifies the provider (e.g., "openai-embedding").
	ProviderName string

	// APIKey authenticates against the endpoint.
	APIKey string

	// BaseURL is the API base URL (e.g., "https://api.openai.com").
	BaseURL string

	// Model is the embedding model. Defaults to "text-embedding-3-small".
	Model string

	// Dimensions is the output dimensionality. Defaults to 1536.
	Dimensions int

	// Timeout is the HTTP client timeout. Defaults to 30s.
	Timeout time.Duration
}

// OpenAIProvider implements Provider against the OpenAI /v1/embeddings
// contract, which self-hosted embedding gateways also speak.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI-compatible embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai-embedding"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIProvider) Name() string    { return p.cfg.ProviderName }
func (p *OpenAIProvider) Dimensions() int { return p.cfg.Dimensions }

type openAIEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates embeddings for the given inputs.
func (p *OpenAIProvider) Embed(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	data, err := json.Marshal(openAIEmbedRequest{Input: req.Input, Model: model})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "embed request failed").
			WithCause(err).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithProvider(p.cfg.ProviderName)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, llm.MapHTTPError(resp.StatusCode, string(respBody), p.cfg.ProviderName)
	}

	var oaResp openAIEmbedResponse
	if err := json.Unmarshal(respBody, &oaResp); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	out := &Response{
		Provider:  p.cfg.ProviderName,
		Model:     oaResp.Model,
		CreatedAt: time.Now(),
		Usage: Usage{
			PromptTokens: oaResp.Usage.PromptTokens,
			TotalTokens:  oaResp.Usage.TotalTokens,
		},
	}
	for _, d := range oaResp.Data {
		out.Embeddings = append(out.Embeddings, Data{Index: d.Index, Embedding: d.Embedding})
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := p.Embed(ctx, &Request{
		Input:     []string{query},
		InputType: InputTypeQuery,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

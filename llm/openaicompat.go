package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leafwise/leafwise/types"
)

// OpenAICompatConfig holds the configuration for an OpenAI-compatible provider.
type OpenAICompatConfig struct {
	// ProviderName is the unique identifier for this provider (e.g., "groq").
	ProviderName string

	// APIKey is the authentication key for the provider's API.
	APIKey string

	// BaseURL is the base URL for the provider's API
	// (e.g., "https://api.groq.com/openai").
	BaseURL string

	// DefaultModel is the model to use when none is specified in the request.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 30s if zero.
	Timeout time.Duration

	// EndpointPath is the chat completions endpoint path.
	// Defaults to "/v1/chat/completions".
	EndpointPath string

	// RequestsPerSecond caps outbound request rate. Zero disables limiting.
	RequestsPerSecond float64
}

// OpenAICompatProvider implements Provider against any endpoint speaking the
// OpenAI Chat Completions format.
type OpenAICompatProvider struct {
	cfg     OpenAICompatConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAICompat creates a provider with the given config.
func NewOpenAICompat(cfg OpenAICompatConfig, logger *zap.Logger) *OpenAICompatProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &OpenAICompatProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  logger,
	}
}

// Name returns the provider name.
func (p *OpenAICompatProvider) Name() string { return p.cfg.ProviderName }

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float32             `json:"temperature,omitempty"`
	TopP        float32             `json:"top_p,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int               `json:"index"`
		FinishReason string            `json:"finish_reason"`
		Message      openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat executes a single chat-completion request.
func (p *OpenAICompatProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	body := openAIChatRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openAIChatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+p.cfg.EndpointPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrUpstreamTimeout, "chat request canceled").
				WithCause(err).
				WithRetryable(false).
				WithProvider(p.cfg.ProviderName)
		}
		return nil, types.NewError(types.ErrUpstreamError, "chat request failed").
			WithCause(err).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithProvider(p.cfg.ProviderName)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, MapHTTPError(resp.StatusCode, string(respBody), p.cfg.ProviderName)
	}

	var oaResp openAIChatResponse
	if err := json.Unmarshal(respBody, &oaResp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	out := &ChatResponse{
		ID:        oaResp.ID,
		Provider:  p.cfg.ProviderName,
		Model:     oaResp.Model,
		CreatedAt: time.Now(),
		Usage: ChatUsage{
			PromptTokens:     oaResp.Usage.PromptTokens,
			CompletionTokens: oaResp.Usage.CompletionTokens,
			TotalTokens:      oaResp.Usage.TotalTokens,
		},
	}
	for _, c := range oaResp.Choices {
		out.Choices = append(out.Choices, ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message: types.Message{
				Role:    types.Role(c.Message.Role),
				Content: c.Message.Content,
			},
		})
	}

	p.logger.Debug("chat completion finished",
		zap.String("provider", p.cfg.ProviderName),
		zap.String("model", model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", out.Usage.TotalTokens))

	return out, nil
}

// MapHTTPError maps an HTTP status to a structured *types.Error.
func MapHTTPError(status int, msg, provider string) *types.Error {
	code := types.ErrUpstreamError
	retryable := status >= 500

	switch status {
	case http.StatusUnauthorized:
		code = types.ErrUnauthorized
	case http.StatusForbidden:
		code = types.ErrForbidden
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case http.StatusBadRequest:
		code = types.ErrInvalidRequest
	case http.StatusGatewayTimeout:
		code = types.ErrUpstreamTimeout
		retryable = true
	}

	return types.NewError(code, msg).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithProvider(provider)
}

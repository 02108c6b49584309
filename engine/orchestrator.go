package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leafwise/leafwise/llm"
	"github.com/leafwise/leafwise/llm/retry"
	"github.com/leafwise/leafwise/types"
)

// OrchestratorConfig configures answer generation.
type OrchestratorConfig struct {
	// Model is the chat model name.
	Model string `yaml:"model"`

	// Temperature for generation. Defaults to 0.3.
	Temperature float32 `yaml:"temperature"`

	// MaxOutputTokens bounds the answer length. Defaults to 2048.
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// Timeout bounds each generation call. Defaults to 60s.
	Timeout time.Duration `yaml:"timeout"`
}

// Orchestrator sends assembled contexts to the language model and attaches
// citations back to the chunks the answer actually draws from. The prompt
// is never altered between retry attempts; only transient transport
// failures are retried, once, with backoff.
type Orchestrator struct {
	provider llm.Provider
	retryer  retry.Retryer
	cfg      OrchestratorConfig
	logger   *zap.Logger
}

// NewOrchestrator creates a generation orchestrator.
func NewOrchestrator(provider llm.Provider, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provider: provider,
		retryer:  retry.NewBackoffRetryer(retry.DefaultPolicy(), logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// Generate invokes the model with the assembled context and post-processes
// the output: chunk ids whose source markers never appear in the answer are
// dropped from the citations.
func (o *Orchestrator) Generate(ctx context.Context, pc *PromptContext) (types.Answer, error) {
	req := &llm.ChatRequest{
		Model:       o.cfg.Model,
		Messages:    pc.Messages,
		MaxTokens:   o.cfg.MaxOutputTokens,
		Temperature: o.cfg.Temperature,
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	var resp *llm.ChatResponse
	err := o.retryer.Do(callCtx, func() error {
		var callErr error
		resp, callErr = o.provider.Chat(callCtx, req)
		return callErr
	})
	if err != nil {
		return types.Answer{}, types.NewError(types.ErrGenerationFailed, "language model call failed").
			WithCause(err).
			WithProvider(o.provider.Name())
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return types.Answer{}, types.NewError(types.ErrGenerationFailed, "language model returned empty output").
			WithProvider(o.provider.Name())
	}

	answer := types.Answer{
		Text:          text,
		CitedChunkIDs: []types.ChunkID{},
		Ungrounded:    pc.Ungrounded,
	}
	for _, id := range pc.IncludedChunkIDs {
		if strings.Contains(text, pc.Markers[id]) {
			answer.CitedChunkIDs = append(answer.CitedChunkIDs, id)
		}
	}

	o.logger.Debug("answer generated",
		zap.Int("included_chunks", len(pc.IncludedChunkIDs)),
		zap.Int("cited_chunks", len(answer.CitedChunkIDs)),
		zap.Bool("ungrounded", answer.Ungrounded))

	return answer, nil
}

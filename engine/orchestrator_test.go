package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafwise/leafwise/llm"
	"github.com/leafwise/leafwise/types"
)

// mockProvider scripts llm.Provider responses per call.
type mockProvider struct {
	responses []func() (*llm.ChatResponse, error)
	requests  []*llm.ChatRequest
}

func (m *mockProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.requests = append(m.requests, req)
	if len(m.responses) == 0 {
		return textResponse("default answer"), nil
	}
	fn := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return fn()
}

func (m *mockProvider) Name() string { return "mock-llm" }

func textResponse(text string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Model: "test",
		Choices: []llm.ChatChoice{{
			Message: types.NewAssistantMessage(text),
		}},
	}
}

func promptWithChunks(ids ...types.ChunkID) *PromptContext {
	pc := &PromptContext{
		Messages: []types.Message{types.NewSystemMessage("sys"), types.NewUserMessage("q")},
		Markers:  make(map[types.ChunkID]string),
	}
	for i, id := range ids {
		pc.IncludedChunkIDs = append(pc.IncludedChunkIDs, id)
		pc.Markers[id] = markerFor(i)
	}
	if len(ids) == 0 {
		pc.Ungrounded = true
	}
	return pc
}

func markerFor(i int) string {
	return "[S" + string(rune('1'+i)) + "]"
}

func TestOrchestrator_KeepsOnlyReferencedCitations(t *testing.T) {
	t.Parallel()
	p := &mockProvider{responses: []func() (*llm.ChatResponse, error){
		func() (*llm.ChatResponse, error) {
			return textResponse("Spray copper fungicide [S1]. Prune affected branches [S3]."), nil
		},
	}}
	o := NewOrchestrator(p, OrchestratorConfig{}, zap.NewNop())

	answer, err := o.Generate(context.Background(), promptWithChunks("c-a", "c-b", "c-c"))
	require.NoError(t, err)
	assert.Equal(t, []types.ChunkID{"c-a", "c-c"}, answer.CitedChunkIDs)
	assert.False(t, answer.Ungrounded)
}

func TestOrchestrator_UngroundedAnswerHasNoCitations(t *testing.T) {
	t.Parallel()
	p := &mockProvider{responses: []func() (*llm.ChatResponse, error){
		func() (*llm.ChatResponse, error) { return textResponse("general advice"), nil },
	}}
	o := NewOrchestrator(p, OrchestratorConfig{}, zap.NewNop())

	answer, err := o.Generate(context.Background(), promptWithChunks())
	require.NoError(t, err)
	assert.True(t, answer.Ungrounded)
	assert.Empty(t, answer.CitedChunkIDs)
}

func TestOrchestrator_EmptyOutputIsGenerationError(t *testing.T) {
	t.Parallel()
	p := &mockProvider{responses: []func() (*llm.ChatResponse, error){
		func() (*llm.ChatResponse, error) { return textResponse("   "), nil },
	}}
	o := NewOrchestrator(p, OrchestratorConfig{}, zap.NewNop())

	_, err := o.Generate(context.Background(), promptWithChunks("c-a"))
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))
}

func TestOrchestrator_RetriesTransientFailureWithSamePrompt(t *testing.T) {
	t.Parallel()
	p := &mockProvider{responses: []func() (*llm.ChatResponse, error){
		func() (*llm.ChatResponse, error) {
			return nil, types.NewError(types.ErrUpstreamError, "blip").WithRetryable(true)
		},
		func() (*llm.ChatResponse, error) { return textResponse("recovered [S1]"), nil },
	}}
	o := NewOrchestrator(p, OrchestratorConfig{Timeout: 5 * time.Second}, zap.NewNop())

	answer, err := o.Generate(context.Background(), promptWithChunks("c-a"))
	require.NoError(t, err)
	assert.Equal(t, "recovered [S1]", answer.Text)

	// One transport retry, identical prompt content on both attempts.
	require.Len(t, p.requests, 2)
	assert.Equal(t, p.requests[0].Messages, p.requests[1].Messages)
}

func TestOrchestrator_FatalFailureIsNotRetried(t *testing.T) {
	t.Parallel()
	p := &mockProvider{responses: []func() (*llm.ChatResponse, error){
		func() (*llm.ChatResponse, error) {
			return nil, types.NewError(types.ErrUnauthorized, "bad key").WithRetryable(false)
		},
	}}
	o := NewOrchestrator(p, OrchestratorConfig{}, zap.NewNop())

	_, err := o.Generate(context.Background(), promptWithChunks("c-a"))
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))
	assert.Len(t, p.requests, 1)
}

func TestOrchestrator_RetryBudgetExhausted(t *testing.T) {
	t.Parallel()
	down := func() (*llm.ChatResponse, error) {
		return nil, types.NewError(types.ErrUpstreamError, "down").WithRetryable(true)
	}
	p := &mockProvider{responses: []func() (*llm.ChatResponse, error){down, down, down}}
	o := NewOrchestrator(p, OrchestratorConfig{}, zap.NewNop())

	_, err := o.Generate(context.Background(), promptWithChunks("c-a"))
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))
	assert.Len(t, p.requests, 2, "single transport-level retry only")
}

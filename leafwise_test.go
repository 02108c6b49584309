package leafwise

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafwise/leafwise/embedding"
	"github.com/leafwise/leafwise/llm"
	"github.com/leafwise/leafwise/rag"
	"github.com/leafwise/leafwise/types"
)

type staticProvider struct{}

func (staticProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Choices: []llm.ChatChoice{{
		Message: types.NewAssistantMessage("hello"),
	}}}, nil
}
func (staticProvider) Name() string { return "static" }

type staticEmbedder struct{}

func (staticEmbedder) Embed(ctx context.Context, req *embedding.Request) (*embedding.Response, error) {
	return &embedding.Response{}, nil
}
func (staticEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return []float64{1, 0}, nil
}
func (staticEmbedder) Name() string    { return "static-embedder" }
func (staticEmbedder) Dimensions() int { return 2 }

func TestNew_RequiresProvider(t *testing.T) {
	t.Parallel()
	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat provider")
}

func TestNew_RequiresEmbedder(t *testing.T) {
	t.Parallel()
	_, err := New(WithProvider(staticProvider{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedder")
}

func TestNew_RequiresKnowledgeSource(t *testing.T) {
	t.Parallel()
	_, err := New(WithProvider(staticProvider{}), WithEmbedder(staticEmbedder{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge source")
}

func TestNew_BuildsEngine(t *testing.T) {
	t.Parallel()
	eng, err := New(
		WithProvider(staticProvider{}),
		WithEmbedder(staticEmbedder{}),
		WithKnowledgeStore(rag.NewInMemoryVectorStore(nil)),
		WithLogger(zap.NewNop()),
		WithTopK(5),
		WithContextBudget(2048),
	)
	require.NoError(t, err)

	sess, err := eng.CreateSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
}

package rag

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSnapshot(t *testing.T, snap Snapshot) string {
	t.Helper()
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "knowledge.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadSnapshot(t *testing.T) {
	t.Parallel()
	path := writeSnapshot(t, Snapshot{
		EmbeddingModel: "text-embedding-3-small",
		Dimensions:     2,
		Chunks: []Chunk{
			chunk("rust-1", "coffee_disease_guide.pdf", 0, []float64{1, 0}),
			chunk("rust-2", "coffee_disease_guide.pdf", 1000, []float64{0, 1}),
		},
	})

	store, err := LoadSnapshot(path, zap.NewNop())
	require.NoError(t, err)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLoadSnapshot_RejectsDimensionMismatch(t *testing.T) {
	t.Parallel()
	path := writeSnapshot(t, Snapshot{
		Dimensions: 2,
		Chunks: []Chunk{
			chunk("ok", "guide.pdf", 0, []float64{1, 0}),
			chunk("bad", "guide.pdf", 1000, []float64{1, 0, 0}),
		},
	})

	_, err := LoadSnapshot(path, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestLoadSnapshot_RejectsEmptyAndMissing(t *testing.T) {
	t.Parallel()

	path := writeSnapshot(t, Snapshot{})
	_, err := LoadSnapshot(path, zap.NewNop())
	require.Error(t, err)

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"), zap.NewNop())
	require.Error(t, err)
}

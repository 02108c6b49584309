package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Snapshot is the on-disk format of a pre-built knowledge index: chunks
// with precomputed embeddings, produced by the offline ingestion process.
type Snapshot struct {
	EmbeddingModel string  `json:"embedding_model"`
	Dimensions     int     `json:"dimensions"`
	Chunks         []Chunk `json:"chunks"`
}

// LoadSnapshot reads a snapshot file and returns a populated in-memory
// store. The snapshot is validated for consistent embedding dimensions.
func LoadSnapshot(path string, logger *zap.Logger) (*InMemoryVectorStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	if len(snap.Chunks) == 0 {
		return nil, fmt.Errorf("snapshot %s contains no chunks", path)
	}

	dims := snap.Dimensions
	if dims == 0 {
		dims = len(snap.Chunks[0].Embedding)
	}
	for _, c := range snap.Chunks {
		if len(c.Embedding) != dims {
			return nil, fmt.Errorf("chunk %s: embedding dimension %d, want %d",
				c.ID, len(c.Embedding), dims)
		}
	}

	store := NewInMemoryVectorStore(logger)
	if err := store.AddChunks(context.Background(), snap.Chunks); err != nil {
		return nil, err
	}

	logger.Info("knowledge snapshot loaded",
		zap.String("path", path),
		zap.String("embedding_model", snap.EmbeddingModel),
		zap.Int("chunks", len(snap.Chunks)),
		zap.Int("dimensions", dims))

	return store, nil
}

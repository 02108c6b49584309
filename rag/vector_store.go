package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// VectorStore is the knowledge-store boundary: nearest-neighbor lookup
// over pre-built chunk embeddings. Implementations must be safe for
// concurrent readers.
type VectorStore interface {
	// Search returns the topK chunks closest to the query embedding,
	// descending by similarity score.
	Search(ctx context.Context, queryEmbedding []float64, topK int) ([]ScoredChunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// InMemoryVectorStore holds all chunks in memory and ranks them by cosine
// similarity. Suitable for knowledge bases in the thousands of chunks,
// which covers a single-crop disease corpus comfortably.
type InMemoryVectorStore struct {
	chunks []Chunk
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewInMemoryVectorStore creates an empty in-memory store.
func NewInMemoryVectorStore(logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		chunks: make([]Chunk, 0),
		logger: logger,
	}
}

// AddChunks loads chunks into the store. Used at startup by the snapshot
// loader; the store is read-only once serving begins.
func (s *InMemoryVectorStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		s.chunks = append(s.chunks, c)
	}

	s.logger.Info("chunks added to vector store",
		zap.Int("count", len(chunks)),
		zap.Int("total", len(s.chunks)))

	return nil
}

// Search returns the topK most similar chunks, descending by score with
// ties broken by ascending chunk id for reproducible ordering.
func (s *InMemoryVectorStore) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return []ScoredChunk{}, nil
	}

	results := make([]ScoredChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		results = append(results, ScoredChunk{
			Chunk: c,
			Score: cosineSimilarity(queryEmbedding, c.Embedding),
		})
	}

	sortByScore(results)

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Count returns the chunk count.
func (s *InMemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore orders results by descending score, ascending chunk id on ties.
func sortByScore(results []ScoredChunk) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}

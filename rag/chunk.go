package rag

import "github.com/leafwise/leafwise/types"

// Chunk is a fixed-size slice of a source document with a precomputed
// embedding, used as the retrieval unit. Immutable, owned by the store.
type Chunk struct {
	ID             types.ChunkID `json:"id"`
	Text           string        `json:"text"`
	Embedding      []float64     `json:"embedding"`
	SourceDocument string        `json:"source_document"`
	Offset         int           `json:"offset"`
}

// ScoredChunk pairs a chunk with its relevance score for one query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is an ordered, deduplicated sequence of scored chunks,
// descending by score with ties broken by ascending chunk id.
type RetrievalResult []ScoredChunk

// ChunkIDs returns the chunk ids in result order.
func (r RetrievalResult) ChunkIDs() []types.ChunkID {
	ids := make([]types.ChunkID, 0, len(r))
	for _, sc := range r {
		ids = append(ids, sc.Chunk.ID)
	}
	return ids
}

// Contains reports whether the result includes the given chunk id.
func (r RetrievalResult) Contains(id types.ChunkID) bool {
	for _, sc := range r {
		if sc.Chunk.ID == id {
			return true
		}
	}
	return false
}

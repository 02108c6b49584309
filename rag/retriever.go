package rag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/leafwise/leafwise/embedding"
	"github.com/leafwise/leafwise/types"
)

// RetrieverConfig configures retrieval behavior.
type RetrieverConfig struct {
	// TopK is the number of chunks returned per query.
	TopK int `yaml:"top_k"`

	// FetchK is the number of candidates pulled from the store before
	// deduplication. Must be >= TopK; defaults to 3x TopK.
	FetchK int `yaml:"fetch_k"`

	// Timeout bounds a single retrieval flight. Flights run detached from
	// caller contexts since concurrent identical queries share one flight.
	// Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`
}

// Retriever executes queries against the knowledge store: embed, search,
// deduplicate, rank. Identical concurrent queries are collapsed through
// singleflight so retrieval is never redundantly re-executed.
type Retriever struct {
	embedder embedding.Provider
	store    VectorStore
	cfg      RetrieverConfig
	group    singleflight.Group
	logger   *zap.Logger
}

// NewRetriever creates a retriever over the given store. The store is an
// injected read-only dependency, never ambient state.
func NewRetriever(embedder embedding.Provider, store VectorStore, cfg RetrieverConfig, logger *zap.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.FetchK < cfg.TopK {
		cfg.FetchK = cfg.TopK * 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve returns the TopK highest-scoring chunks for the query,
// deduplicated by chunk id and by source-document offset. A store that is
// unreachable or empty yields a RETRIEVAL_FAILED error; callers degrade to
// ungrounded generation rather than silently reusing stale evidence.
func (r *Retriever) Retrieve(ctx context.Context, query string) (RetrievalResult, error) {
	key := fmt.Sprintf("%d|%s", r.cfg.TopK, query)
	v, err, shared := r.group.Do(key, func() (any, error) {
		// The flight may serve callers other than the one whose context
		// it captured, so it carries its own deadline instead.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
		defer cancel()
		return r.retrieve(fctx, query)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debug("retrieval shared across concurrent callers",
			zap.String("query", query))
	}
	return v.(RetrievalResult), nil
}

func (r *Retriever) retrieve(ctx context.Context, query string) (RetrievalResult, error) {
	count, err := r.store.Count(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalFailed, "knowledge store unreachable").WithCause(err)
	}
	if count == 0 {
		return nil, types.NewError(types.ErrRetrievalFailed, "knowledge store is empty")
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalFailed, "query embedding failed").WithCause(err)
	}

	candidates, err := r.store.Search(ctx, queryEmbedding, r.cfg.FetchK)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalFailed, "vector search failed").WithCause(err)
	}

	result := dedupe(candidates)
	sortByScore(result)
	if len(result) > r.cfg.TopK {
		result = result[:r.cfg.TopK]
	}

	r.logger.Debug("retrieval complete",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(result)))

	return result, nil
}

// dedupe removes duplicate chunks: same id, or same (source, offset) range.
// The highest-scoring occurrence wins; candidates arrive score-descending.
func dedupe(candidates []ScoredChunk) RetrievalResult {
	seenID := make(map[types.ChunkID]bool, len(candidates))
	seenOffset := make(map[string]bool, len(candidates))

	out := make(RetrievalResult, 0, len(candidates))
	for _, sc := range candidates {
		if seenID[sc.Chunk.ID] {
			continue
		}
		offsetKey := fmt.Sprintf("%s#%d", sc.Chunk.SourceDocument, sc.Chunk.Offset)
		if seenOffset[offsetKey] {
			continue
		}
		seenID[sc.Chunk.ID] = true
		seenOffset[offsetKey] = true
		out = append(out, sc)
	}
	return out
}

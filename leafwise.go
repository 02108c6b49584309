// Package leafwise provides a top-level convenience entry point for
// embedding the coffee-leaf disease conversation engine with minimal
// boilerplate.
//
// Usage:
//
//	import "github.com/leafwise/leafwise"
//
//	eng, err := leafwise.New(
//	    leafwise.WithGroq("llama3-8b-8192"),
//	    leafwise.WithOpenAIEmbedding("text-embedding-3-small"),
//	    leafwise.WithKnowledgeSnapshot("knowledge/snapshot.json"),
//	)
//
// The server binary under cmd/leafwise wires the same engine from a
// config file; this package is for programmatic use.
package leafwise

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/leafwise/leafwise/detector"
	"github.com/leafwise/leafwise/embedding"
	"github.com/leafwise/leafwise/engine"
	"github.com/leafwise/leafwise/llm"
	"github.com/leafwise/leafwise/llm/tokenizer"
	"github.com/leafwise/leafwise/rag"
	"github.com/leafwise/leafwise/session"
)

// Engine is the conversation engine. See the engine package for the full
// API surface.
type Engine = engine.Engine

type options struct {
	provider     llm.Provider
	model        string
	embedder     embedding.Provider
	store        rag.VectorStore
	snapshotPath string
	det          detector.Detector
	sessions     session.Store
	logger       *zap.Logger
	assembler    engine.AssemblerConfig
	retrieval    rag.RetrieverConfig
	orchestrator engine.OrchestratorConfig
}

// Option configures the engine created by [New].
type Option func(*options)

// WithProvider sets a pre-built chat model provider.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithGroq creates a Groq provider. API key from GROQ_API_KEY env.
func WithGroq(model string) Option {
	return func(o *options) {
		o.model = model
		o.provider = llm.NewOpenAICompat(llm.OpenAICompatConfig{
			ProviderName: "groq",
			APIKey:       os.Getenv("GROQ_API_KEY"),
			BaseURL:      "https://api.groq.com/openai",
			DefaultModel: model,
		}, nil)
	}
}

// WithOpenAI creates an OpenAI provider. API key from OPENAI_API_KEY env.
func WithOpenAI(model string) Option {
	return func(o *options) {
		o.model = model
		o.provider = llm.NewOpenAICompat(llm.OpenAICompatConfig{
			ProviderName: "openai",
			APIKey:       os.Getenv("OPENAI_API_KEY"),
			BaseURL:      "https://api.openai.com",
			DefaultModel: model,
		}, nil)
	}
}

// WithEmbedder sets a pre-built embedding provider.
func WithEmbedder(e embedding.Provider) Option {
	return func(o *options) { o.embedder = e }
}

// WithOpenAIEmbedding creates an OpenAI embedding provider. API key from
// OPENAI_API_KEY env.
func WithOpenAIEmbedding(model string) Option {
	return func(o *options) {
		o.embedder = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: "https://api.openai.com",
			Model:   model,
		})
	}
}

// WithKnowledgeStore sets a pre-built vector store.
func WithKnowledgeStore(s rag.VectorStore) Option {
	return func(o *options) { o.store = s }
}

// WithKnowledgeSnapshot loads the vector store from a snapshot file.
func WithKnowledgeSnapshot(path string) Option {
	return func(o *options) { o.snapshotPath = path }
}

// WithDetector sets the image disease detector. Optional; without it,
// image uploads are rejected.
func WithDetector(d detector.Detector) Option {
	return func(o *options) { o.det = d }
}

// WithSessionStore sets the session store. Defaults to in-memory.
func WithSessionStore(s session.Store) Option {
	return func(o *options) { o.sessions = s }
}

// WithLogger sets a custom zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithContextBudget sets the prompt token budget.
func WithContextBudget(maxTokens int) Option {
	return func(o *options) { o.assembler.MaxTokens = maxTokens }
}

// WithTopK sets the number of evidence chunks retrieved per query.
func WithTopK(k int) Option {
	return func(o *options) { o.retrieval.TopK = k }
}

// New creates a conversation engine with minimal configuration. At
// minimum a chat provider, an embedder, and a knowledge source must be
// specified.
func New(opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.provider == nil {
		return nil, fmt.Errorf("leafwise: a chat provider is required (WithGroq, WithOpenAI, or WithProvider)")
	}
	if o.embedder == nil {
		return nil, fmt.Errorf("leafwise: an embedder is required (WithOpenAIEmbedding or WithEmbedder)")
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	store := o.store
	if store == nil {
		if o.snapshotPath == "" {
			return nil, fmt.Errorf("leafwise: a knowledge source is required (WithKnowledgeSnapshot or WithKnowledgeStore)")
		}
		loaded, err := rag.LoadSnapshot(o.snapshotPath, o.logger)
		if err != nil {
			return nil, err
		}
		store = loaded
	}

	if o.sessions == nil {
		o.sessions = session.NewInMemoryStore()
	}
	if o.orchestrator.Model == "" {
		o.orchestrator.Model = o.model
	}

	return engine.New(engine.Options{
		Sessions:     o.sessions,
		Detector:     o.det,
		Retriever:    rag.NewRetriever(o.embedder, store, o.retrieval, o.logger),
		Provider:     o.provider,
		Tokenizer:    tokenizer.New(o.orchestrator.Model),
		Assembler:    o.assembler,
		Orchestrator: o.orchestrator,
		Logger:       o.logger,
	})
}

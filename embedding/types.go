// Package embedding provides the embedding-provider contract and an
// OpenAI-compatible HTTP implementation used to embed retrieval queries.
package embedding

import (
	"context"
	"time"
)

// InputType specifies what the inputs are being embedded for.
type InputType string

const (
	InputTypeQuery    InputType = "query"
	InputTypeDocument InputType = "document"
)

// Request represents a request to generate embeddings.
type Request struct {
	Input     []string  `json:"input"`
	Model     string    `json:"model,omitempty"`
	InputType InputType `json:"input_type,omitempty"`
}

// Data represents a single embedding result.
type Data struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// Usage represents token usage for an embedding request.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response represents the response to an embedding request.
type Response struct {
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Embeddings []Data    `json:"embeddings"`
	Usage      Usage     `json:"usage"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Provider defines the unified embedding provider interface.
type Provider interface {
	// Embed generates embeddings for the given inputs.
	Embed(ctx context.Context, req *Request) (*Response, error)

	// EmbedQuery is a convenience method embedding a single query.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// Name returns the provider name.
	Name() string

	// Dimensions returns the default embedding dimensionality.
	Dimensions() int
}

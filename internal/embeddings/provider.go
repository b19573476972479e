// Package embeddings provides embedding generation for chunks and queries.
package embeddings

import (
	"context"
	"errors"
)

// Sentinel errors for embedding operations.
var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrModelUnavailable indicates the embedding model could not be
	// reached or returned a server-side failure. Transient.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrInputTooLong indicates input past the model's sequence limit.
	// Chunks are token-bounded upstream, so this is a defect, not a
	// transient condition.
	ErrInputTooLong = errors.New("input too long for embedding model")
)

// Provider generates vector embeddings from text.
//
// Vectors for the same text are deterministic so that cache entries and
// index records stay valid across invocations.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts,
	// preserving input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Health reports whether the model endpoint is reachable.
	Health(ctx context.Context) error

	// Close releases resources held by the provider.
	Close() error
}

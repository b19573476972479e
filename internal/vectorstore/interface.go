// Package vectorstore defines the interface for chunk vector storage.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/pagequery/internal/page"
)

// Sentinel errors for vector store operations.
var (
	// ErrNamespaceNotFound is returned when no vectors exist for a document.
	ErrNamespaceNotFound = errors.New("document namespace not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyChunks indicates empty or nil chunks.
	ErrEmptyChunks = errors.New("empty or nil chunks")

	// ErrVectorCountMismatch indicates the chunk and vector slices disagree.
	ErrVectorCountMismatch = errors.New("chunk and vector counts differ")

	// ErrUnavailable indicates the backing store could not be reached or
	// returned a transient failure. Safe to retry.
	ErrUnavailable = errors.New("vector store unavailable")

	// ErrTimeout indicates a store operation exceeded its deadline.
	ErrTimeout = errors.New("vector store operation timed out")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Payload keys stored with every vector.
const (
	payloadDocumentID = "document_id"
	payloadChunkIndex = "chunk_index"
	payloadText       = "text"
	payloadHTML       = "html"
	payloadDOMPath    = "dom_path"
	payloadTokenCount = "token_count"
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// ScoredChunk is a stored chunk returned from a similarity query.
type ScoredChunk struct {
	// DocumentID is the canonical document the chunk belongs to.
	DocumentID string

	// Index is the chunk's position within the document.
	Index int

	// Score is the raw similarity score from the store.
	Score float32

	// TokenCount is the chunk's token count at index time.
	TokenCount int

	// Text is the chunk's plain text.
	Text string

	// HTML is the capped HTML snippet of the chunk's block.
	HTML string

	// DOMPath locates the chunk's block in the source document.
	DOMPath string
}

// pointID derives a stable vector ID from a document ID and chunk index.
// Re-indexing the same document overwrites rather than duplicates.
func pointID(docID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID+"#"+strconv.Itoa(index))).String()
}

// Store persists chunk vectors grouped per document and serves
// similarity queries scoped to a single document.
//
// Implementations:
//   - ChromemStore: embedded chromem-go, one collection per document (default)
//   - QdrantStore: external Qdrant gRPC server, payload-filtered collection
type Store interface {
	// Upsert stores one vector per chunk under the given document ID.
	// Vectors are positional: vectors[i] embeds chunks[i]. Writing the
	// same document twice replaces the prior vectors point for point.
	Upsert(ctx context.Context, docID string, chunks []page.Chunk, vectors [][]float32) error

	// Query returns up to topK chunks of the given document ordered by
	// descending similarity to the query vector. Ties break on ascending
	// chunk index. Returns ErrNamespaceNotFound if the document has never
	// been indexed.
	Query(ctx context.Context, docID string, vector []float32, topK int) ([]ScoredChunk, error)

	// Exists reports whether the document has indexed vectors.
	Exists(ctx context.Context, docID string) (bool, error)

	// Health checks connectivity to the backing store.
	Health(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

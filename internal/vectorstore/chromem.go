// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pagequery/internal/page"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("pagequery.vectorstore.chromem")

// ChromemConfig holds configuration for chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Empty means in-memory only.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	// Default: 384 (BAAI/bge-small-en-v1.5)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies. Each document gets its own collection, so queries are
// naturally scoped and re-indexing a document replaces its vectors.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		expandedPath, err := expandChromemPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}

		if err := os.MkdirAll(expandedPath, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
		}

		db, err = chromem.NewPersistentDB(expandedPath, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	store := &ChromemStore{
		db:     db,
		config: config,
		logger: logger,
	}

	logger.Info("ChromemStore initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
	)

	return store, nil
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// collectionFor maps a document ID to its collection name. Hashing keeps
// any docID within chromem's name charset and length limits.
func collectionFor(docID string) string {
	sum := sha256.Sum256([]byte(docID))
	return "doc_" + hex.EncodeToString(sum[:8])
}

// noEmbeddingFunc is passed where chromem requires an embedding function.
// All vectors are precomputed, so it must never be called. Passing nil
// would make chromem fall back to its OpenAI default.
func noEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding function must not be called: vectors are precomputed")
}

// Upsert stores one vector per chunk under the document's collection.
func (s *ChromemStore) Upsert(ctx context.Context, docID string, chunks []page.Chunk, vectors [][]float32) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("document_id", docID),
		attribute.Int("chunk_count", len(chunks)),
	)

	if len(chunks) == 0 {
		return ErrEmptyChunks
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrVectorCountMismatch, len(chunks), len(vectors))
	}

	collectionName := collectionFor(docID)
	collection, err := s.db.GetOrCreateCollection(collectionName, nil, noEmbeddingFunc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("getting/creating collection %s: %w", collectionName, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:      pointID(docID, chunk.Index),
			Content: chunk.Text,
			Metadata: map[string]string{
				payloadDocumentID: docID,
				payloadChunkIndex: strconv.Itoa(chunk.Index),
				payloadDOMPath:    chunk.DOMPath,
				payloadHTML:       chunk.HTML,
				payloadTokenCount: strconv.Itoa(chunk.TokenCount),
			},
			Embedding: vectors[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("upserted chunks to chromem",
		zap.String("document_id", docID),
		zap.String("collection", collectionName),
		zap.Int("count", len(chunks)),
	)

	return nil
}

// Query returns up to topK chunks ordered by descending similarity.
func (s *ChromemStore) Query(ctx context.Context, docID string, vector []float32, topK int) ([]ScoredChunk, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("document_id", docID),
		attribute.Int("top_k", topK),
	)

	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	collection := s.db.GetCollection(collectionFor(docID), noEmbeddingFunc)
	if collection == nil {
		span.SetStatus(codes.Error, "namespace not found")
		return nil, fmt.Errorf("%w: %s", ErrNamespaceNotFound, docID)
	}

	// chromem requires nResults <= stored count.
	count := collection.Count()
	if count == 0 {
		return []ScoredChunk{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	scored := make([]ScoredChunk, len(results))
	for i, r := range results {
		index, _ := strconv.Atoi(r.Metadata[payloadChunkIndex])
		tokens, _ := strconv.Atoi(r.Metadata[payloadTokenCount])
		scored[i] = ScoredChunk{
			DocumentID: r.Metadata[payloadDocumentID],
			Index:      index,
			Score:      r.Similarity,
			TokenCount: tokens,
			Text:       r.Content,
			HTML:       r.Metadata[payloadHTML],
			DOMPath:    r.Metadata[payloadDOMPath],
		}
	}

	sortScoredChunks(scored)

	span.SetAttributes(attribute.Int("results_count", len(scored)))
	span.SetStatus(codes.Ok, "success")

	return scored, nil
}

// Exists reports whether the document has indexed vectors.
func (s *ChromemStore) Exists(ctx context.Context, docID string) (bool, error) {
	collection := s.db.GetCollection(collectionFor(docID), noEmbeddingFunc)
	return collection != nil && collection.Count() > 0, nil
}

// Health reports store availability. The embedded DB is always reachable.
func (s *ChromemStore) Health(ctx context.Context) error {
	return nil
}

// Close closes the ChromemStore.
// chromem-go persists automatically, no explicit close needed.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

// sortScoredChunks orders by descending score, ascending chunk index on ties.
func sortScoredChunks(chunks []ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Index < chunks[j].Index
	})
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)

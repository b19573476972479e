// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/pagequery/internal/page"
)

// Tracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("pagequery.vectorstore.qdrant")

// QdrantConfig holds configuration for Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP)
	Port int

	// CollectionName is the collection holding all page chunks.
	// Documents are separated by payload filtering on document_id.
	// Default: "pagequery_chunks"
	CollectionName string

	// VectorSize is the dimensionality of embeddings.
	// MUST match the embedder output dimension.
	// Default: 384 (BAAI/bge-small-en-v1.5)
	VectorSize uint64

	// UseTLS enables TLS encryption for gRPC connection.
	UseTLS bool

	// APIKey is the optional Qdrant API key.
	APIKey string

	// OpTimeout bounds a single store operation.
	// Default: 10 seconds
	OpTimeout time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.CollectionName == "" {
		c.CollectionName = "pagequery_chunks"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = 10 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.CollectionName)
}

// classifyQdrantError maps gRPC status codes to sentinel errors so
// callers can decide retry vs. abort without importing grpc.
func classifyQdrantError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case grpccodes.Unavailable, grpccodes.Aborted, grpccodes.ResourceExhausted:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		case grpccodes.DeadlineExceeded:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}
	return err
}

// QdrantStore is a Store implementation using Qdrant's native gRPC client.
//
// All documents share one collection; queries filter on the document_id
// payload field. gRPC transport avoids the HTTP layer's payload limits.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantStore creates a new QdrantStore, verifies connectivity, and
// ensures the chunk collection exists.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.OpTimeout)
	defer cancel()

	if err := store.Health(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("QdrantStore initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.CollectionName),
		zap.Uint64("vector_size", config.VectorSize),
	)

	return store, nil
}

// ensureCollection creates the chunk collection if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.config.CollectionName)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.CollectionName, classifyQdrantError(err))
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.CollectionName, classifyQdrantError(err))
	}

	s.logger.Info("created qdrant collection",
		zap.String("collection", s.config.CollectionName),
		zap.Uint64("vector_size", s.config.VectorSize),
	)
	return nil
}

// documentFilter matches all points belonging to a document.
func documentFilter(docID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: payloadDocumentID,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: docID},
						},
					},
				},
			},
		},
	}
}

// Upsert stores one vector per chunk. Point IDs derive from the document
// ID and chunk index, so re-indexing overwrites in place.
func (s *QdrantStore) Upsert(ctx context.Context, docID string, chunks []page.Chunk, vectors [][]float32) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("document_id", docID),
		attribute.Int("chunk_count", len(chunks)),
		attribute.String("collection", s.config.CollectionName),
	)

	if len(chunks) == 0 {
		return ErrEmptyChunks
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrVectorCountMismatch, len(chunks), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]*qdrant.Value{
			payloadDocumentID: {Kind: &qdrant.Value_StringValue{StringValue: docID}},
			payloadChunkIndex: {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(chunk.Index)}},
			payloadText:       {Kind: &qdrant.Value_StringValue{StringValue: chunk.Text}},
			payloadHTML:       {Kind: &qdrant.Value_StringValue{StringValue: chunk.HTML}},
			payloadDOMPath:    {Kind: &qdrant.Value_StringValue{StringValue: chunk.DOMPath}},
			payloadTokenCount: {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(chunk.TokenCount)}},
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(docID, chunk.Index)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	_, err := s.client.Upsert(opCtx, &qdrant.UpsertPoints{
		CollectionName: s.config.CollectionName,
		Points:         points,
	})
	if err != nil {
		err = classifyQdrantError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points: %w", err)
	}

	span.SetAttributes(attribute.Int("points_added", len(points)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("upserted chunks to qdrant",
		zap.String("document_id", docID),
		zap.Int("count", len(chunks)),
	)

	return nil
}

// Query returns up to topK chunks of the document ordered by descending
// similarity.
func (s *QdrantStore) Query(ctx context.Context, docID string, vector []float32, topK int) ([]ScoredChunk, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("document_id", docID),
		attribute.Int("top_k", topK),
		attribute.String("collection", s.config.CollectionName),
	)

	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	exists, err := s.Exists(ctx, docID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !exists {
		span.SetStatus(codes.Error, "namespace not found")
		return nil, fmt.Errorf("%w: %s", ErrNamespaceNotFound, docID)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	results, err := s.client.Query(opCtx, &qdrant.QueryPoints{
		CollectionName: s.config.CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         documentFilter(docID),
	})
	if err != nil {
		err = classifyQdrantError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	scored := make([]ScoredChunk, len(results))
	for i, point := range results {
		chunk := ScoredChunk{Score: point.Score}
		for key, value := range point.Payload {
			switch val := value.Kind.(type) {
			case *qdrant.Value_StringValue:
				switch key {
				case payloadDocumentID:
					chunk.DocumentID = val.StringValue
				case payloadText:
					chunk.Text = val.StringValue
				case payloadHTML:
					chunk.HTML = val.StringValue
				case payloadDOMPath:
					chunk.DOMPath = val.StringValue
				}
			case *qdrant.Value_IntegerValue:
				switch key {
				case payloadChunkIndex:
					chunk.Index = int(val.IntegerValue)
				case payloadTokenCount:
					chunk.TokenCount = int(val.IntegerValue)
				}
			}
		}
		scored[i] = chunk
	}

	sortScoredChunks(scored)

	span.SetAttributes(attribute.Int("results_count", len(scored)))
	span.SetStatus(codes.Ok, "success")

	return scored, nil
}

// Exists reports whether the document has indexed vectors.
func (s *QdrantStore) Exists(ctx context.Context, docID string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	count, err := s.client.Count(opCtx, &qdrant.CountPoints{
		CollectionName: s.config.CollectionName,
		Filter:         documentFilter(docID),
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("counting points: %w", classifyQdrantError(err))
	}
	return count > 0, nil
}

// Health performs a health check on the Qdrant connection.
func (s *QdrantStore) Health(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Health")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		err = classifyQdrantError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("health check failed: %w", err)
	}

	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Ensure QdrantStore implements Store interface.
var _ Store = (*QdrantStore)(nil)

package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pagequery/internal/cache"
	"github.com/fyrsmithlabs/pagequery/internal/config"
	"github.com/fyrsmithlabs/pagequery/internal/embeddings"
	"github.com/fyrsmithlabs/pagequery/internal/fetcher"
	"github.com/fyrsmithlabs/pagequery/internal/logging"
	"github.com/fyrsmithlabs/pagequery/internal/page"
	"github.com/fyrsmithlabs/pagequery/internal/ratelimit"
	"github.com/fyrsmithlabs/pagequery/internal/vectorstore"
)

// Fetcher retrieves a web page as a canonical document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*page.Document, error)
}

// Chunker splits a document into indexable chunks.
type Chunker interface {
	Chunk(doc *page.Document) ([]page.Chunk, error)
}

// Embedder generates vectors for chunks and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service runs the search pipeline. It owns the result cache and the
// per-client admission limiter; everything else is injected.
type Service struct {
	fetcher  Fetcher
	chunker  Chunker
	embedder Embedder
	store    vectorstore.Store
	cache    *cache.Cache[Response]
	limiter  *ratelimit.Limiter
	logger   *logging.Logger
	metrics  *Metrics
	cfg      config.SearchConfig
}

// NewService wires a search pipeline from configuration and stage
// implementations.
func NewService(cfg *config.Config, f Fetcher, c Chunker, e Embedder, store vectorstore.Store, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		fetcher:  f,
		chunker:  c,
		embedder: e,
		store:    store,
		cache:    cache.New[Response](cfg.Cache.TTL.Duration(), cfg.Cache.MaxEntries),
		limiter:  ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration()),
		logger:   logger.Named("search"),
		metrics:  NewMetrics(logger.Zap()),
		cfg:      cfg.Search,
	}
}

// Search answers a query against one page's content. clientID scopes
// rate limiting, typically the caller's IP.
func (s *Service) Search(ctx context.Context, clientID string, req Request) (*Response, error) {
	start := time.Now()

	resp, err := s.search(ctx, clientID, req)

	outcome := "ok"
	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			outcome = string(serr.Kind)
		} else {
			outcome = string(KindInternal)
		}
	}
	s.metrics.RecordSearch(ctx, outcome, time.Since(start))

	return resp, err
}

func (s *Service) search(ctx context.Context, clientID string, req Request) (*Response, error) {
	canonicalURL, query, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	if decision := s.limiter.Admit(clientID); !decision.Allowed {
		return nil, &Error{
			Kind:       KindRateLimited,
			Message:    "rate limit exceeded",
			RetryAfter: decision.RetryAfter,
		}
	}

	key := cache.Key(canonicalURL, query)
	if entry, ok := s.cache.Get(key); ok {
		s.metrics.RecordCache(ctx, true)
		s.logger.Debug(ctx, "cache hit",
			zap.String("url", canonicalURL),
			zap.Int("results", len(entry.Value.Results)),
		)
		resp := entry.Value
		return &resp, nil
	}
	s.metrics.RecordCache(ctx, false)

	doc, err := s.fetch(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return nil, newError(KindChunk, "page has no indexable text", err)
	}

	if err := s.index(ctx, doc, chunks); err != nil {
		return nil, err
	}

	scored, err := s.query(ctx, doc.ID, query)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Results:     rank(scored, s.cfg.TopN),
		TotalChunks: len(chunks),
		Query:       query,
	}

	s.cache.Set(key, *resp)

	s.logger.Info(ctx, "search completed",
		zap.String("url", canonicalURL),
		zap.String("document_id", doc.ID),
		zap.Int("total_chunks", len(chunks)),
		zap.Int("results", len(resp.Results)),
	)

	return resp, nil
}

// validate checks the request and returns the canonical URL and the
// trimmed query.
func (s *Service) validate(req Request) (string, string, error) {
	canonicalURL, err := page.CanonicalURL(req.URL)
	if err != nil {
		return "", "", newError(KindValidation, "url must be an absolute http or https URL", err)
	}

	query := strings.TrimSpace(req.Query)
	if len(query) < s.cfg.MinQueryLen {
		return "", "", newError(KindValidation, "query is too short", nil)
	}
	if len(query) > s.cfg.MaxQueryLen {
		return "", "", newError(KindValidation, "query is too long", nil)
	}

	return canonicalURL, query, nil
}

// fetch retrieves the page, retrying only timeouts.
func (s *Service) fetch(ctx context.Context, url string) (*page.Document, error) {
	var doc *page.Document
	err := s.retry(ctx, fetchRetryable, func() error {
		var ferr error
		doc, ferr = s.fetcher.Fetch(ctx, url)
		return ferr
	})
	if err != nil {
		return nil, newError(KindFetch, "could not fetch page", err)
	}
	return doc, nil
}

// index embeds and upserts the chunks unless the document is already
// indexed.
func (s *Service) index(ctx context.Context, doc *page.Document, chunks []page.Chunk) error {
	var exists bool
	err := s.retry(ctx, indexRetryable, func() error {
		var serr error
		exists, serr = s.store.Exists(ctx, doc.ID)
		return serr
	})
	if err != nil {
		return newError(KindIndex, "vector index unavailable", err)
	}
	if exists {
		s.logger.Debug(ctx, "document already indexed",
			zap.String("document_id", doc.ID),
		)
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	err = s.retry(ctx, embedRetryable, func() error {
		var eerr error
		vectors, eerr = s.embedder.EmbedDocuments(ctx, texts)
		return eerr
	})
	if err != nil {
		return newError(KindEmbed, "could not embed page content", err)
	}

	err = s.retry(ctx, indexRetryable, func() error {
		return s.store.Upsert(ctx, doc.ID, chunks, vectors)
	})
	if err != nil {
		return newError(KindIndex, "could not index page content", err)
	}

	s.logger.Debug(ctx, "indexed document",
		zap.String("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// query embeds the query and runs the similarity search. A missing
// namespace yields an empty result set rather than a failure.
func (s *Service) query(ctx context.Context, docID, query string) ([]vectorstore.ScoredChunk, error) {
	var vector []float32
	err := s.retry(ctx, embedRetryable, func() error {
		var eerr error
		vector, eerr = s.embedder.EmbedQuery(ctx, query)
		return eerr
	})
	if err != nil {
		return nil, newError(KindEmbed, "could not embed query", err)
	}

	var scored []vectorstore.ScoredChunk
	err = s.retry(ctx, indexRetryable, func() error {
		var qerr error
		scored, qerr = s.store.Query(ctx, docID, vector, s.cfg.TopK)
		return qerr
	})
	if err != nil {
		if errors.Is(err, vectorstore.ErrNamespaceNotFound) {
			return nil, nil
		}
		return nil, newError(KindIndex, "could not query vector index", err)
	}

	return scored, nil
}

func (s *Service) retry(ctx context.Context, retryable func(error) bool, op func() error) error {
	return withRetry(ctx, s.cfg.RetryAttempts, s.cfg.RetryBackoff.Duration(), retryable, op)
}

// Stage retry predicates. Everything not listed aborts immediately.
func fetchRetryable(err error) bool {
	return errors.Is(err, fetcher.ErrTimeout)
}

func embedRetryable(err error) bool {
	return errors.Is(err, embeddings.ErrModelUnavailable)
}

func indexRetryable(err error) bool {
	return errors.Is(err, vectorstore.ErrUnavailable) || errors.Is(err, vectorstore.ErrTimeout)
}

// Package httpapi provides the HTTP API for pagequery.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pagequery/internal/config"
	"github.com/fyrsmithlabs/pagequery/internal/fetcher"
	"github.com/fyrsmithlabs/pagequery/internal/logging"
	"github.com/fyrsmithlabs/pagequery/internal/search"
)

// Searcher answers page search requests.
type Searcher interface {
	Search(ctx context.Context, clientID string, req search.Request) (*search.Response, error)
}

// HealthChecker reports availability of a dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server provides HTTP endpoints for pagequery.
type Server struct {
	echo     *echo.Echo
	searcher Searcher
	index    HealthChecker
	embedder HealthChecker
	logger   *logging.Logger
	config   config.ServerConfig
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.ServerConfig, searcher Searcher, index, embedder HealthChecker, logger *logging.Logger) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(correlationMiddleware)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		searcher: searcher,
		index:    index,
		embedder: embedder,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// correlationMiddleware stores the request ID and the client identity
// in the request context, so every log line downstream of the handler
// carries them.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ctx = logging.ContextWithRequestID(ctx, c.Response().Header().Get(echo.HeaderXRequestID))
		ctx = logging.ContextWithClientID(ctx, c.RealIP())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/search", s.handleSearch)
}

// errorBody is the error envelope for all non-2xx responses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleSearch runs the search pipeline for one page and query.
func (s *Server) handleSearch(c echo.Context) error {
	var req search.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid search request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, errorBody{Error: errorDetail{
			Kind:    string(search.KindValidation),
			Message: "invalid request body",
		}})
	}

	resp, err := s.searcher.Search(c.Request().Context(), c.RealIP(), req)
	if err != nil {
		return s.writeSearchError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// writeSearchError maps pipeline failures to HTTP statuses.
func (s *Server) writeSearchError(c echo.Context, err error) error {
	var serr *search.Error
	if !errors.As(err, &serr) {
		s.logger.Error(c.Request().Context(), "unclassified search failure", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody{Error: errorDetail{
			Kind:    string(search.KindInternal),
			Message: "internal error",
		}})
	}

	status := http.StatusInternalServerError
	switch serr.Kind {
	case search.KindValidation:
		status = http.StatusBadRequest
	case search.KindRateLimited:
		status = http.StatusTooManyRequests
		seconds := int(math.Ceil(serr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	case search.KindChunk:
		status = http.StatusUnprocessableEntity
	case search.KindFetch:
		status = http.StatusBadGateway
		if errors.Is(serr, fetcher.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
	case search.KindEmbed, search.KindIndex:
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "search failed", zap.Error(serr))
	} else {
		s.logger.Warn(c.Request().Context(), "search rejected",
			zap.String("kind", string(serr.Kind)),
			zap.Int("status", status),
		)
	}

	return c.JSON(status, errorBody{Error: errorDetail{
		Kind:    string(serr.Kind),
		Message: serr.Message,
	}})
}

// handleHealth pings the index and the embedder. Any failing check
// degrades the response to 503.
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	for name, dep := range map[string]HealthChecker{"index": s.index, "embedder": s.embedder} {
		if dep == nil {
			continue
		}
		if err := dep.Health(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Checks: checks})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

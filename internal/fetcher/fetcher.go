// Package fetcher retrieves and normalizes page markup.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/fyrsmithlabs/pagequery/internal/logging"
	"github.com/fyrsmithlabs/pagequery/internal/page"
)

// Sentinel errors for fetch failures. Callers distinguish them with errors.Is.
var (
	// ErrUnreachable indicates a network-level failure.
	ErrUnreachable = errors.New("page unreachable")

	// ErrTimeout indicates the fetch exceeded its deadline.
	ErrTimeout = errors.New("fetch timed out")

	// ErrTooLarge indicates the response exceeded the size ceiling.
	ErrTooLarge = errors.New("page too large")

	// ErrNotHTML indicates a non-HTML content type.
	ErrNotHTML = errors.New("not an HTML page")

	// ErrTooManyRedirects indicates the redirect cap was hit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBadStatus indicates a non-2xx response.
	ErrBadStatus = errors.New("unexpected response status")
)

// htmlContentTypes are the media types accepted as HTML.
var htmlContentTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
}

// Config holds fetcher configuration.
type Config struct {
	// Timeout bounds the whole fetch including redirects.
	Timeout time.Duration

	// MaxRedirects caps redirect following.
	MaxRedirects int

	// MaxBodyBytes is the decoded body size ceiling.
	MaxBodyBytes int64

	// UserAgent is sent with every request.
	UserAgent string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = 5
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 5 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; pagequery/1.0)"
	}
}

// Fetcher retrieves raw page markup over HTTP.
type Fetcher struct {
	client *http.Client
	config Config
	logger *logging.Logger
}

// New creates a Fetcher.
func New(cfg Config, logger *logging.Logger) *Fetcher {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}

	return &Fetcher{
		client: client,
		config: cfg,
		logger: logger.Named("fetcher"),
	}
}

// Fetch retrieves the page at url and returns a normalized document.
//
// The body is transcoded to UTF-8 based on the declared charset. Non-HTML
// content types and oversized bodies are rejected before any parsing happens.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*page.Document, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	mediaType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		if !htmlContentTypes[mt] {
			return nil, fmt.Errorf("%w: got %s", ErrNotHTML, mt)
		}
	} else if mediaType != "" {
		return nil, fmt.Errorf("%w: unparseable content type %q", ErrNotHTML, mediaType)
	}

	if resp.ContentLength > f.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, resp.ContentLength, f.config.MaxBodyBytes)
	}

	// Read one byte past the ceiling so truncation is detectable.
	limited := io.LimitReader(resp.Body, f.config.MaxBodyBytes+1)

	// Transcode to UTF-8 using the declared or sniffed charset.
	reader, err := charset.NewReader(limited, mediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: charset detection: %v", ErrNotHTML, err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrTooLarge, f.config.MaxBodyBytes)
	}

	doc, err := page.NewDocument(url, string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	f.logger.Debug(ctx, "fetched page",
		zap.String("url", url),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return doc, nil
}

// classifyTransportError maps transport failures to fetch sentinels.
func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, ErrTooManyRedirects):
		return fmt.Errorf("%w: %v", ErrTooManyRedirects, err)
	default:
		// http.Client wraps timeouts in *url.Error with Timeout() true.
		var timeout interface{ Timeout() bool }
		if errors.As(err, &timeout) && timeout.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
}

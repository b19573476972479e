package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(cfg Config) *Fetcher {
	return New(cfg, nil)
}

func TestFetcher_Fetch(t *testing.T) {
	const body = "<html><body><p>hello world</p></body></html>"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get("User-Agent"), "pagequery")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	f := newTestFetcher(Config{})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, body, doc.HTML)
	assert.Equal(t, srv.URL, doc.URL)
	assert.Len(t, doc.ID, 64)
}

func TestFetcher_Fetch_TranscodesCharset(t *testing.T) {
	// "café" in ISO-8859-1: the é is a single 0xE9 byte.
	latin1 := []byte("<html><body>caf\xe9</body></html>")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write(latin1)
	}))
	defer srv.Close()

	f := newTestFetcher(Config{})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, "café")
}

func TestFetcher_Fetch_NotHTML(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{name: "json", contentType: "application/json"},
		{name: "plain text", contentType: "text/plain"},
		{name: "pdf", contentType: "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				fmt.Fprint(w, "{}")
			}))
			defer srv.Close()

			f := newTestFetcher(Config{})
			_, err := f.Fetch(context.Background(), srv.URL)
			assert.ErrorIs(t, err, ErrNotHTML)
		})
	}
}

func TestFetcher_Fetch_XHTMLAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xhtml+xml")
		fmt.Fprint(w, "<html><body>x</body></html>")
	}))
	defer srv.Close()

	f := newTestFetcher(Config{})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.NoError(t, err)
}

func TestFetcher_Fetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(Config{})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrBadStatus)
	assert.Contains(t, err.Error(), "404")
}

func TestFetcher_Fetch_TooLarge(t *testing.T) {
	big := "<html><body>" + strings.Repeat("a", 2048) + "</body></html>"

	t.Run("declared content length", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Content-Length", fmt.Sprint(len(big)))
			fmt.Fprint(w, big)
		}))
		defer srv.Close()

		f := newTestFetcher(Config{MaxBodyBytes: 1024})
		_, err := f.Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("streamed past ceiling", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			flusher := w.(http.Flusher)
			// Chunked response hides the size until the body streams in.
			fmt.Fprint(w, big[:512])
			flusher.Flush()
			fmt.Fprint(w, big[512:])
		}))
		defer srv.Close()

		f := newTestFetcher(Config{MaxBodyBytes: 1024})
		_, err := f.Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestFetcher_Fetch_TooManyRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	f := newTestFetcher(Config{MaxRedirects: 3})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestFetcher_Fetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>landed</body></html>")
	})

	f := newTestFetcher(Config{})
	doc, err := f.Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, "landed")
}

func TestFetcher_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	f := newTestFetcher(Config{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFetcher_Fetch_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := newTestFetcher(Config{})
	_, err := f.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFetcher_Fetch_Unreachable(t *testing.T) {
	f := newTestFetcher(Config{Timeout: 2 * time.Second})
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestFetcher_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxRedirects)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxBodyBytes)
	assert.NotEmpty(t, cfg.UserAgent)
}

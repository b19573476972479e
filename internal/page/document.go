// Package page models fetched documents and splits them into
// token-bounded chunks with structural provenance.
package page

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL indicates a URL that is not absolute http/https.
var ErrInvalidURL = errors.New("invalid URL")

// Document is a fetched page. It lives for a single pipeline invocation
// and is discarded after chunking.
type Document struct {
	// URL is the canonicalized source URL.
	URL string

	// ID is the document identity: hex sha256 of the canonical URL.
	// It namespaces the document's records in the vector index.
	ID string

	// HTML is the UTF-8 normalized markup.
	HTML string
}

// NewDocument creates a Document for the given raw URL and markup.
// The URL is canonicalized; the document ID is derived from it.
func NewDocument(rawURL, html string) (*Document, error) {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(canonical))
	return &Document{
		URL:  canonical,
		ID:   hex.EncodeToString(sum[:]),
		HTML: html,
	}, nil
}

// CanonicalURL normalizes a URL so trivially different spellings of the
// same page map to one identity: scheme and host are lowercased, a default
// port is stripped, the path loses its trailing slash, and the fragment is
// dropped. The query string is preserved.
func CanonicalURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, rawURL)
	}

	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""

	return u.String(), nil
}

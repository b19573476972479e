// Package config provides configuration loading for pagequeryd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the pagequery daemon.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Fetcher     FetcherConfig     `koanf:"fetcher"`
	Chunker     ChunkerConfig     `koanf:"chunker"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Cache       CacheConfig       `koanf:"cache"`
	RateLimit   RateLimitConfig   `koanf:"ratelimit"`
	Search      SearchConfig      `koanf:"search"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	Format string `koanf:"format"`
}

// FetcherConfig holds page fetcher configuration.
type FetcherConfig struct {
	// Timeout bounds a single fetch including redirects.
	Timeout Duration `koanf:"timeout"`

	// MaxRedirects caps redirect following.
	MaxRedirects int `koanf:"max_redirects"`

	// MaxBodyBytes is the response size ceiling.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// UserAgent is sent with every request. Some sites reject
	// requests without a browser-like agent.
	UserAgent string `koanf:"user_agent"`
}

// ChunkerConfig holds document chunker configuration.
type ChunkerConfig struct {
	// MaxTokens is the token bound per chunk.
	MaxTokens int `koanf:"max_tokens"`

	// MinTextLen skips anchors with less text than this (bytes).
	MinTextLen int `koanf:"min_text_len"`

	// MaxHTMLLen caps the raw markup slice kept per chunk (bytes).
	MaxHTMLLen int `koanf:"max_html_len"`

	// Encoding is the tiktoken encoding used for token accounting.
	Encoding string `koanf:"encoding"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// BaseURL is the TEI-compatible embedding endpoint.
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// APIKey is the optional bearer token.
	APIKey Secret `koanf:"api_key"`

	// RequestsPerSecond paces outbound embed calls.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Burst is the pacing burst size.
	Burst int `koanf:"burst"`

	// Timeout bounds a single embed call.
	Timeout Duration `koanf:"timeout"`
}

// VectorStoreConfig selects and configures the vector index backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the persistence directory. Empty means in-memory only.
	Path string `koanf:"path"`

	// Compress enables gzip compression for persisted data.
	Compress bool `koanf:"compress"`

	// VectorSize must match the embedder's output dimension.
	VectorSize int `koanf:"vector_size"`
}

// QdrantConfig configures the external Qdrant store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (6334, not the 6333 REST port).
	Port int `koanf:"port"`

	// CollectionName is the collection holding all page chunks.
	CollectionName string `koanf:"collection_name"`

	// VectorSize must match the embedder's output dimension.
	VectorSize int `koanf:"vector_size"`

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`

	// APIKey is the optional Qdrant API key.
	APIKey Secret `koanf:"api_key"`

	// RequestTimeout bounds individual index calls.
	RequestTimeout Duration `koanf:"request_timeout"`
}

// CacheConfig holds result cache configuration.
type CacheConfig struct {
	// TTL is how long a cached result set stays fresh.
	TTL Duration `koanf:"ttl"`

	// MaxEntries caps the cache; LRU eviction beyond this.
	MaxEntries int `koanf:"max_entries"`
}

// RateLimitConfig holds per-client admission configuration.
type RateLimitConfig struct {
	// Requests is the number of admissions per window per client.
	Requests int `koanf:"requests"`

	// Window is the admission window length.
	Window Duration `koanf:"window"`
}

// SearchConfig holds orchestrator configuration.
type SearchConfig struct {
	// TopK is how many neighbors to request from the index.
	TopK int `koanf:"top_k"`

	// TopN is how many results to return after dedup.
	TopN int `koanf:"top_n"`

	// MinQueryLen and MaxQueryLen bound the query string (bytes, after trim).
	MinQueryLen int `koanf:"min_query_len"`
	MaxQueryLen int `koanf:"max_query_len"`

	// RetryAttempts is the retry budget for transient stage failures.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryBackoff is the initial backoff; doubles per attempt.
	RetryBackoff Duration `koanf:"retry_backoff"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Fetcher: FetcherConfig{
			Timeout:      Duration(30 * time.Second),
			MaxRedirects: 5,
			MaxBodyBytes: 5 * 1024 * 1024,
			UserAgent:    "Mozilla/5.0 (compatible; pagequery/1.0)",
		},
		Chunker: ChunkerConfig{
			MaxTokens:  500,
			MinTextLen: 20,
			MaxHTMLLen: 2000,
			Encoding:   "cl100k_base",
		},
		Embedding: EmbeddingConfig{
			BaseURL:           "http://localhost:8081",
			Model:             "BAAI/bge-small-en-v1.5",
			RequestsPerSecond: 10,
			Burst:             5,
			Timeout:           Duration(30 * time.Second),
		},
		VectorStore: VectorStoreConfig{
			Provider: "chromem",
			Chromem: ChromemConfig{
				VectorSize: 384,
			},
			Qdrant: QdrantConfig{
				Host:           "localhost",
				Port:           6334,
				CollectionName: "pagequery_chunks",
				VectorSize:     384,
				RequestTimeout: Duration(30 * time.Second),
			},
		},
		Cache: CacheConfig{
			TTL:        Duration(time.Hour),
			MaxEntries: 100,
		},
		RateLimit: RateLimitConfig{
			Requests: 5,
			Window:   Duration(time.Minute),
		},
		Search: SearchConfig{
			TopK:          20,
			TopN:          10,
			MinQueryLen:   2,
			MaxQueryLen:   200,
			RetryAttempts: 2,
			RetryBackoff:  Duration(time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	if c.Fetcher.Timeout.Duration() <= 0 {
		return fmt.Errorf("fetcher: timeout must be positive")
	}
	if c.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher: max_redirects cannot be negative")
	}
	if c.Fetcher.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetcher: max_body_bytes must be positive")
	}
	if c.Chunker.MaxTokens <= 0 {
		return fmt.Errorf("chunker: max_tokens must be positive")
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding: base_url required")
	}
	switch c.VectorStore.Provider {
	case "chromem", "":
		if c.VectorStore.Chromem.VectorSize <= 0 {
			return fmt.Errorf("vectorstore: chromem vector_size must be positive")
		}
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" {
			return fmt.Errorf("vectorstore: qdrant host required")
		}
		if c.VectorStore.Qdrant.Port <= 0 || c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("vectorstore: invalid qdrant port %d", c.VectorStore.Qdrant.Port)
		}
		if c.VectorStore.Qdrant.CollectionName == "" {
			return fmt.Errorf("vectorstore: qdrant collection_name required")
		}
		if c.VectorStore.Qdrant.VectorSize <= 0 {
			return fmt.Errorf("vectorstore: qdrant vector_size must be positive")
		}
	default:
		return fmt.Errorf("vectorstore: unsupported provider %q (supported: chromem, qdrant)", c.VectorStore.Provider)
	}
	if c.Cache.TTL.Duration() <= 0 {
		return fmt.Errorf("cache: ttl must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache: max_entries must be positive")
	}
	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("ratelimit: requests must be positive")
	}
	if c.RateLimit.Window.Duration() <= 0 {
		return fmt.Errorf("ratelimit: window must be positive")
	}
	if c.Search.TopK <= 0 || c.Search.TopN <= 0 {
		return fmt.Errorf("search: top_k and top_n must be positive")
	}
	if c.Search.TopN > c.Search.TopK {
		return fmt.Errorf("search: top_n (%d) cannot exceed top_k (%d)", c.Search.TopN, c.Search.TopK)
	}
	if c.Search.MinQueryLen <= 0 || c.Search.MaxQueryLen < c.Search.MinQueryLen {
		return fmt.Errorf("search: invalid query length bounds [%d, %d]", c.Search.MinQueryLen, c.Search.MaxQueryLen)
	}
	return nil
}

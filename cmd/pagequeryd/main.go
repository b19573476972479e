// Pagequeryd is the semantic page search daemon.
//
// It fetches a web page, chunks it with DOM provenance, embeds the
// chunks, and serves similarity search over them through an HTTP API.
//
// Usage:
//
//	# Start with defaults
//	pagequeryd
//
//	# Start with a config file
//	pagequeryd -config /etc/pagequery/config.yaml
//
//	# Configure via environment
//	SERVER_PORT=9090 EMBEDDING_BASE_URL=http://tei:80 pagequeryd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/pagequery/internal/config"
	"github.com/fyrsmithlabs/pagequery/internal/embeddings"
	"github.com/fyrsmithlabs/pagequery/internal/fetcher"
	"github.com/fyrsmithlabs/pagequery/internal/httpapi"
	"github.com/fyrsmithlabs/pagequery/internal/logging"
	"github.com/fyrsmithlabs/pagequery/internal/page"
	"github.com/fyrsmithlabs/pagequery/internal/search"
	"github.com/fyrsmithlabs/pagequery/internal/telemetry"
	"github.com/fyrsmithlabs/pagequery/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  pagequeryd           Start the pagequery daemon\n")
			fmt.Fprintf(os.Stderr, "  pagequeryd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("pagequeryd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the pipeline and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.Setup("pagequery", version)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	codec, err := page.NewTiktokenCodec(cfg.Chunker.Encoding)
	if err != nil {
		return fmt.Errorf("loading token encoding: %w", err)
	}

	chunker, err := page.NewChunker(page.Config{
		MaxTokens:  cfg.Chunker.MaxTokens,
		MinTextLen: cfg.Chunker.MinTextLen,
		MaxHTMLLen: cfg.Chunker.MaxHTMLLen,
	}, codec)
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	pageFetcher := fetcher.New(fetcher.Config{
		Timeout:      cfg.Fetcher.Timeout.Duration(),
		MaxRedirects: cfg.Fetcher.MaxRedirects,
		MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
		UserAgent:    cfg.Fetcher.UserAgent,
	}, logger)

	embedder, err := embeddings.NewTEIService(embeddings.Config{
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		APIKey:            cfg.Embedding.APIKey.Value(),
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Burst:             cfg.Embedding.Burst,
		Timeout:           cfg.Embedding.Timeout.Duration(),
	}, logger.Zap())
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	store, err := vectorstore.NewStore(cfg, logger.Zap())
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer func() { _ = store.Close() }()

	service := search.NewService(cfg, pageFetcher, chunker, embedder, store, logger)

	server, err := httpapi.NewServer(cfg.Server, service, store, embedder, logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

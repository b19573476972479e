// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pagequery/internal/config"
)

// NewStore creates a new Store based on the configuration.
//
// The factory examines VectorStoreConfig.Provider and creates the
// matching implementation:
//   - "chromem" (default): embedded ChromemStore, no external deps
//   - "qdrant": QdrantStore, requires a running Qdrant server
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.VectorStore.Chromem.Path,
			Compress:   cfg.VectorStore.Chromem.Compress,
			VectorSize: cfg.VectorStore.Chromem.VectorSize,
		}, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:           cfg.VectorStore.Qdrant.Host,
			Port:           cfg.VectorStore.Qdrant.Port,
			CollectionName: cfg.VectorStore.Qdrant.CollectionName,
			VectorSize:     uint64(cfg.VectorStore.Qdrant.VectorSize),
			UseTLS:         cfg.VectorStore.Qdrant.UseTLS,
			APIKey:         cfg.VectorStore.Qdrant.APIKey.Value(),
			OpTimeout:      cfg.VectorStore.Qdrant.RequestTimeout.Duration(),
		}, logger)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.VectorStore.Provider)
	}
}

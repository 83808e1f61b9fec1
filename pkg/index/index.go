// Package index opens the vector index the answer producer retrieves from.
package index

import (
	"context"
	"fmt"

	"github.com/pario-ai/ragcache/pkg/config"
	"github.com/pario-ai/ragcache/pkg/index/postgres"
	"github.com/pario-ai/ragcache/pkg/index/sqlite"
	"github.com/pario-ai/ragcache/pkg/models"
)

// Index stores embedded chunks and returns the nearest ones to a query vector.
type Index interface {
	// Search returns up to k chunks ordered by descending similarity.
	Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
	// Add stores chunks with their embeddings.
	Add(ctx context.Context, chunks []models.Chunk) error
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int64, error)
	// Close releases resources.
	Close() error
}

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.IndexConfig) (Index, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return sqlite.New(cfg.Path)
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

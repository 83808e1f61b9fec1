// Package postgres stores the vector index in PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/pario-ai/ragcache/pkg/models"
)

// Index performs nearest-neighbour search with pgvector's cosine distance operator.
type Index struct {
	db *sql.DB
}

const migrateSQL = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS chunks (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	embedding vector NOT NULL
);
`

// New connects to dsn and creates the schema if needed.
func New(ctx context.Context, dsn string) (*Index, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect index db: %w", err)
	}
	if _, err := db.ExecContext(ctx, migrateSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index db: %w", err)
	}
	return &Index{db: db}, nil
}

// Add stores chunks in a single transaction.
func (ix *Index) Add(ctx context.Context, chunks []models.Chunk) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return errors.New("chunk has no embedding")
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (source, content, embedding) VALUES ($1, $2, $3)`,
			c.Source, c.Content, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("add chunk: %w", err)
		}
	}
	return tx.Commit()
}

// Search returns the k chunks closest to vector. Score is 1 - cosine distance.
func (ix *Index) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, source, content, 1 - (embedding <=> $1) AS score
		 FROM chunks ORDER BY embedding <=> $1 LIMIT $2`,
		pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		if err := rows.Scan(&sc.ID, &sc.Source, &sc.Content, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// Count returns the number of stored chunks.
func (ix *Index) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (ix *Index) Close() error {
	return ix.db.Close()
}

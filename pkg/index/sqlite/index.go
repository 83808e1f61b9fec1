package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/pgvector/pgvector-go"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/ragcache/pkg/models"
)

// Index is a brute-force cosine similarity index stored in SQLite.
// Embeddings are kept in pgvector text form so an index can be moved to
// PostgreSQL unchanged.
type Index struct {
	db *sql.DB
}

const createChunksTable = `
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	embedding TEXT NOT NULL
);
`

// New opens (creating if needed) the index at dbPath.
func New(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	if _, err := db.Exec(createChunksTable); err != nil {
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

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (source, content, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare add: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return errors.New("chunk has no embedding")
		}
		if _, err := stmt.ExecContext(ctx, c.Source, c.Content, pgvector.NewVector(c.Embedding)); err != nil {
			return fmt.Errorf("add chunk: %w", err)
		}
	}
	return tx.Commit()
}

// Search scans every chunk and returns the k most similar to vector.
func (ix *Index) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx, `SELECT id, source, content, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var (
			sc  models.ScoredChunk
			vec pgvector.Vector
		)
		if err := rows.Scan(&sc.ID, &sc.Source, &sc.Content, &vec); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		sc.Score = cosine(vector, vec.Slice())
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (ix *Index) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close releases the database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// cosine returns the cosine similarity of a and b, or 0 when the
// dimensions differ or either vector is zero.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/ragcache/pkg/models"
)

// Tracker records and queries token usage of upstream calls.
type Tracker interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// TotalSince returns total tokens used since a given time.
	TotalSince(ctx context.Context, since time.Time) (int64, error)
	// Summary returns usage aggregated by call kind and model.
	Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_records(created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a usage record.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO usage_records (kind, model, prompt_tokens, completion_tokens, total_tokens, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Kind), rec.Model, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.LatencyMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// TotalSince returns total tokens used since a given time.
func (t *SQLiteTracker) TotalSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM usage_records WHERE created_at >= ?`,
		since.UTC(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total usage: %w", err)
	}
	return total, nil
}

// Summary returns usage aggregated by kind and model since a given time.
// A zero since covers all records.
func (t *SQLiteTracker) Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error) {
	query := `SELECT kind, model, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens), AVG(latency_ms)
		 FROM usage_records`
	var args []any
	if !since.IsZero() {
		query += ` WHERE created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` GROUP BY kind, model ORDER BY kind, model`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var (
			s    models.UsageSummary
			kind string
		)
		if err := rows.Scan(&kind, &s.Model, &s.RequestCount, &s.TotalPrompt, &s.TotalCompletion, &s.TotalTokens, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Kind = models.CallKind(kind)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}

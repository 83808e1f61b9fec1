// Package rag answers questions by retrieving similar chunks from a vector
// index and generating a reply conditioned on them.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/pario-ai/ragcache/pkg/models"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, models.UsageRecord, error)
}

// Generator completes a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, models.UsageRecord, error)
}

// Retriever finds the chunks nearest to a vector.
type Retriever interface {
	Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
}

// UsageRecorder persists token usage of billed calls.
type UsageRecorder interface {
	Record(ctx context.Context, rec models.UsageRecord) error
}

// BudgetChecker refuses upstream calls once a spending limit is reached.
type BudgetChecker interface {
	Check(ctx context.Context) error
}

// ErrNoContext is returned when retrieval finds nothing to ground an answer on.
var ErrNoContext = errors.New("no context retrieved")

// Pipeline is the retrieval + generation chain. It holds no cache state.
type Pipeline struct {
	embedder  Embedder
	retriever Retriever
	generator Generator
	prompt    *Prompt
	topK      int
	limiter   *rate.Limiter
	usage     UsageRecorder
	budget    BudgetChecker
	logger    *log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRateLimit caps upstream round trips at r per second with the given burst.
// A non-positive r disables limiting.
func WithRateLimit(r float64, burst int) Option {
	return func(p *Pipeline) {
		if r <= 0 {
			p.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithUsage records every embedding and chat call.
func WithUsage(u UsageRecorder) Option {
	return func(p *Pipeline) { p.usage = u }
}

// WithBudget checks b before every question reaches the upstream API.
func WithBudget(b BudgetChecker) Option {
	return func(p *Pipeline) { p.budget = b }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline wires the chain together. topK chunks are retrieved per question.
func NewPipeline(e Embedder, r Retriever, g Generator, prompt *Prompt, topK int, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder:  e,
		retriever: r,
		generator: g,
		prompt:    prompt,
		topK:      topK,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer embeds query, retrieves context, and generates an answer.
func (p *Pipeline) Answer(ctx context.Context, query string) (string, error) {
	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			return "", err
		}
	}
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	vector, rec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	p.record(ctx, rec)

	chunks, err := p.retriever.Search(ctx, vector, p.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", err)
	}
	if len(chunks) == 0 {
		return "", ErrNoContext
	}
	p.logger.Debug("retrieved context", "chunks", len(chunks), "best_score", chunks[0].Score)

	prompt, err := p.prompt.Render(query, chunks)
	if err != nil {
		return "", err
	}

	if err := p.wait(ctx); err != nil {
		return "", err
	}
	answer, rec, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	p.record(ctx, rec)

	return answer, nil
}

func (p *Pipeline) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, rec models.UsageRecord) {
	if p.usage == nil || rec.Kind == "" {
		return
	}
	if err := p.usage.Record(context.WithoutCancel(ctx), rec); err != nil {
		p.logger.Warn("usage record failed", "kind", rec.Kind, "err", err)
	}
}

package rag

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/ragcache/pkg/models"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, models.UsageRecord, error) {
	if f.err != nil {
		return nil, models.UsageRecord{}, f.err
	}
	return []float32{float32(len(text)), 1}, models.UsageRecord{Kind: models.CallEmbedding, Model: "embed", TotalTokens: 3}, nil
}

type fakeRetriever struct {
	chunks []models.ScoredChunk
	gotK   int
}

func (f *fakeRetriever) Search(_ context.Context, _ []float32, k int) ([]models.ScoredChunk, error) {
	f.gotK = k
	return f.chunks, nil
}

type fakeGenerator struct {
	prompt string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, models.UsageRecord, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", models.UsageRecord{}, f.err
	}
	return "generated", models.UsageRecord{Kind: models.CallChat, Model: "chat", TotalTokens: 42}, nil
}

type memRecorder struct {
	mu   sync.Mutex
	recs []models.UsageRecord
}

func (m *memRecorder) Record(_ context.Context, rec models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func chunks(contents ...string) []models.ScoredChunk {
	out := make([]models.ScoredChunk, len(contents))
	for i, c := range contents {
		out[i] = models.ScoredChunk{Chunk: models.Chunk{Content: c}, Score: 1 - float64(i)/10}
	}
	return out
}

func newTestPipeline(t *testing.T, e Embedder, r Retriever, g Generator, opts ...Option) *Pipeline {
	t.Helper()
	prompt, err := NewPrompt(DefaultTemplate)
	require.NoError(t, err)
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	return NewPipeline(e, r, g, prompt, 5, opts...)
}

func TestPipelineAnswer(t *testing.T) {
	r := &fakeRetriever{chunks: chunks("Hybrid systems combine filters.", "Content-based uses item features.")}
	g := &fakeGenerator{}
	rec := &memRecorder{}
	p := newTestPipeline(t, &fakeEmbedder{}, r, g, WithUsage(rec))

	got, err := p.Answer(context.Background(), "What is a hybrid recommender?")
	require.NoError(t, err)
	assert.Equal(t, "generated", got)
	assert.Equal(t, 5, r.gotK)

	assert.Contains(t, g.prompt, "Hybrid systems combine filters.")
	assert.Contains(t, g.prompt, "Content-based uses item features.")
	assert.Contains(t, g.prompt, "Question: What is a hybrid recommender?")

	require.Len(t, rec.recs, 2)
	assert.Equal(t, models.CallEmbedding, rec.recs[0].Kind)
	assert.Equal(t, models.CallChat, rec.recs[1].Kind)
}

func TestPipelineNoContext(t *testing.T) {
	g := &fakeGenerator{}
	p := newTestPipeline(t, &fakeEmbedder{}, &fakeRetriever{}, g)

	_, err := p.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoContext)
	assert.Empty(t, g.prompt, "generator must not run without context")
}

func TestPipelineErrors(t *testing.T) {
	boom := errors.New("boom")

	p := newTestPipeline(t, &fakeEmbedder{err: boom}, &fakeRetriever{chunks: chunks("x")}, &fakeGenerator{})
	_, err := p.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, boom)

	p = newTestPipeline(t, &fakeEmbedder{}, &fakeRetriever{chunks: chunks("x")}, &fakeGenerator{err: boom})
	_, err = p.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}

func TestPipelineRateLimit(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, &fakeRetriever{chunks: chunks("x")}, &fakeGenerator{},
		WithRateLimit(0.001, 1))

	// The burst covers the embedding call; the chat call must wait far longer
	// than the context allows.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Answer(ctx, "q")
	assert.Error(t, err)
}

func TestRateLimitDisabled(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{}, &fakeRetriever{chunks: chunks("x")}, &fakeGenerator{},
		WithRateLimit(0, 0))
	assert.Nil(t, p.limiter)
}

type budgetFunc func(ctx context.Context) error

func (f budgetFunc) Check(ctx context.Context) error { return f(ctx) }

func TestPipelineBudget(t *testing.T) {
	exhausted := errors.New("budget exceeded")
	g := &fakeGenerator{}
	rec := &memRecorder{}
	p := newTestPipeline(t, &fakeEmbedder{}, &fakeRetriever{chunks: chunks("x")}, g,
		WithUsage(rec), WithBudget(budgetFunc(func(context.Context) error { return exhausted })))

	_, err := p.Answer(context.Background(), "q")
	assert.ErrorIs(t, err, exhausted)
	assert.Empty(t, g.prompt)
	assert.Empty(t, rec.recs, "no upstream call may be made over budget")
}

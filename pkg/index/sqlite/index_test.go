package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/ragcache/pkg/models"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	require.NoError(t, ix.Add(ctx, []models.Chunk{
		{Source: "a.md", Content: "content filtering", Embedding: []float32{1, 0, 0}},
		{Source: "b.md", Content: "collaborative filtering", Embedding: []float32{0, 1, 0}},
		{Source: "c.md", Content: "hybrid", Embedding: []float32{0.7, 0.7, 0}},
	}))

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err := ix.Search(ctx, []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "content filtering", got[0].Content)
	assert.Equal(t, "hybrid", got[1].Content)
	assert.Equal(t, "a.md", got[0].Source)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestSearchEmpty(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	got, err := ix.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ix.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAddRejectsMissingEmbedding(t *testing.T) {
	ix := newTestIndex(t)
	err := ix.Add(context.Background(), []models.Chunk{{Content: "x"}})
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 2}))
}

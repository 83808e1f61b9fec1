package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/ragcache/pkg/config"
)

func TestOpenSQLite(t *testing.T) {
	ix, err := Open(context.Background(), config.IndexConfig{
		Backend: "sqlite",
		Path:    filepath.Join(t.TempDir(), "index.db"),
	})
	require.NoError(t, err)
	defer ix.Close()

	n, err := ix.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.IndexConfig{Backend: "faiss"})
	assert.Error(t, err)
}

package factory

import (
	"context"
	"testing"

	"github.com/pagecraft/core/internal/config"
	"github.com/pagecraft/core/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUnsupportedBackend(t *testing.T) {
	p := New(config.StorageConfig{Backend: "cassandra"}, zap.NewNop())
	_, err := p.Get(context.Background())
	require.ErrorIs(t, err, storage.ErrUnsupportedBackend)
}

func TestPostgresRequiresURL(t *testing.T) {
	p := New(config.StorageConfig{Backend: config.BackendPostgres}, zap.NewNop())
	_, err := p.Get(context.Background())
	require.ErrorIs(t, err, storage.ErrMissingConnectionInfo)
}

func TestGetCachesAdapter(t *testing.T) {
	ctx := context.Background()
	p := New(config.StorageConfig{
		Backend: config.BackendJSONFile,
		DataDir: t.TempDir(),
	}, zap.NewNop())
	t.Cleanup(func() { p.Reset() })

	first, err := p.Get(ctx)
	require.NoError(t, err)
	second, err := p.Get(ctx)
	require.NoError(t, err)
	require.Same(t, first, second)

	// State written through one handle is visible through the other.
	created, err := first.CreatePage(ctx, storage.CreatePageInput{Slug: "cached", Title: "Cached"})
	require.NoError(t, err)
	got, err := second.Page(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "cached", got.Slug)
}

func TestResetBuildsFreshAdapter(t *testing.T) {
	ctx := context.Background()
	p := New(config.StorageConfig{
		Backend: config.BackendJSONFile,
		DataDir: t.TempDir(),
	}, zap.NewNop())
	t.Cleanup(func() { p.Reset() })

	first, err := p.Get(ctx)
	require.NoError(t, err)
	_, err = first.CreatePage(ctx, storage.CreatePageInput{Slug: "kept", Title: "Kept"})
	require.NoError(t, err)

	require.NoError(t, p.Reset())
	require.NoError(t, p.Reset(), "reset of an empty provider is a no-op")

	second, err := p.Get(ctx)
	require.NoError(t, err)
	require.NotSame(t, first, second)

	// The fresh adapter re-reads the same durable state.
	got, err := second.PageBySlug(ctx, "kept")
	require.NoError(t, err)
	require.Equal(t, "kept", got.Slug)
}

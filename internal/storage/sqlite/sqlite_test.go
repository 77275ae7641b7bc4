package sqlite

import (
	"context"
	"testing"

	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/storage"
	"github.com/pagecraft/core/internal/storage/jsonfile"
	"github.com/pagecraft/core/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openAdapter(t *testing.T) storage.Adapter {
	t.Helper()
	a := New(":memory:", zap.NewNop())
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAdapterConformance(t *testing.T) {
	storagetest.Run(t, openAdapter)
}

// Same scripted sequence must leave sqlite and the jsonfile backend in the
// same observable state.
func TestEquivalenceWithJSONFile(t *testing.T) {
	storagetest.Equivalence(t, openAdapter, func(t *testing.T) storage.Adapter {
		b := jsonfile.New(t.TempDir(), zap.NewNop())
		require.NoError(t, b.Initialize(context.Background()))
		t.Cleanup(func() { b.Close() })
		return b
	})
}

// Cascades are enforced at the schema level, so rows vanish even when the
// adapter code path is bypassed.
func TestForeignKeyCascade(t *testing.T) {
	ctx := context.Background()
	a := New(":memory:", zap.NewNop())
	require.NoError(t, a.Initialize(ctx))
	defer a.Close()

	p, err := a.CreatePage(ctx, storage.CreatePageInput{Slug: "fk", Title: "FK"})
	require.NoError(t, err)
	s, err := a.CreateSection(ctx, storage.CreateSectionInput{PageID: p.ID, Title: "s"})
	require.NoError(t, err)
	_, err = a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID: p.ID, SectionID: s.ID,
		Type: models.BlockText,
		Data: models.TextData{Content: "x"},
	})
	require.NoError(t, err)

	_, err = a.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, p.ID)
	require.NoError(t, err)

	var sections, blocks int
	require.NoError(t, a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections`).Scan(&sections))
	require.NoError(t, a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&blocks))
	require.Zero(t, sections)
	require.Zero(t, blocks)
}

func TestPersistsToFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a := NewInDir(dir, zap.NewNop())
	require.NoError(t, a.Initialize(ctx))
	p, err := a.CreatePage(ctx, storage.CreatePageInput{Slug: "disk", Title: "Disk"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b := NewInDir(dir, zap.NewNop())
	require.NoError(t, b.Initialize(ctx))
	defer b.Close()
	got, err := b.Page(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "disk", got.Slug)
}

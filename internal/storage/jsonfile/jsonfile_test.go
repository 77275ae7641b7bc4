package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/storage"
	"github.com/pagecraft/core/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openAdapter(t *testing.T) storage.Adapter {
	t.Helper()
	a := New(t.TempDir(), zap.NewNop())
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAdapterConformance(t *testing.T) {
	storagetest.Run(t, openAdapter)
}

func TestReloadFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a := New(dir, zap.NewNop())
	require.NoError(t, a.Initialize(ctx))

	p, err := a.CreatePage(ctx, storage.CreatePageInput{Slug: "kept", Title: "Kept"})
	require.NoError(t, err)
	s, err := a.CreateSection(ctx, storage.CreateSectionInput{PageID: p.ID, Title: "intro"})
	require.NoError(t, err)
	_, err = a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID: p.ID, SectionID: s.ID,
		Type: models.BlockText,
		Data: models.TextData{Content: "survives restarts"},
	})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// A second adapter over the same directory sees the full tree.
	b := New(dir, zap.NewNop())
	require.NoError(t, b.Initialize(ctx))
	got, err := b.Page(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.Version)
	require.Len(t, got.Sections, 1)
	data := got.Sections[0].Blocks[0].Data.(models.TextData)
	require.Equal(t, "survives restarts", data.Content)
}

func TestReadsSortByOrderNotInsertion(t *testing.T) {
	ctx := context.Background()
	a := openAdapter(t)

	p, err := a.CreatePage(ctx, storage.CreatePageInput{Slug: "sorted", Title: "Sorted"})
	require.NoError(t, err)

	// Insert sections with explicit orders that disagree with insertion order.
	orders := []int{2, 0, 1}
	ids := make([]string, len(orders))
	for i, o := range orders {
		order := o
		s, err := a.CreateSection(ctx, storage.CreateSectionInput{
			PageID: p.ID, Title: "s", Order: &order,
		})
		require.NoError(t, err)
		ids[i] = s.ID
	}

	got, err := a.Page(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 3)
	for i, want := range []string{ids[1], ids[2], ids[0]} {
		require.Equal(t, want, got.Sections[i].ID)
	}

	// Reordering via updates changes what reads return, not just the field.
	for i, id := range []string{ids[0], ids[1], ids[2]} {
		order := i
		require.NoError(t, a.UpdateSection(ctx, p.ID, id, storage.SectionPatch{Order: &order}))
	}
	got, err = a.Page(ctx, p.ID)
	require.NoError(t, err)
	for i, want := range ids {
		require.Equal(t, want, got.Sections[i].ID)
		require.Equal(t, i, got.Sections[i].Order)
	}

	// Blocks sort the same way.
	orderOne := 1
	last, err := a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID: p.ID, SectionID: ids[0],
		Type: models.BlockText, Order: &orderOne,
		Data: models.TextData{Content: "second"},
	})
	require.NoError(t, err)
	orderZero := 0
	lead, err := a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID: p.ID, SectionID: ids[0],
		Type: models.BlockText, Order: &orderZero,
		Data: models.TextData{Content: "first"},
	})
	require.NoError(t, err)

	got, err = a.Page(ctx, p.ID)
	require.NoError(t, err)
	blocks := got.Section(ids[0]).Blocks
	require.Len(t, blocks, 2)
	require.Equal(t, lead.ID, blocks[0].ID)
	require.Equal(t, last.ID, blocks[1].ID)
}

func TestFailedWriteRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a := New(dir, zap.NewNop())
	require.NoError(t, a.Initialize(ctx))
	p, err := a.CreatePage(ctx, storage.CreatePageInput{Slug: "stable", Title: "Stable"})
	require.NoError(t, err)

	// With the data directory gone every write fails at the temp file.
	require.NoError(t, os.RemoveAll(dir))

	title := "mutated"
	require.Error(t, a.UpdatePage(ctx, p.ID, storage.PagePatch{Title: &title}))
	_, err = a.CreateSection(ctx, storage.CreateSectionInput{PageID: p.ID, Title: "lost"})
	require.Error(t, err)
	require.Error(t, a.DeletePage(ctx, p.ID))

	// The in-memory tree still matches the last successful write.
	got, err := a.Page(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Stable", got.Title)
	require.Equal(t, 1, got.Version)
	require.Empty(t, got.Sections)
}

func TestDocumentShape(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a := New(dir, zap.NewNop())
	require.NoError(t, a.Initialize(ctx))
	p, err := a.CreatePage(ctx, storage.CreatePageInput{Slug: "shape", Title: "Shape"})
	require.NoError(t, err)
	s, err := a.CreateSection(ctx, storage.CreateSectionInput{PageID: p.ID, Title: "intro"})
	require.NoError(t, err)
	_, err = a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID: p.ID, SectionID: s.ID,
		Type: models.BlockHeading,
		Data: models.HeadingData{Level: 2, Content: "Hi"},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Contains(t, doc, "pages")
	require.Contains(t, doc, "lastUpdated")

	// Block variant fields are flattened beside id/type/order on disk.
	var pages []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["pages"], &pages))
	require.Len(t, pages, 1)
	var sections []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(pages[0]["sections"], &sections))
	var blocks []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(sections[0]["blocks"], &blocks))
	require.Len(t, blocks, 1)
	require.Contains(t, blocks[0], "type")
	require.Contains(t, blocks[0], "order")
	require.Contains(t, blocks[0], "level")
	require.Contains(t, blocks[0], "content")
	require.NotContains(t, blocks[0], "data")
}

// Package storagetest runs one shared conformance suite against every
// storage backend, so all adapters stay observably equivalent.
package storagetest

import (
	"context"
	"testing"

	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/storage"
	"github.com/stretchr/testify/require"
)

// Factory builds a fresh, initialized adapter for one test. Cleanup is the
// caller's job (t.Cleanup inside the factory).
type Factory func(t *testing.T) storage.Adapter

// Run executes the conformance suite against the adapter the factory builds.
func Run(t *testing.T, open Factory) {
	t.Run("PageRoundTrip", func(t *testing.T) { testPageRoundTrip(t, open(t)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testListNewestFirst(t, open(t)) })
	t.Run("SlugConflict", func(t *testing.T) { testSlugConflict(t, open(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, open(t)) })
	t.Run("VersionCounting", func(t *testing.T) { testVersionCounting(t, open(t)) })
	t.Run("CascadeDelete", func(t *testing.T) { testCascadeDelete(t, open(t)) })
	t.Run("OrderAssignmentAndReorder", func(t *testing.T) { testOrderAssignment(t, open(t)) })
	t.Run("PartialBlockUpdate", func(t *testing.T) { testPartialBlockUpdate(t, open(t)) })
	t.Run("InitializeIdempotent", func(t *testing.T) { testInitializeIdempotent(t, open(t)) })
}

func mustCreatePage(t *testing.T, a storage.Adapter, slug string) *models.Page {
	t.Helper()
	p, err := a.CreatePage(context.Background(), storage.CreatePageInput{
		Slug:  slug,
		Title: "Page " + slug,
	})
	require.NoError(t, err)
	return p
}

func mustCreateSection(t *testing.T, a storage.Adapter, pageID, title string) *models.Section {
	t.Helper()
	s, err := a.CreateSection(context.Background(), storage.CreateSectionInput{
		PageID: pageID,
		Title:  title,
	})
	require.NoError(t, err)
	return s
}

func testPageRoundTrip(t *testing.T, a storage.Adapter) {
	ctx := context.Background()

	created, err := a.CreatePage(ctx, storage.CreatePageInput{
		Slug:        "about",
		Title:       "About",
		Description: "Who we are",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, 1, created.Version)
	require.False(t, created.Published)
	require.Empty(t, created.Sections)

	byID, err := a.Page(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, byID.ID)
	require.Equal(t, "about", byID.Slug)
	require.Equal(t, "About", byID.Title)
	require.Equal(t, "Who we are", byID.Description)

	bySlug, err := a.PageBySlug(ctx, "about")
	require.NoError(t, err)
	require.Equal(t, created.ID, bySlug.ID)

	published := true
	title := "About Us"
	require.NoError(t, a.UpdatePage(ctx, created.ID, storage.PagePatch{
		Title:     &title,
		Published: &published,
	}))

	updated, err := a.Page(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "About Us", updated.Title)
	require.True(t, updated.Published)
	require.Equal(t, 2, updated.Version)
	require.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
}

func testListNewestFirst(t *testing.T, a storage.Adapter) {
	ctx := context.Background()

	first := mustCreatePage(t, a, "first")
	second := mustCreatePage(t, a, "second")
	third := mustCreatePage(t, a, "third")

	pages, err := a.Pages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	require.Equal(t, third.ID, pages[0].ID)
	require.Equal(t, second.ID, pages[1].ID)
	require.Equal(t, first.ID, pages[2].ID)
}

func testSlugConflict(t *testing.T, a storage.Adapter) {
	ctx := context.Background()

	keeper := mustCreatePage(t, a, "home")
	other := mustCreatePage(t, a, "news")

	_, err := a.CreatePage(ctx, storage.CreatePageInput{Slug: "home", Title: "Another"})
	require.ErrorIs(t, err, storage.ErrSlugConflict)

	// The conflicting create must not leave a second row behind.
	pages, err := a.Pages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	// Renaming onto a taken slug conflicts too.
	slug := "home"
	err = a.UpdatePage(ctx, other.ID, storage.PagePatch{Slug: &slug})
	require.ErrorIs(t, err, storage.ErrSlugConflict)

	kept, err := a.PageBySlug(ctx, "home")
	require.NoError(t, err)
	require.Equal(t, keeper.ID, kept.ID)
}

func testNotFound(t *testing.T, a storage.Adapter) {
	ctx := context.Background()

	_, err := a.Page(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = a.PageBySlug(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	title := "x"
	require.ErrorIs(t, a.UpdatePage(ctx, "missing", storage.PagePatch{Title: &title}), storage.ErrNotFound)
	require.ErrorIs(t, a.DeletePage(ctx, "missing"), storage.ErrNotFound)

	_, err = a.CreateSection(ctx, storage.CreateSectionInput{PageID: "missing", Title: "s"})
	require.ErrorIs(t, err, storage.ErrNotFound)

	p := mustCreatePage(t, a, "real")
	_, err = a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID:    p.ID,
		SectionID: "missing",
		Type:      models.BlockText,
		Data:      models.TextData{Content: "hi"},
	})
	require.ErrorIs(t, err, storage.ErrNotFound)

	s := mustCreateSection(t, a, p.ID, "intro")
	require.ErrorIs(t, a.DeleteBlock(ctx, p.ID, s.ID, "missing"), storage.ErrNotFound)
	require.ErrorIs(t, a.UpdateBlock(ctx, p.ID, s.ID, "missing", models.BlockPatch{}), storage.ErrNotFound)
}

func testVersionCounting(t *testing.T, a storage.Adapter) {
	ctx := context.Background()

	p := mustCreatePage(t, a, "versioned")
	require.Equal(t, 1, p.Version)

	s := mustCreateSection(t, a, p.ID, "intro") // 2

	b, err := a.CreateBlock(ctx, storage.CreateBlockInput{ // 3
		PageID:    p.ID,
		SectionID: s.ID,
		Type:      models.BlockText,
		Data:      models.TextData{Content: "hello"},
	})
	require.NoError(t, err)

	content := "hello again"
	require.NoError(t, a.UpdateBlock(ctx, p.ID, s.ID, b.ID, models.BlockPatch{Content: &content})) // 4

	title := "Intro"
	require.NoError(t, a.UpdateSection(ctx, p.ID, s.ID, storage.SectionPatch{Title: &title})) // 5

	require.NoError(t, a.DeleteBlock(ctx, p.ID, s.ID, b.ID)) // 6

	got, err := a.Page(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 6, got.Version, "version must be 1 + number of mutations")
}

func testCascadeDelete(t *testing.T, a storage.Adapter) {
	ctx := context.Background()

	p := mustCreatePage(t, a, "cascade")
	s1 := mustCreateSection(t, a, p.ID, "one")
	s2 := mustCreateSection(t, a, p.ID, "two")

	for _, sid := range []string{s1.ID, s2.ID} {
		_, err := a.CreateBlock(ctx, storage.CreateBlockInput{
			PageID:    p.ID,
			SectionID: sid,
			Type:      models.BlockQuote,
			Data:      models.QuoteData{Content: "q", Author: "a"},
		})
		require.NoError(t, err)
	}

	// Section delete takes its blocks with it.
	require.NoError(t, a.DeleteSection(ctx, p.ID, s1.ID))
	got, err := a.Page(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 1)
	require.Equal(t, s2.ID, got.Sections[0].ID)
	require.Len(t, got.Sections[0].Blocks, 1)

	// Page delete removes the whole subtree; nothing is retrievable after.
	require.NoError(t, a.DeletePage(ctx, p.ID))
	_, err = a.Page(ctx, p.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = a.PageBySlug(ctx, "cascade")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testOrderAssignment(t *testing.T, a storage.Adapter) {
	ctx := context.Background()

	p := mustCreatePage(t, a, "ordered")
	sa := mustCreateSection(t, a, p.ID, "a")
	sb := mustCreateSection(t, a, p.ID, "b")
	sc := mustCreateSection(t, a, p.ID, "c")

	got, err := a.Page(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 3)
	for i, want := range []string{sa.ID, sb.ID, sc.ID} {
		require.Equal(t, want, got.Sections[i].ID)
		require.Equal(t, i, got.Sections[i].Order)
	}

	// Reorder to [c, a, b]: each section's order becomes its list index.
	for i, id := range []string{sc.ID, sa.ID, sb.ID} {
		order := i
		require.NoError(t, a.UpdateSection(ctx, p.ID, id, storage.SectionPatch{Order: &order}))
	}

	got, err = a.Page(ctx, p.ID)
	require.NoError(t, err)
	for i, want := range []string{sc.ID, sa.ID, sb.ID} {
		require.Equal(t, want, got.Sections[i].ID)
		require.Equal(t, i, got.Sections[i].Order)
	}

	// Blocks get the same dense default ordering.
	for _, content := range []string{"one", "two", "three"} {
		_, err := a.CreateBlock(ctx, storage.CreateBlockInput{
			PageID:    p.ID,
			SectionID: sa.ID,
			Type:      models.BlockText,
			Data:      models.TextData{Content: content},
		})
		require.NoError(t, err)
	}
	got, err = a.Page(ctx, p.ID)
	require.NoError(t, err)
	blocks := got.Section(sa.ID).Blocks
	require.Len(t, blocks, 3)
	for i := range blocks {
		require.Equal(t, i, blocks[i].Order)
	}
}

func testPartialBlockUpdate(t *testing.T, a storage.Adapter) {
	ctx := context.Background()

	p := mustCreatePage(t, a, "gallery")
	s := mustCreateSection(t, a, p.ID, "photos")

	b, err := a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID:    p.ID,
		SectionID: s.ID,
		Type:      models.BlockImage,
		Data: models.ImageData{
			URL: "https://img.example/cat.png",
			URLs: map[string]string{
				"original":  "https://img.example/cat.png",
				"thumbnail": "https://img.example/cat-t.png",
			},
			Alt:        "a cat",
			Caption:    "Cat",
			Dimensions: &models.Dimensions{Width: 800, Height: 600},
		},
	})
	require.NoError(t, err)

	// Patch only the caption; every other field must survive.
	caption := "A very good cat"
	require.NoError(t, a.UpdateBlock(ctx, p.ID, s.ID, b.ID, models.BlockPatch{Caption: &caption}))

	got, err := a.Page(ctx, p.ID)
	require.NoError(t, err)
	data, ok := got.Section(s.ID).Block(b.ID).Data.(models.ImageData)
	require.True(t, ok, "image block keeps its variant")
	require.Equal(t, "A very good cat", data.Caption)
	require.Equal(t, "https://img.example/cat.png", data.URL)
	require.Equal(t, "a cat", data.Alt)
	require.Equal(t, "https://img.example/cat-t.png", data.URLs["thumbnail"])
	require.NotNil(t, data.Dimensions)
	require.Equal(t, 800, data.Dimensions.Width)

	// Invalid patches are rejected without touching the stored block.
	hb, err := a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID:    p.ID,
		SectionID: s.ID,
		Type:      models.BlockHeading,
		Data:      models.HeadingData{Level: 2, Content: "Photos"},
	})
	require.NoError(t, err)

	bad := 9
	require.Error(t, a.UpdateBlock(ctx, p.ID, s.ID, hb.ID, models.BlockPatch{Level: &bad}))
	got, err = a.Page(ctx, p.ID)
	require.NoError(t, err)
	heading := got.Section(s.ID).Block(hb.ID).Data.(models.HeadingData)
	require.Equal(t, 2, heading.Level)
}

func testInitializeIdempotent(t *testing.T, a storage.Adapter) {
	ctx := context.Background()

	mustCreatePage(t, a, "persistent")
	require.NoError(t, a.Initialize(ctx))

	pages, err := a.Pages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "persistent", pages[0].Slug)
}

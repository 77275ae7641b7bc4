package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/storage"
	"github.com/stretchr/testify/require"
)

// Equivalence runs the same scripted call sequence against two backends and
// requires their final observable state to match. IDs and timestamps are
// backend-generated, so snapshots are normalized before comparison.
func Equivalence(t *testing.T, openA, openB Factory) {
	snapA := runScript(t, openA(t))
	snapB := runScript(t, openB(t))
	require.Equal(t, snapA, snapB)
}

// runScript exercises every operation class once: creates, patches,
// reorders, a blob-merge block update, and both cascade deletes.
func runScript(t *testing.T, a storage.Adapter) []models.Page {
	t.Helper()
	ctx := context.Background()

	home := mustCreatePage(t, a, "home")
	doomed := mustCreatePage(t, a, "doomed")

	intro := mustCreateSection(t, a, home.ID, "intro")
	body := mustCreateSection(t, a, home.ID, "body")

	_, err := a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID: home.ID, SectionID: intro.ID,
		Type: models.BlockHeading,
		Data: models.HeadingData{Level: 1, Content: "Welcome"},
	})
	require.NoError(t, err)

	text, err := a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID: home.ID, SectionID: intro.ID,
		Type: models.BlockText,
		Data: models.TextData{Content: "draft"},
	})
	require.NoError(t, err)

	_, err = a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID: home.ID, SectionID: body.ID,
		Type: models.BlockList,
		Data: models.ListData{Items: []string{"a", "b"}, Ordered: true},
	})
	require.NoError(t, err)

	content := "final"
	require.NoError(t, a.UpdateBlock(ctx, home.ID, intro.ID, text.ID, models.BlockPatch{Content: &content}))

	// Swap the two sections.
	for i, id := range []string{body.ID, intro.ID} {
		order := i
		require.NoError(t, a.UpdateSection(ctx, home.ID, id, storage.SectionPatch{Order: &order}))
	}

	published := true
	require.NoError(t, a.UpdatePage(ctx, home.ID, storage.PagePatch{Published: &published}))

	ds := mustCreateSection(t, a, doomed.ID, "gone")
	_, err = a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID: doomed.ID, SectionID: ds.ID,
		Type: models.BlockVideo,
		Data: models.VideoData{URL: "https://v.example/clip"},
	})
	require.NoError(t, err)
	require.NoError(t, a.DeletePage(ctx, doomed.ID))

	pages, err := a.Pages(ctx)
	require.NoError(t, err)
	return normalize(pages)
}

// normalize replaces backend-generated IDs with positional labels and zeroes
// timestamps, keeping everything the contract actually promises.
func normalize(pages []models.Page) []models.Page {
	out := make([]models.Page, len(pages))
	for i, p := range pages {
		np := *p.Clone()
		np.ID = fmt.Sprintf("page-%d", i)
		np.CreatedAt = time.Time{}
		np.UpdatedAt = time.Time{}
		for j := range np.Sections {
			s := &np.Sections[j]
			s.ID = fmt.Sprintf("page-%d-section-%d", i, j)
			s.CreatedAt = time.Time{}
			s.UpdatedAt = time.Time{}
			for k := range s.Blocks {
				s.Blocks[k].ID = fmt.Sprintf("%s-block-%d", s.ID, k)
			}
		}
		out[i] = np
	}
	return out
}

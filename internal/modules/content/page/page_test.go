package page

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pagecraft/core/internal/config"
	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/storage/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider := factory.New(config.StorageConfig{
		Backend: config.BackendJSONFile,
		DataDir: t.TempDir(),
	}, zap.NewNop())
	t.Cleanup(func() { provider.Reset() })

	r := gin.New()
	api := r.Group("/api/v1")
	NewHandler(NewService(provider, zap.NewNop())).RegisterRoutes(api)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createPage(t *testing.T, r *gin.Engine, slug string) models.Page {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v1/pages", gin.H{"slug": slug, "title": "Page " + slug})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Page](t, w)
}

func createSection(t *testing.T, r *gin.Engine, pageID, title string) models.Section {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v1/pages/"+pageID+"/sections", gin.H{"title": title})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Section](t, w)
}

func TestPageLifecycle(t *testing.T) {
	r := newRouter(t)

	created := createPage(t, r, "about")
	assert.Equal(t, 1, created.Version)

	w := do(t, r, http.MethodGet, "/api/v1/pages/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/pages/slug/about", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPatch, "/api/v1/pages/"+created.ID, gin.H{"title": "About Us", "published": true})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.Page](t, w)
	assert.Equal(t, "About Us", updated.Title)
	assert.True(t, updated.Published)
	assert.Equal(t, 2, updated.Version)

	w = do(t, r, http.MethodDelete, "/api/v1/pages/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/pages/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePageValidation(t *testing.T) {
	r := newRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/pages", gin.H{"title": "no slug"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/pages", gin.H{"slug": "bad slug", "title": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSlugConflictMapsTo409(t *testing.T) {
	r := newRouter(t)
	createPage(t, r, "home")

	w := do(t, r, http.MethodPost, "/api/v1/pages", gin.H{"slug": "home", "title": "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSectionReorder(t *testing.T) {
	r := newRouter(t)
	p := createPage(t, r, "reorder")
	a := createSection(t, r, p.ID, "a")
	b := createSection(t, r, p.ID, "b")
	c := createSection(t, r, p.ID, "c")

	w := do(t, r, http.MethodPatch, "/api/v1/pages/"+p.ID+"/sections/reorder",
		gin.H{"ids": []string{c.ID, a.ID, b.ID}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/v1/pages/"+p.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Page](t, w)
	require.Len(t, got.Sections, 3)
	for i, want := range []string{c.ID, a.ID, b.ID} {
		assert.Equal(t, want, got.Sections[i].ID)
		assert.Equal(t, i, got.Sections[i].Order)
	}
}

func TestBlockCreateAndPartialUpdate(t *testing.T) {
	r := newRouter(t)
	p := createPage(t, r, "blocks")
	s := createSection(t, r, p.ID, "content")

	base := "/api/v1/pages/" + p.ID + "/sections/" + s.ID + "/blocks"
	w := do(t, r, http.MethodPost, base, gin.H{
		"type":    "image",
		"url":     "https://img/x.png",
		"alt":     "an image",
		"caption": "before",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	block := decode[models.Block](t, w)
	assert.Equal(t, models.BlockImage, block.Type)
	assert.Equal(t, 0, block.Order)

	// Patch one field; the rest must survive.
	w = do(t, r, http.MethodPatch, base+"/"+block.ID, gin.H{"caption": "after"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/v1/pages/"+p.ID, nil)
	got := decode[models.Page](t, w)
	data := got.Sections[0].Blocks[0].Data.(models.ImageData)
	assert.Equal(t, "after", data.Caption)
	assert.Equal(t, "https://img/x.png", data.URL)
	assert.Equal(t, "an image", data.Alt)

	w = do(t, r, http.MethodDelete, base+"/"+block.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateBlockRejectsUnknownType(t *testing.T) {
	r := newRouter(t)
	p := createPage(t, r, "badblock")
	s := createSection(t, r, p.ID, "content")

	w := do(t, r, http.MethodPost, "/api/v1/pages/"+p.ID+"/sections/"+s.ID+"/blocks",
		gin.H{"type": "carousel"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchAllSucceed(t *testing.T) {
	r := newRouter(t)
	p := createPage(t, r, "batch-ok")
	s := createSection(t, r, p.ID, "content")

	w := do(t, r, http.MethodPost, "/api/v1/pages/"+p.ID+"/blocks/batch", gin.H{
		"creates": []gin.H{
			{"sectionId": s.ID, "block": gin.H{"type": "text", "content": "one"}},
			{"sectionId": s.ID, "block": gin.H{"type": "quote", "content": "two"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[BatchResult](t, w)
	assert.Equal(t, 2, result.Succeeded)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Creates, 2)
	for _, op := range result.Creates {
		assert.True(t, op.OK)
		assert.NotEmpty(t, op.ID)
	}
}

func TestBatchPartialFailure(t *testing.T) {
	r := newRouter(t)
	p := createPage(t, r, "batch-partial")
	s := createSection(t, r, p.ID, "content")

	// Two valid creates plus a delete of a block that does not exist.
	w := do(t, r, http.MethodPost, "/api/v1/pages/"+p.ID+"/blocks/batch", gin.H{
		"deletes": []gin.H{
			{"sectionId": s.ID, "blockId": "nonexistent"},
		},
		"creates": []gin.H{
			{"sectionId": s.ID, "block": gin.H{"type": "text", "content": "kept one"}},
			{"sectionId": s.ID, "block": gin.H{"type": "heading", "level": 2, "content": "kept two"}},
		},
	})
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
	result := decode[BatchResult](t, w)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Deletes, 1)
	assert.False(t, result.Deletes[0].OK)
	assert.NotEmpty(t, result.Deletes[0].Error)

	// The successful creates are durably visible.
	w = do(t, r, http.MethodGet, "/api/v1/pages/"+p.ID, nil)
	got := decode[models.Page](t, w)
	require.Len(t, got.Sections, 1)
	assert.Len(t, got.Sections[0].Blocks, 2)
}

func TestBatchProcessesDeletesBeforeCreates(t *testing.T) {
	r := newRouter(t)
	p := createPage(t, r, "batch-order")
	s := createSection(t, r, p.ID, "old")

	// Deleting the old section first frees the page for the new one: the
	// created section lands at order 0, not 1.
	w := do(t, r, http.MethodPost, "/api/v1/pages/"+p.ID+"/blocks/batch", gin.H{
		"deletes": []gin.H{{"sectionId": s.ID}},
		"creates": []gin.H{{"section": gin.H{"title": "new"}}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/v1/pages/"+p.ID, nil)
	got := decode[models.Page](t, w)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, "new", got.Sections[0].Title)
	assert.Equal(t, 0, got.Sections[0].Order)
}

package reader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pagecraft/core/internal/config"
	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/storage"
	"github.com/pagecraft/core/internal/storage/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(t *testing.T) (*gin.Engine, *factory.Provider) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider := factory.New(config.StorageConfig{
		Backend: config.BackendJSONFile,
		DataDir: t.TempDir(),
	}, zap.NewNop())
	t.Cleanup(func() { provider.Reset() })

	r := gin.New()
	NewHandler(provider).RegisterRoutes(r.Group(""))
	return r, provider
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReadPublishedPage(t *testing.T) {
	r, provider := newRouter(t)
	ctx := context.Background()

	a, err := provider.Get(ctx)
	require.NoError(t, err)
	p, err := a.CreatePage(ctx, storage.CreatePageInput{Slug: "launch", Title: "Launch"})
	require.NoError(t, err)
	published := true
	require.NoError(t, a.UpdatePage(ctx, p.ID, storage.PagePatch{Published: &published}))

	w := get(r, "/read/launch")
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "launch", got.Slug)
	assert.True(t, got.Published)
}

func TestReadUnpublishedPageIs404(t *testing.T) {
	r, provider := newRouter(t)
	ctx := context.Background()

	a, err := provider.Get(ctx)
	require.NoError(t, err)
	_, err = a.CreatePage(ctx, storage.CreatePageInput{Slug: "draft", Title: "Draft"})
	require.NoError(t, err)

	// Drafts are indistinguishable from pages that never existed.
	assert.Equal(t, http.StatusNotFound, get(r, "/read/draft").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/read/never-existed").Code)
}

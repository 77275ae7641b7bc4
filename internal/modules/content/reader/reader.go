// Package reader serves published pages to anonymous visitors.
package reader

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/pagecraft/core/internal/pkg/response"
	"github.com/pagecraft/core/internal/storage"
	"github.com/pagecraft/core/internal/storage/factory"
)

type Handler struct {
	provider *factory.Provider
}

func NewHandler(provider *factory.Provider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/read/:slug", h.read)
}

// Unpublished pages 404 here, indistinguishable from absent ones.
func (h *Handler) read(c *gin.Context) {
	ctx := c.Request.Context()
	adapter, err := h.provider.Get(ctx)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	p, err := adapter.PageBySlug(ctx, c.Param("slug"))
	if errors.Is(err, storage.ErrNotFound) {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !p.Published {
		response.NotFound(c)
		return
	}
	response.OK(c, p)
}

// Package page exposes the admin REST surface for the content tree:
// pages, their sections, their blocks, and the batch mutation endpoint.
package page

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/pkg/response"
	"github.com/pagecraft/core/internal/storage"
	"github.com/pagecraft/core/internal/storage/factory"
	"go.uber.org/zap"
)

type CreatePageDTO struct {
	Slug        string `json:"slug"  binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type UpdatePageDTO struct {
	Slug        *string `json:"slug"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Published   *bool   `json:"published"`
}

type Service struct {
	provider *factory.Provider
	log      *zap.Logger
}

func NewService(provider *factory.Provider, log *zap.Logger) *Service {
	return &Service{provider: provider, log: log}
}

func (s *Service) adapter(ctx context.Context) (storage.Adapter, error) {
	return s.provider.Get(ctx)
}

func (s *Service) List(ctx context.Context) ([]models.Page, error) {
	a, err := s.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.Pages(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Page, error) {
	a, err := s.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.Page(ctx, id)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Page, error) {
	a, err := s.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.PageBySlug(ctx, slug)
}

func (s *Service) Create(ctx context.Context, dto *CreatePageDTO) (*models.Page, error) {
	if err := models.ValidateSlug(dto.Slug); err != nil {
		return nil, err
	}
	a, err := s.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.CreatePage(ctx, storage.CreatePageInput{
		Slug:        dto.Slug,
		Title:       dto.Title,
		Description: dto.Description,
	})
}

func (s *Service) Update(ctx context.Context, id string, dto *UpdatePageDTO) (*models.Page, error) {
	if dto.Slug != nil {
		if err := models.ValidateSlug(*dto.Slug); err != nil {
			return nil, err
		}
	}
	a, err := s.adapter(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.UpdatePage(ctx, id, storage.PagePatch{
		Slug:        dto.Slug,
		Title:       dto.Title,
		Description: dto.Description,
		Published:   dto.Published,
	}); err != nil {
		return nil, err
	}
	return a.Page(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.adapter(ctx)
	if err != nil {
		return err
	}
	return a.DeletePage(ctx, id)
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/pages")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/slug/:slug", h.getBySlug)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)

	g.POST("/:id/sections", h.createSection)
	g.PATCH("/:id/sections/reorder", h.reorderSections)
	g.PATCH("/:id/sections/:sid", h.updateSection)
	g.DELETE("/:id/sections/:sid", h.deleteSection)

	g.POST("/:id/sections/:sid/blocks", h.createBlock)
	g.PATCH("/:id/sections/:sid/blocks/:bid", h.updateBlock)
	g.DELETE("/:id/sections/:sid/blocks/:bid", h.deleteBlock)

	g.POST("/:id/blocks/batch", h.batch)
}

func (h *Handler) list(c *gin.Context) {
	pages, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, pages)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, p)
}

func (h *Handler) getBySlug(c *gin.Context) {
	p, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, p)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, p)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.svc.Update(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, p)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

// writeError maps storage errors onto the HTTP error taxonomy.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, storage.ErrSlugConflict):
		response.Conflict(c, err.Error())
	case isValidationError(err):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

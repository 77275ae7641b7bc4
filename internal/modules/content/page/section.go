package page

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/pkg/response"
	"github.com/pagecraft/core/internal/storage"
)

type CreateSectionDTO struct {
	Title string `json:"title" binding:"required"`
	Order *int   `json:"order"`
}

type UpdateSectionDTO struct {
	Title *string `json:"title"`
	Order *int    `json:"order"`
}

type reorderDTO struct {
	IDs []string `json:"ids" binding:"required"`
}

func isValidationError(err error) bool {
	return errors.Is(err, models.ErrInvalid)
}

func (s *Service) CreateSection(ctx context.Context, pageID string, dto *CreateSectionDTO) (*models.Section, error) {
	a, err := s.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.CreateSection(ctx, storage.CreateSectionInput{
		PageID: pageID,
		Title:  dto.Title,
		Order:  dto.Order,
	})
}

func (s *Service) UpdateSection(ctx context.Context, pageID, sectionID string, dto *UpdateSectionDTO) error {
	a, err := s.adapter(ctx)
	if err != nil {
		return err
	}
	return a.UpdateSection(ctx, pageID, sectionID, storage.SectionPatch{
		Title: dto.Title,
		Order: dto.Order,
	})
}

func (s *Service) DeleteSection(ctx context.Context, pageID, sectionID string) error {
	a, err := s.adapter(ctx)
	if err != nil {
		return err
	}
	return a.DeleteSection(ctx, pageID, sectionID)
}

// ReorderSections rewrites each listed section's order to its index in ids.
func (s *Service) ReorderSections(ctx context.Context, pageID string, ids []string) error {
	a, err := s.adapter(ctx)
	if err != nil {
		return err
	}
	for i, id := range ids {
		order := i
		if err := a.UpdateSection(ctx, pageID, id, storage.SectionPatch{Order: &order}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) createSection(c *gin.Context) {
	var dto CreateSectionDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	section, err := h.svc.CreateSection(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, section)
}

func (h *Handler) updateSection(c *gin.Context) {
	var dto UpdateSectionDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.UpdateSection(c.Request.Context(), c.Param("id"), c.Param("sid"), &dto); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) deleteSection(c *gin.Context) {
	if err := h.svc.DeleteSection(c.Request.Context(), c.Param("id"), c.Param("sid")); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) reorderSections(c *gin.Context) {
	var dto reorderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.ReorderSections(c.Request.Context(), c.Param("id"), dto.IDs); err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

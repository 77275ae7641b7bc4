package page

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/pkg/response"
	"github.com/pagecraft/core/internal/storage"
)

// CreateBlockDTO carries the block head; the variant fields arrive flattened
// beside it and are decoded against the declared type.
type CreateBlockDTO struct {
	Type  models.BlockType `json:"type" binding:"required"`
	Order *int             `json:"order"`

	data models.BlockData
}

// UnmarshalJSON decodes head fields, then re-parses the same payload as the
// declared variant.
func (d *CreateBlockDTO) UnmarshalJSON(raw []byte) error {
	var head struct {
		Type  models.BlockType `json:"type"`
		Order *int             `json:"order"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}
	if !head.Type.Valid() {
		return fmt.Errorf("unknown block type %q: %w", head.Type, models.ErrInvalid)
	}
	data, err := models.ParseBlockData(head.Type, raw)
	if err != nil {
		return err
	}
	d.Type = head.Type
	d.Order = head.Order
	d.data = data
	return nil
}

func (s *Service) CreateBlock(ctx context.Context, pageID, sectionID string, dto *CreateBlockDTO) (*models.Block, error) {
	if err := dto.data.Validate(); err != nil {
		return nil, err
	}
	a, err := s.adapter(ctx)
	if err != nil {
		return nil, err
	}
	return a.CreateBlock(ctx, storage.CreateBlockInput{
		PageID:    pageID,
		SectionID: sectionID,
		Type:      dto.Type,
		Order:     dto.Order,
		Data:      dto.data,
	})
}

func (s *Service) UpdateBlock(ctx context.Context, pageID, sectionID, blockID string, patch models.BlockPatch) error {
	a, err := s.adapter(ctx)
	if err != nil {
		return err
	}
	return a.UpdateBlock(ctx, pageID, sectionID, blockID, patch)
}

func (s *Service) DeleteBlock(ctx context.Context, pageID, sectionID, blockID string) error {
	a, err := s.adapter(ctx)
	if err != nil {
		return err
	}
	return a.DeleteBlock(ctx, pageID, sectionID, blockID)
}

func (h *Handler) createBlock(c *gin.Context) {
	var dto CreateBlockDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	block, err := h.svc.CreateBlock(c.Request.Context(), c.Param("id"), c.Param("sid"), &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, block)
}

func (h *Handler) updateBlock(c *gin.Context) {
	var patch models.BlockPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err := h.svc.UpdateBlock(c.Request.Context(), c.Param("id"), c.Param("sid"), c.Param("bid"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) deleteBlock(c *gin.Context) {
	err := h.svc.DeleteBlock(c.Request.Context(), c.Param("id"), c.Param("sid"), c.Param("bid"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.NoContent(c)
}

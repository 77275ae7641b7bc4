package page

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/pkg/response"
	"go.uber.org/zap"
)

// BatchRequest bundles block/section mutations against one page. Processing
// order is fixed: deletes, then creates, then updates. Each operation is
// attempted independently; failures are recorded, not raised.
type BatchRequest struct {
	Deletes []BatchDeleteOp `json:"deletes"`
	Creates []BatchCreateOp `json:"creates"`
	Updates []BatchUpdateOp `json:"updates"`
}

// BatchDeleteOp removes a block, or the whole section when blockId is empty.
type BatchDeleteOp struct {
	SectionID string `json:"sectionId"`
	BlockID   string `json:"blockId"`
}

// BatchCreateOp creates a section (section set) or a block inside an
// existing section (sectionId + block set).
type BatchCreateOp struct {
	SectionID string            `json:"sectionId"`
	Section   *CreateSectionDTO `json:"section"`
	Block     json.RawMessage   `json:"block"`
}

// BatchUpdateOp patches a section (blockId empty) or a block.
type BatchUpdateOp struct {
	SectionID string             `json:"sectionId"`
	BlockID   string             `json:"blockId"`
	Section   *UpdateSectionDTO  `json:"section"`
	Block     *models.BlockPatch `json:"block"`
}

// BatchOpResult reports the outcome of a single operation.
type BatchOpResult struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// BatchResult itemizes per-operation outcomes plus aggregate counts.
type BatchResult struct {
	Deletes   []BatchOpResult `json:"deletes"`
	Creates   []BatchOpResult `json:"creates"`
	Updates   []BatchOpResult `json:"updates"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

func (r *BatchResult) record(bucket *[]BatchOpResult, id string, err error) {
	if err != nil {
		*bucket = append(*bucket, BatchOpResult{Error: err.Error()})
		r.Failed++
		return
	}
	*bucket = append(*bucket, BatchOpResult{OK: true, ID: id})
	r.Succeeded++
}

// Batch applies the request best-effort and returns the full breakdown.
func (s *Service) Batch(ctx context.Context, pageID string, req *BatchRequest) *BatchResult {
	result := &BatchResult{
		Deletes: []BatchOpResult{},
		Creates: []BatchOpResult{},
		Updates: []BatchOpResult{},
	}

	for _, op := range req.Deletes {
		result.record(&result.Deletes, "", s.batchDelete(ctx, pageID, op))
	}
	for _, op := range req.Creates {
		id, err := s.batchCreate(ctx, pageID, op)
		result.record(&result.Creates, id, err)
	}
	for _, op := range req.Updates {
		result.record(&result.Updates, "", s.batchUpdate(ctx, pageID, op))
	}

	if result.Failed > 0 {
		s.log.Warn("batch applied partially",
			zap.String("page", pageID),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed))
	}
	return result
}

func (s *Service) batchDelete(ctx context.Context, pageID string, op BatchDeleteOp) error {
	if op.SectionID == "" {
		return fmt.Errorf("delete needs a sectionId: %w", models.ErrInvalid)
	}
	if op.BlockID == "" {
		return s.DeleteSection(ctx, pageID, op.SectionID)
	}
	return s.DeleteBlock(ctx, pageID, op.SectionID, op.BlockID)
}

func (s *Service) batchCreate(ctx context.Context, pageID string, op BatchCreateOp) (string, error) {
	switch {
	case op.Section != nil:
		if op.Section.Title == "" {
			return "", fmt.Errorf("section create needs a title: %w", models.ErrInvalid)
		}
		section, err := s.CreateSection(ctx, pageID, op.Section)
		if err != nil {
			return "", err
		}
		return section.ID, nil
	case op.SectionID != "" && len(op.Block) > 0:
		var dto CreateBlockDTO
		if err := json.Unmarshal(op.Block, &dto); err != nil {
			return "", err
		}
		block, err := s.CreateBlock(ctx, pageID, op.SectionID, &dto)
		if err != nil {
			return "", err
		}
		return block.ID, nil
	default:
		return "", fmt.Errorf("create needs either a section body or a sectionId plus block body: %w", models.ErrInvalid)
	}
}

func (s *Service) batchUpdate(ctx context.Context, pageID string, op BatchUpdateOp) error {
	if op.SectionID == "" {
		return fmt.Errorf("update needs a sectionId: %w", models.ErrInvalid)
	}
	if op.BlockID != "" {
		if op.Block == nil {
			return fmt.Errorf("block update needs a block body: %w", models.ErrInvalid)
		}
		return s.UpdateBlock(ctx, pageID, op.SectionID, op.BlockID, *op.Block)
	}
	if op.Section == nil {
		return fmt.Errorf("section update needs a section body: %w", models.ErrInvalid)
	}
	return s.UpdateSection(ctx, pageID, op.SectionID, op.Section)
}

// POST /pages/:id/blocks/batch responds 200 when every operation succeeded,
// 207 Multi-Status alongside the itemized results otherwise.
func (h *Handler) batch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result := h.svc.Batch(c.Request.Context(), c.Param("id"), &req)
	if result.Failed > 0 {
		response.MultiStatus(c, result)
		return
	}
	response.OK(c, result)
}

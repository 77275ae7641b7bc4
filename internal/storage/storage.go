// Package storage defines the persistence contract shared by every backend.
// All backends must produce observably identical results for the same
// sequence of calls; only the physical storage differs.
package storage

import (
	"context"

	"github.com/pagecraft/core/internal/models"
)

// Adapter is the capability set each storage backend implements.
//
// Every mutating call bumps the owning page's updatedAt and increments its
// version exactly once. The version field is observability only: no method
// compares it against a caller-supplied value before writing, so concurrent
// writers interleave last-write-wins.
type Adapter interface {
	// Initialize performs idempotent setup (files, schema). Safe to call
	// more than once.
	Initialize(ctx context.Context) error

	// Pages returns all pages ordered by creation time, newest first.
	Pages(ctx context.Context) ([]models.Page, error)
	Page(ctx context.Context, id string) (*models.Page, error)
	PageBySlug(ctx context.Context, slug string) (*models.Page, error)
	CreatePage(ctx context.Context, in CreatePageInput) (*models.Page, error)
	UpdatePage(ctx context.Context, id string, patch PagePatch) error
	// DeletePage removes the page and cascades to its sections and blocks.
	DeletePage(ctx context.Context, id string) error

	CreateSection(ctx context.Context, in CreateSectionInput) (*models.Section, error)
	UpdateSection(ctx context.Context, pageID, sectionID string, patch SectionPatch) error
	// DeleteSection removes the section and cascades to its blocks.
	DeleteSection(ctx context.Context, pageID, sectionID string) error

	CreateBlock(ctx context.Context, in CreateBlockInput) (*models.Block, error)
	UpdateBlock(ctx context.Context, pageID, sectionID, blockID string, patch models.BlockPatch) error
	DeleteBlock(ctx context.Context, pageID, sectionID, blockID string) error

	// Close releases held resources. A no-op for stateless backends.
	Close() error
}

// CreatePageInput carries the fields of an explicit page construct call.
// New pages start unpublished at version 1 with no sections.
type CreatePageInput struct {
	Slug        string
	Title       string
	Description string
}

// PagePatch is a partial page update; nil fields are left untouched.
type PagePatch struct {
	Slug        *string
	Title       *string
	Description *string
	Published   *bool
}

// CreateSectionInput creates a section under an existing page. When Order is
// nil the section is appended: order = current sibling count.
type CreateSectionInput struct {
	PageID string
	Title  string
	Order  *int
}

// SectionPatch is a partial section update; nil fields are left untouched.
type SectionPatch struct {
	Title *string
	Order *int
}

// CreateBlockInput creates a block under an existing section. When Order is
// nil the block is appended: order = current sibling count.
type CreateBlockInput struct {
	PageID    string
	SectionID string
	Type      models.BlockType
	Order     *int
	Data      models.BlockData
}

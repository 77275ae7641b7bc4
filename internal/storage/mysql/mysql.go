// Package mysql persists the content tree to MySQL through GORM. Rows are
// mapped through private row structs; block payloads ride in a LONGTEXT
// column as JSON so the variant fields never leak into the schema.
package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/storage"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type pageRow struct {
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	Slug        string `gorm:"type:varchar(191);uniqueIndex;not null"`
	Title       string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	Published   bool   `gorm:"not null;default:false"`
	Version     int    `gorm:"not null;default:1"`
	// datetime(6): millisecond precision would let back-to-back creates
	// tie and scramble the newest-first page listing.
	CreatedAt time.Time `gorm:"type:datetime(6)"`
	UpdatedAt time.Time `gorm:"type:datetime(6)"`
}

func (pageRow) TableName() string { return "pages" }

type sectionRow struct {
	ID        string  `gorm:"primaryKey;type:varchar(64)"`
	PageID    string  `gorm:"type:varchar(64);index;not null"`
	Page      pageRow `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE"`
	Title     string    `gorm:"type:varchar(255);not null"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:datetime(6)"`
	UpdatedAt time.Time `gorm:"type:datetime(6)"`
}

func (sectionRow) TableName() string { return "sections" }

type blockRow struct {
	ID        string     `gorm:"primaryKey;type:varchar(64)"`
	SectionID string     `gorm:"type:varchar(64);index;not null"`
	Section   sectionRow `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE"`
	Type      string     `gorm:"type:varchar(32);not null"`
	Position  int        `gorm:"not null;default:0"`
	Data      string     `gorm:"type:longtext"`
}

func (blockRow) TableName() string { return "blocks" }

type Adapter struct {
	dsn string
	log *zap.Logger
	db  *gorm.DB
}

var _ storage.Adapter = (*Adapter)(nil)

// New returns an adapter for the database named by a go-sql-driver DSN
// (user:pass@tcp(host:3306)/db?parseTime=true).
func New(dsn string, log *zap.Logger) *Adapter {
	return &Adapter{dsn: dsn, log: log}
}

// Initialize opens the connection and runs auto-migration. Safe to call
// repeatedly.
func (a *Adapter) Initialize(ctx context.Context) error {
	if a.db == nil {
		db, err := gorm.Open(gormmysql.New(gormmysql.Config{
			DSN:               a.dsn,
			DefaultStringSize: 191,
		}), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return fmt.Errorf("mysql: connect: %w", err)
		}
		a.db = db
	}
	if err := a.db.WithContext(ctx).AutoMigrate(&pageRow{}, &sectionRow{}, &blockRow{}); err != nil {
		return fmt.Errorf("mysql: migrate: %w", err)
	}
	return nil
}

func (a *Adapter) Pages(ctx context.Context) ([]models.Page, error) {
	var rows []pageRow
	if err := a.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("mysql: list pages: %w", err)
	}
	pages := make([]models.Page, 0, len(rows))
	for i := range rows {
		p := toPage(&rows[i])
		if err := a.loadChildren(ctx, &p); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func (a *Adapter) Page(ctx context.Context, id string) (*models.Page, error) {
	return a.pageWhere(ctx, "id = ?", id)
}

func (a *Adapter) PageBySlug(ctx context.Context, slug string) (*models.Page, error) {
	return a.pageWhere(ctx, "slug = ?", slug)
}

func (a *Adapter) pageWhere(ctx context.Context, where string, arg string) (*models.Page, error) {
	var row pageRow
	err := a.db.WithContext(ctx).Where(where, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("page %s: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get page: %w", err)
	}
	p := toPage(&row)
	if err := a.loadChildren(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *Adapter) CreatePage(ctx context.Context, in storage.CreatePageInput) (*models.Page, error) {
	now := time.Now().UTC()
	row := pageRow{
		ID:          models.NewID(),
		Slug:        in.Slug,
		Title:       in.Title,
		Description: in.Description,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("slug %q: %w", in.Slug, storage.ErrSlugConflict)
		}
		return nil, fmt.Errorf("mysql: create page: %w", err)
	}
	p := toPage(&row)
	p.Sections = []models.Section{}
	return &p, nil
}

func (a *Adapter) UpdatePage(ctx context.Context, id string, patch storage.PagePatch) error {
	updates := map[string]any{
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	}
	if patch.Slug != nil {
		updates["slug"] = *patch.Slug
	}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Published != nil {
		updates["published"] = *patch.Published
	}

	res := a.db.WithContext(ctx).Model(&pageRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if patch.Slug != nil && isDuplicateKey(res.Error) {
			return fmt.Errorf("slug %q: %w", *patch.Slug, storage.ErrSlugConflict)
		}
		return fmt.Errorf("mysql: update page: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("page %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (a *Adapter) DeletePage(ctx context.Context, id string) error {
	res := a.db.WithContext(ctx).Where("id = ?", id).Delete(&pageRow{})
	if res.Error != nil {
		return fmt.Errorf("mysql: delete page: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("page %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (a *Adapter) CreateSection(ctx context.Context, in storage.CreateSectionInput) (*models.Section, error) {
	var count int64
	if err := a.db.WithContext(ctx).Model(&pageRow{}).Where("id = ?", in.PageID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("mysql: check page: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("page %s: %w", in.PageID, storage.ErrNotFound)
	}

	order := 0
	if in.Order != nil {
		order = *in.Order
	} else {
		var siblings int64
		if err := a.db.WithContext(ctx).Model(&sectionRow{}).
			Where("page_id = ?", in.PageID).Count(&siblings).Error; err != nil {
			return nil, fmt.Errorf("mysql: count sections: %w", err)
		}
		order = int(siblings)
	}

	now := time.Now().UTC()
	row := sectionRow{
		ID:        models.NewID(),
		PageID:    in.PageID,
		Title:     in.Title,
		Position:  order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("mysql: create section: %w", err)
	}
	if err := a.bumpPage(ctx, in.PageID); err != nil {
		return nil, err
	}
	return &models.Section{
		ID:        row.ID,
		Title:     row.Title,
		Blocks:    []models.Block{},
		Order:     row.Position,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (a *Adapter) UpdateSection(ctx context.Context, pageID, sectionID string, patch storage.SectionPatch) error {
	// RowsAffected counts changed rows, not matched ones, so a patch that
	// writes back identical values would look like a missing section.
	// Existence is checked separately.
	var count int64
	if err := a.db.WithContext(ctx).Model(&sectionRow{}).
		Where("id = ? AND page_id = ?", sectionID, pageID).Count(&count).Error; err != nil {
		return fmt.Errorf("mysql: check section: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("section %s: %w", sectionID, storage.ErrNotFound)
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Order != nil {
		updates["position"] = *patch.Order
	}
	if err := a.db.WithContext(ctx).Model(&sectionRow{}).
		Where("id = ? AND page_id = ?", sectionID, pageID).Updates(updates).Error; err != nil {
		return fmt.Errorf("mysql: update section: %w", err)
	}
	return a.bumpPage(ctx, pageID)
}

func (a *Adapter) DeleteSection(ctx context.Context, pageID, sectionID string) error {
	res := a.db.WithContext(ctx).
		Where("id = ? AND page_id = ?", sectionID, pageID).Delete(&sectionRow{})
	if res.Error != nil {
		return fmt.Errorf("mysql: delete section: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("section %s: %w", sectionID, storage.ErrNotFound)
	}
	return a.bumpPage(ctx, pageID)
}

func (a *Adapter) CreateBlock(ctx context.Context, in storage.CreateBlockInput) (*models.Block, error) {
	var count int64
	if err := a.db.WithContext(ctx).Model(&sectionRow{}).
		Where("id = ? AND page_id = ?", in.SectionID, in.PageID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("mysql: check section: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("section %s: %w", in.SectionID, storage.ErrNotFound)
	}

	order := 0
	if in.Order != nil {
		order = *in.Order
	} else {
		var siblings int64
		if err := a.db.WithContext(ctx).Model(&blockRow{}).
			Where("section_id = ?", in.SectionID).Count(&siblings).Error; err != nil {
			return nil, fmt.Errorf("mysql: count blocks: %w", err)
		}
		order = int(siblings)
	}

	data, err := json.Marshal(in.Data)
	if err != nil {
		return nil, fmt.Errorf("mysql: encode block data: %w", err)
	}
	row := blockRow{
		ID:        models.NewID(),
		SectionID: in.SectionID,
		Type:      string(in.Type),
		Position:  order,
		Data:      string(data),
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("mysql: create block: %w", err)
	}
	if err := a.touchSection(ctx, in.SectionID); err != nil {
		return nil, err
	}
	if err := a.bumpPage(ctx, in.PageID); err != nil {
		return nil, err
	}
	return &models.Block{ID: row.ID, Type: in.Type, Order: row.Position, Data: in.Data}, nil
}

func (a *Adapter) UpdateBlock(ctx context.Context, pageID, sectionID, blockID string, patch models.BlockPatch) error {
	var row blockRow
	err := a.db.WithContext(ctx).
		Joins("JOIN sections ON sections.id = blocks.section_id").
		Where("blocks.id = ? AND blocks.section_id = ? AND sections.page_id = ?", blockID, sectionID, pageID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("mysql: load block: %w", err)
	}

	data, err := models.ParseBlockData(models.BlockType(row.Type), []byte(row.Data))
	if err != nil {
		return err
	}
	merged, err := patch.Apply(data)
	if err != nil {
		return err
	}
	position := row.Position
	if patch.Order != nil {
		position = *patch.Order
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("mysql: encode block data: %w", err)
	}

	if err := a.db.WithContext(ctx).Model(&blockRow{}).Where("id = ?", blockID).
		Updates(map[string]any{"position": position, "data": string(encoded)}).Error; err != nil {
		return fmt.Errorf("mysql: update block: %w", err)
	}
	if err := a.touchSection(ctx, sectionID); err != nil {
		return err
	}
	return a.bumpPage(ctx, pageID)
}

func (a *Adapter) DeleteBlock(ctx context.Context, pageID, sectionID, blockID string) error {
	res := a.db.WithContext(ctx).
		Where("id = ? AND section_id IN (?)",
			blockID,
			a.db.Model(&sectionRow{}).Select("id").Where("id = ? AND page_id = ?", sectionID, pageID)).
		Delete(&blockRow{})
	if res.Error != nil {
		return fmt.Errorf("mysql: delete block: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
	}
	if err := a.touchSection(ctx, sectionID); err != nil {
		return err
	}
	return a.bumpPage(ctx, pageID)
}

func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("mysql: resolve sql db: %w", err)
	}
	a.db = nil
	return sqlDB.Close()
}

func (a *Adapter) loadChildren(ctx context.Context, p *models.Page) error {
	var sections []sectionRow
	if err := a.db.WithContext(ctx).Where("page_id = ?", p.ID).
		Order("position ASC, created_at ASC").Find(&sections).Error; err != nil {
		return fmt.Errorf("mysql: load sections: %w", err)
	}

	p.Sections = []models.Section{}
	for i := range sections {
		s := models.Section{
			ID:        sections[i].ID,
			Title:     sections[i].Title,
			Blocks:    []models.Block{},
			Order:     sections[i].Position,
			CreatedAt: sections[i].CreatedAt,
			UpdatedAt: sections[i].UpdatedAt,
		}

		var blocks []blockRow
		if err := a.db.WithContext(ctx).Where("section_id = ?", s.ID).
			Order("position ASC").Find(&blocks).Error; err != nil {
			return fmt.Errorf("mysql: load blocks: %w", err)
		}
		for j := range blocks {
			data, err := models.ParseBlockData(models.BlockType(blocks[j].Type), []byte(blocks[j].Data))
			if err != nil {
				return err
			}
			s.Blocks = append(s.Blocks, models.Block{
				ID:    blocks[j].ID,
				Type:  models.BlockType(blocks[j].Type),
				Order: blocks[j].Position,
				Data:  data,
			})
		}
		p.Sections = append(p.Sections, s)
	}
	return nil
}

func (a *Adapter) bumpPage(ctx context.Context, pageID string) error {
	res := a.db.WithContext(ctx).Model(&pageRow{}).Where("id = ?", pageID).
		Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("mysql: bump page: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("page %s: %w", pageID, storage.ErrNotFound)
	}
	return nil
}

func (a *Adapter) touchSection(ctx context.Context, sectionID string) error {
	if err := a.db.WithContext(ctx).Model(&sectionRow{}).Where("id = ?", sectionID).
		Update("updated_at", time.Now().UTC()).Error; err != nil {
		return fmt.Errorf("mysql: touch section: %w", err)
	}
	return nil
}

func toPage(row *pageRow) models.Page {
	return models.Page{
		ID:          row.ID,
		Slug:        row.Slug,
		Title:       row.Title,
		Description: row.Description,
		Published:   row.Published,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// isDuplicateKey matches MySQL error 1062 (duplicate entry for a unique key).
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "Duplicate entry")
}

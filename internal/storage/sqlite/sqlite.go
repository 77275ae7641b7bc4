// Package sqlite persists the content tree to an embedded SQLite file using
// the pure-Go modernc driver. The schema is normalized into three tables;
// block payloads are stored as a JSON blob next to the id/type/order columns.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/storage"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the configured data directory.
const FileName = "pages.db"

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id          TEXT PRIMARY KEY,
	slug        TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	published   INTEGER NOT NULL DEFAULT 0,
	version     INTEGER NOT NULL DEFAULT 1,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
	id         TEXT PRIMARY KEY,
	page_id    TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	title      TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sections_page ON sections(page_id);

CREATE TABLE IF NOT EXISTS blocks (
	id         TEXT PRIMARY KEY,
	section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0,
	data       TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_blocks_section ON blocks(section_id);
`

type Adapter struct {
	path string
	log  *zap.Logger
	db   *sql.DB
}

var _ storage.Adapter = (*Adapter)(nil)

// New returns an adapter backed by the database file at path. Use ":memory:"
// for an ephemeral database in tests.
func New(path string, log *zap.Logger) *Adapter {
	return &Adapter{path: path, log: log}
}

// NewInDir places the database file inside dir.
func NewInDir(dir string, log *zap.Logger) *Adapter {
	return New(filepath.Join(dir, FileName), log)
}

// Initialize opens the database and applies pragmas and schema. SQLite ships
// with foreign-key enforcement off, so it is switched on explicitly; the
// cascading deletes depend on it. Safe to call repeatedly.
func (a *Adapter) Initialize(ctx context.Context) error {
	if a.db == nil {
		if a.path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
				return fmt.Errorf("sqlite: create data dir: %w", err)
			}
		}
		db, err := sql.Open("sqlite", a.path)
		if err != nil {
			return fmt.Errorf("sqlite: open %s: %w", a.path, err)
		}
		if a.path == ":memory:" {
			// Each connection to :memory: is a separate database.
			db.SetMaxOpenConns(1)
		}
		a.db = db
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
	}
	for _, p := range pragmas {
		if _, err := a.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

func (a *Adapter) Pages(ctx context.Context) ([]models.Page, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, slug, title, description, published, version, created_at, updated_at
		 FROM pages ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list pages: %w", err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list pages: %w", err)
	}
	for i := range pages {
		if err := a.loadChildren(ctx, &pages[i]); err != nil {
			return nil, err
		}
	}
	if pages == nil {
		pages = []models.Page{}
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
	row := a.db.QueryRowContext(ctx,
		`SELECT id, slug, title, description, published, version, created_at, updated_at
		 FROM pages WHERE `+where, arg)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := a.loadChildren(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (a *Adapter) CreatePage(ctx context.Context, in storage.CreatePageInput) (*models.Page, error) {
	now := time.Now().UTC()
	page := models.Page{
		ID:          models.NewID(),
		Slug:        in.Slug,
		Title:       in.Title,
		Description: in.Description,
		Sections:    []models.Section{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO pages (id, slug, title, description, published, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, 1, ?, ?)`,
		page.ID, page.Slug, page.Title, page.Description, formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("slug %q: %w", in.Slug, storage.ErrSlugConflict)
		}
		return nil, fmt.Errorf("sqlite: create page: %w", err)
	}
	return &page, nil
}

func (a *Adapter) UpdatePage(ctx context.Context, id string, patch storage.PagePatch) error {
	sets := []string{"version = version + 1", "updated_at = ?"}
	args := []any{formatTime(time.Now().UTC())}
	if patch.Slug != nil {
		sets = append(sets, "slug = ?")
		args = append(args, *patch.Slug)
	}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Published != nil {
		sets = append(sets, "published = ?")
		args = append(args, boolToInt(*patch.Published))
	}
	args = append(args, id)

	res, err := a.db.ExecContext(ctx,
		"UPDATE pages SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if patch.Slug != nil && isUniqueViolation(err) {
			return fmt.Errorf("slug %q: %w", *patch.Slug, storage.ErrSlugConflict)
		}
		return fmt.Errorf("sqlite: update page: %w", err)
	}
	return requireRow(res, "page", id)
}

func (a *Adapter) DeletePage(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete page: %w", err)
	}
	return requireRow(res, "page", id)
}

func (a *Adapter) CreateSection(ctx context.Context, in storage.CreateSectionInput) (*models.Section, error) {
	order, err := a.nextSectionOrder(ctx, in.PageID, in.Order)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	section := models.Section{
		ID:        models.NewID(),
		Title:     in.Title,
		Blocks:    []models.Block{},
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO sections (id, page_id, title, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		section.ID, in.PageID, section.Title, section.Order, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("sqlite: create section: %w", err)
	}
	if err := a.bumpPage(ctx, in.PageID); err != nil {
		return nil, err
	}
	return &section, nil
}

func (a *Adapter) UpdateSection(ctx context.Context, pageID, sectionID string, patch storage.SectionPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now().UTC())}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Order != nil {
		sets = append(sets, "position = ?")
		args = append(args, *patch.Order)
	}
	args = append(args, sectionID, pageID)

	res, err := a.db.ExecContext(ctx,
		"UPDATE sections SET "+strings.Join(sets, ", ")+" WHERE id = ? AND page_id = ?", args...)
	if err != nil {
		return fmt.Errorf("sqlite: update section: %w", err)
	}
	if err := requireRow(res, "section", sectionID); err != nil {
		return err
	}
	return a.bumpPage(ctx, pageID)
}

func (a *Adapter) DeleteSection(ctx context.Context, pageID, sectionID string) error {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM sections WHERE id = ? AND page_id = ?`, sectionID, pageID)
	if err != nil {
		return fmt.Errorf("sqlite: delete section: %w", err)
	}
	if err := requireRow(res, "section", sectionID); err != nil {
		return err
	}
	return a.bumpPage(ctx, pageID)
}

func (a *Adapter) CreateBlock(ctx context.Context, in storage.CreateBlockInput) (*models.Block, error) {
	if err := a.requireSection(ctx, in.PageID, in.SectionID); err != nil {
		return nil, err
	}

	order := 0
	if in.Order != nil {
		order = *in.Order
	} else {
		row := a.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM blocks WHERE section_id = ?`, in.SectionID)
		if err := row.Scan(&order); err != nil {
			return nil, fmt.Errorf("sqlite: count blocks: %w", err)
		}
	}

	data, err := json.Marshal(in.Data)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode block data: %w", err)
	}
	block := models.Block{ID: models.NewID(), Type: in.Type, Order: order, Data: in.Data}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO blocks (id, section_id, type, position, data) VALUES (?, ?, ?, ?, ?)`,
		block.ID, in.SectionID, string(in.Type), block.Order, string(data))
	if err != nil {
		return nil, fmt.Errorf("sqlite: create block: %w", err)
	}
	if err := a.touchSection(ctx, in.SectionID); err != nil {
		return nil, err
	}
	if err := a.bumpPage(ctx, in.PageID); err != nil {
		return nil, err
	}
	return &block, nil
}

func (a *Adapter) UpdateBlock(ctx context.Context, pageID, sectionID, blockID string, patch models.BlockPatch) error {
	row := a.db.QueryRowContext(ctx,
		`SELECT b.type, b.position, b.data FROM blocks b
		 JOIN sections s ON s.id = b.section_id
		 WHERE b.id = ? AND b.section_id = ? AND s.page_id = ?`,
		blockID, sectionID, pageID)

	var (
		blockType string
		position  int
		raw       string
	)
	if err := row.Scan(&blockType, &position, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
		}
		return fmt.Errorf("sqlite: load block: %w", err)
	}

	// Whole-blob merge: decode, patch, re-encode. Unspecified fields survive.
	data, err := models.ParseBlockData(models.BlockType(blockType), []byte(raw))
	if err != nil {
		return err
	}
	merged, err := patch.Apply(data)
	if err != nil {
		return err
	}
	if patch.Order != nil {
		position = *patch.Order
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("sqlite: encode block data: %w", err)
	}

	if _, err := a.db.ExecContext(ctx,
		`UPDATE blocks SET position = ?, data = ? WHERE id = ?`,
		position, string(encoded), blockID); err != nil {
		return fmt.Errorf("sqlite: update block: %w", err)
	}
	if err := a.touchSection(ctx, sectionID); err != nil {
		return err
	}
	return a.bumpPage(ctx, pageID)
}

func (a *Adapter) DeleteBlock(ctx context.Context, pageID, sectionID, blockID string) error {
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM blocks WHERE id = ? AND section_id IN
		   (SELECT id FROM sections WHERE id = ? AND page_id = ?)`,
		blockID, sectionID, pageID)
	if err != nil {
		return fmt.Errorf("sqlite: delete block: %w", err)
	}
	if err := requireRow(res, "block", blockID); err != nil {
		return err
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
	err := a.db.Close()
	a.db = nil
	return err
}

// loadChildren fills the page's sections and blocks, ordered by position.
func (a *Adapter) loadChildren(ctx context.Context, p *models.Page) error {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, title, position, created_at, updated_at
		 FROM sections WHERE page_id = ? ORDER BY position ASC, created_at ASC, rowid ASC`, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite: load sections: %w", err)
	}
	defer rows.Close()

	p.Sections = []models.Section{}
	for rows.Next() {
		var (
			s                    models.Section
			createdAt, updatedAt string
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.Order, &createdAt, &updatedAt); err != nil {
			return fmt.Errorf("sqlite: scan section: %w", err)
		}
		if s.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return err
		}
		s.Blocks = []models.Block{}
		p.Sections = append(p.Sections, s)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: load sections: %w", err)
	}

	for i := range p.Sections {
		if err := a.loadBlocks(ctx, &p.Sections[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) loadBlocks(ctx context.Context, s *models.Section) error {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, type, position, data FROM blocks
		 WHERE section_id = ? ORDER BY position ASC, rowid ASC`, s.ID)
	if err != nil {
		return fmt.Errorf("sqlite: load blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b         models.Block
			blockType string
			raw       string
		)
		if err := rows.Scan(&b.ID, &blockType, &b.Order, &raw); err != nil {
			return fmt.Errorf("sqlite: scan block: %w", err)
		}
		b.Type = models.BlockType(blockType)
		if b.Data, err = models.ParseBlockData(b.Type, []byte(raw)); err != nil {
			return err
		}
		s.Blocks = append(s.Blocks, b)
	}
	return rows.Err()
}

func (a *Adapter) nextSectionOrder(ctx context.Context, pageID string, explicit *int) (int, error) {
	var exists int
	row := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE id = ?`, pageID)
	if err := row.Scan(&exists); err != nil {
		return 0, fmt.Errorf("sqlite: check page: %w", err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("page %s: %w", pageID, storage.ErrNotFound)
	}
	if explicit != nil {
		return *explicit, nil
	}
	var count int
	row = a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections WHERE page_id = ?`, pageID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count sections: %w", err)
	}
	return count, nil
}

func (a *Adapter) requireSection(ctx context.Context, pageID, sectionID string) error {
	var count int
	row := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sections WHERE id = ? AND page_id = ?`, sectionID, pageID)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("sqlite: check section: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("section %s: %w", sectionID, storage.ErrNotFound)
	}
	return nil
}

// bumpPage records one logical mutation against the page.
func (a *Adapter) bumpPage(ctx context.Context, pageID string) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE pages SET version = version + 1, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), pageID)
	if err != nil {
		return fmt.Errorf("sqlite: bump page: %w", err)
	}
	return requireRow(res, "page", pageID)
}

func (a *Adapter) touchSection(ctx context.Context, sectionID string) error {
	if _, err := a.db.ExecContext(ctx,
		`UPDATE sections SET updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), sectionID); err != nil {
		return fmt.Errorf("sqlite: touch section: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*models.Page, error) {
	var (
		p                    models.Page
		published            int
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &published, &p.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan page: %w", err)
	}
	p.Published = published != 0
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

// timeLayout is fixed-width so the stored strings sort lexicographically;
// RFC3339Nano trims trailing zeros and would break ORDER BY created_at.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

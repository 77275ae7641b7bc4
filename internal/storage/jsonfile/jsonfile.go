// Package jsonfile persists the whole content tree to a single JSON file.
// Every mutation rewrites the file; the document on disk is always either
// the previous or the new full state. Suitable for single-process,
// low-concurrency deployments only.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pagecraft/core/internal/models"
	"github.com/pagecraft/core/internal/storage"
	"go.uber.org/zap"
)

// FileName is the document file created inside the configured data directory.
const FileName = "pages.json"

// document is the on-disk layout. Timestamps serialize as RFC 3339 strings.
type document struct {
	Pages       []models.Page `json:"pages"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

type Adapter struct {
	path string
	log  *zap.Logger

	mu  sync.Mutex
	doc document
}

var _ storage.Adapter = (*Adapter)(nil)

// New returns an adapter storing its document inside dir.
func New(dir string, log *zap.Logger) *Adapter {
	return &Adapter{path: filepath.Join(dir, FileName), log: log}
}

// Initialize loads the document file if present, otherwise creates an empty
// one. Calling it again simply reloads from disk.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, err := os.ReadFile(a.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
			return fmt.Errorf("jsonfile: create data dir: %w", err)
		}
		a.doc = document{Pages: []models.Page{}}
		return a.persist()
	}
	if err != nil {
		return fmt.Errorf("jsonfile: read %s: %w", a.path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("jsonfile: parse %s: %w", a.path, err)
	}
	if doc.Pages == nil {
		doc.Pages = []models.Page{}
	}
	a.doc = doc
	a.log.Debug("document loaded", zap.String("path", a.path), zap.Int("pages", len(doc.Pages)))
	return nil
}

func (a *Adapter) Pages(ctx context.Context) ([]models.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Stored order is creation order; newest first on the way out.
	out := make([]models.Page, 0, len(a.doc.Pages))
	for i := len(a.doc.Pages) - 1; i >= 0; i-- {
		out = append(out, *a.clonePage(&a.doc.Pages[i]))
	}
	return out, nil
}

func (a *Adapter) Page(ctx context.Context, id string) (*models.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.find(id)
	if p == nil {
		return nil, fmt.Errorf("page %s: %w", id, storage.ErrNotFound)
	}
	return a.clonePage(p), nil
}

func (a *Adapter) PageBySlug(ctx context.Context, slug string) (*models.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.doc.Pages {
		if a.doc.Pages[i].Slug == slug {
			return a.clonePage(&a.doc.Pages[i]), nil
		}
	}
	return nil, fmt.Errorf("page slug %q: %w", slug, storage.ErrNotFound)
}

func (a *Adapter) CreatePage(ctx context.Context, in storage.CreatePageInput) (*models.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.doc.Pages {
		if a.doc.Pages[i].Slug == in.Slug {
			return nil, fmt.Errorf("slug %q: %w", in.Slug, storage.ErrSlugConflict)
		}
	}

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
	prev := a.snapshot()
	a.doc.Pages = append(a.doc.Pages, page)
	if err := a.commit(prev); err != nil {
		return nil, err
	}
	return page.Clone(), nil
}

func (a *Adapter) UpdatePage(ctx context.Context, id string, patch storage.PagePatch) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.find(id)
	if p == nil {
		return fmt.Errorf("page %s: %w", id, storage.ErrNotFound)
	}
	if patch.Slug != nil && *patch.Slug != p.Slug {
		for i := range a.doc.Pages {
			if a.doc.Pages[i].Slug == *patch.Slug {
				return fmt.Errorf("slug %q: %w", *patch.Slug, storage.ErrSlugConflict)
			}
		}
	}

	prev := a.snapshot()
	if patch.Slug != nil {
		p.Slug = *patch.Slug
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Published != nil {
		p.Published = *patch.Published
	}
	a.touch(p)
	return a.commit(prev)
}

func (a *Adapter) DeletePage(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.doc.Pages {
		if a.doc.Pages[i].ID == id {
			prev := a.snapshot()
			a.doc.Pages = append(a.doc.Pages[:i], a.doc.Pages[i+1:]...)
			return a.commit(prev)
		}
	}
	return fmt.Errorf("page %s: %w", id, storage.ErrNotFound)
}

func (a *Adapter) CreateSection(ctx context.Context, in storage.CreateSectionInput) (*models.Section, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.find(in.PageID)
	if p == nil {
		return nil, fmt.Errorf("page %s: %w", in.PageID, storage.ErrNotFound)
	}

	order := len(p.Sections)
	if in.Order != nil {
		order = *in.Order
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
	prev := a.snapshot()
	p.Sections = append(p.Sections, section)
	a.touch(p)
	if err := a.commit(prev); err != nil {
		return nil, err
	}
	return section.Clone(), nil
}

func (a *Adapter) UpdateSection(ctx context.Context, pageID, sectionID string, patch storage.SectionPatch) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, s, err := a.findSection(pageID, sectionID)
	if err != nil {
		return err
	}
	prev := a.snapshot()
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.Order != nil {
		s.Order = *patch.Order
	}
	s.UpdatedAt = time.Now().UTC()
	a.touch(p)
	return a.commit(prev)
}

func (a *Adapter) DeleteSection(ctx context.Context, pageID, sectionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.find(pageID)
	if p == nil {
		return fmt.Errorf("page %s: %w", pageID, storage.ErrNotFound)
	}
	for i := range p.Sections {
		if p.Sections[i].ID == sectionID {
			prev := a.snapshot()
			p.Sections = append(p.Sections[:i], p.Sections[i+1:]...)
			a.touch(p)
			return a.commit(prev)
		}
	}
	return fmt.Errorf("section %s: %w", sectionID, storage.ErrNotFound)
}

func (a *Adapter) CreateBlock(ctx context.Context, in storage.CreateBlockInput) (*models.Block, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, s, err := a.findSection(in.PageID, in.SectionID)
	if err != nil {
		return nil, err
	}

	order := len(s.Blocks)
	if in.Order != nil {
		order = *in.Order
	}
	block := models.Block{
		ID:    models.NewID(),
		Type:  in.Type,
		Order: order,
		Data:  in.Data,
	}
	prev := a.snapshot()
	s.Blocks = append(s.Blocks, block)
	s.UpdatedAt = time.Now().UTC()
	a.touch(p)
	if err := a.commit(prev); err != nil {
		return nil, err
	}
	out := block.Clone()
	return &out, nil
}

func (a *Adapter) UpdateBlock(ctx context.Context, pageID, sectionID, blockID string, patch models.BlockPatch) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, s, err := a.findSection(pageID, sectionID)
	if err != nil {
		return err
	}
	b := s.Block(blockID)
	if b == nil {
		return fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
	}
	merged, err := patch.Apply(b.Data)
	if err != nil {
		return err
	}
	prev := a.snapshot()
	b.Data = merged
	if patch.Order != nil {
		b.Order = *patch.Order
	}
	s.UpdatedAt = time.Now().UTC()
	a.touch(p)
	return a.commit(prev)
}

func (a *Adapter) DeleteBlock(ctx context.Context, pageID, sectionID, blockID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, s, err := a.findSection(pageID, sectionID)
	if err != nil {
		return err
	}
	for i := range s.Blocks {
		if s.Blocks[i].ID == blockID {
			prev := a.snapshot()
			s.Blocks = append(s.Blocks[:i], s.Blocks[i+1:]...)
			s.UpdatedAt = time.Now().UTC()
			a.touch(p)
			return a.commit(prev)
		}
	}
	return fmt.Errorf("block %s: %w", blockID, storage.ErrNotFound)
}

func (a *Adapter) Close() error { return nil }

// clonePage deep-copies the page with sections and blocks sorted by their
// order field. The document keeps insertion order, which doubles as the
// created-at tie-break under a stable sort, matching what the SQL backends
// read back with ORDER BY position, created_at.
func (a *Adapter) clonePage(p *models.Page) *models.Page {
	out := p.Clone()
	sort.SliceStable(out.Sections, func(i, j int) bool {
		return out.Sections[i].Order < out.Sections[j].Order
	})
	for i := range out.Sections {
		blocks := out.Sections[i].Blocks
		sort.SliceStable(blocks, func(x, y int) bool {
			return blocks[x].Order < blocks[y].Order
		})
	}
	return out
}

func (a *Adapter) find(id string) *models.Page {
	for i := range a.doc.Pages {
		if a.doc.Pages[i].ID == id {
			return &a.doc.Pages[i]
		}
	}
	return nil
}

func (a *Adapter) findSection(pageID, sectionID string) (*models.Page, *models.Section, error) {
	p := a.find(pageID)
	if p == nil {
		return nil, nil, fmt.Errorf("page %s: %w", pageID, storage.ErrNotFound)
	}
	s := p.Section(sectionID)
	if s == nil {
		return nil, nil, fmt.Errorf("section %s: %w", sectionID, storage.ErrNotFound)
	}
	return p, s, nil
}

// touch records one logical mutation against the page.
func (a *Adapter) touch(p *models.Page) {
	p.UpdatedAt = time.Now().UTC()
	p.Version++
}

// snapshot deep-copies the document so a failed write can be undone.
func (a *Adapter) snapshot() document {
	pages := make([]models.Page, 0, len(a.doc.Pages))
	for i := range a.doc.Pages {
		pages = append(pages, *a.doc.Pages[i].Clone())
	}
	return document{Pages: pages, LastUpdated: a.doc.LastUpdated}
}

// commit persists the mutated document. When the write fails the in-memory
// state is rolled back to prev, so reads never serve a mutation that was
// reported as failed.
func (a *Adapter) commit(prev document) error {
	if err := a.persist(); err != nil {
		a.doc = prev
		return err
	}
	return nil
}

// persist rewrites the document file. The write goes to a temp file that is
// renamed over the target, so a crash mid-write leaves the previous document
// intact. (The original flat overwrite was not crash-atomic; the rename
// costs nothing here.)
func (a *Adapter) persist() error {
	a.doc.LastUpdated = time.Now().UTC()
	raw, err := json.MarshalIndent(a.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode document: %w", err)
	}

	dir := filepath.Dir(a.path)
	tmp, err := os.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("jsonfile: write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("jsonfile: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("jsonfile: replace %s: %w", a.path, err)
	}
	return nil
}

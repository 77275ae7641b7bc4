package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalid is wrapped by every validation failure so callers can
// distinguish bad input from infrastructure errors.
var ErrInvalid = errors.New("invalid content")

// Page is a top-level content document addressed by a unique slug.
// Version starts at 1 and increments once per mutation reaching storage,
// whether the mutation touches the page itself or any descendant.
type Page struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Sections    []Section `json:"sections"`
	Published   bool      `json:"published"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Section is a named, ordered grouping of blocks owned by exactly one page.
type Section struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Blocks    []Block   `json:"blocks"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewID returns a fresh entity ID.
func NewID() string { return uuid.New().String() }

// ValidateSlug checks that a slug is non-empty and URL-safe.
func ValidateSlug(slug string) error {
	if strings.TrimSpace(slug) == "" {
		return fmt.Errorf("slug must not be empty: %w", ErrInvalid)
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("slug contains invalid character %q: %w", r, ErrInvalid)
		}
	}
	return nil
}

// Clone returns a deep copy of the page so callers can hand out snapshots
// without aliasing the stored tree.
func (p *Page) Clone() *Page {
	out := *p
	out.Sections = make([]Section, len(p.Sections))
	for i := range p.Sections {
		out.Sections[i] = *p.Sections[i].Clone()
	}
	return &out
}

// Clone returns a deep copy of the section and its blocks.
func (s *Section) Clone() *Section {
	out := *s
	out.Blocks = make([]Block, len(s.Blocks))
	for i, b := range s.Blocks {
		out.Blocks[i] = b.Clone()
	}
	return &out
}

// Section returns the section with the given id, or nil.
func (p *Page) Section(id string) *Section {
	for i := range p.Sections {
		if p.Sections[i].ID == id {
			return &p.Sections[i]
		}
	}
	return nil
}

// Block returns the block with the given id, or nil.
func (s *Section) Block(id string) *Block {
	for i := range s.Blocks {
		if s.Blocks[i].ID == id {
			return &s.Blocks[i]
		}
	}
	return nil
}

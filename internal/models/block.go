package models

import (
	"encoding/json"
	"fmt"
)

// BlockType tags one of the seven block variants.
type BlockType string

const (
	BlockText    BlockType = "text"
	BlockHeading BlockType = "heading"
	BlockImage   BlockType = "image"
	BlockList    BlockType = "list"
	BlockQuote   BlockType = "quote"
	BlockAction  BlockType = "action"
	BlockVideo   BlockType = "video"
)

// Valid reports whether t is one of the known block types.
func (t BlockType) Valid() bool {
	switch t {
	case BlockText, BlockHeading, BlockImage, BlockList, BlockQuote, BlockAction, BlockVideo:
		return true
	}
	return false
}

// Block is the smallest content unit, owned by exactly one section.
// Type-specific fields live behind the BlockData sum type so that, e.g.,
// a heading level is only reachable after matching on the heading variant.
type Block struct {
	ID    string
	Type  BlockType
	Order int
	Data  BlockData
}

// BlockData is the closed set of per-type block payloads.
type BlockData interface {
	BlockType() BlockType
	Validate() error
}

// Dimensions holds intrinsic image dimensions in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type TextData struct {
	Content string `json:"content"`
}

type HeadingData struct {
	Level   int    `json:"level"`
	Content string `json:"content"`
}

type ImageData struct {
	URL        string            `json:"url"`
	URLs       map[string]string `json:"urls,omitempty"` // size name (original/thumbnail/medium/large) -> URL
	Alt        string            `json:"alt"`
	Caption    string            `json:"caption,omitempty"`
	Dimensions *Dimensions       `json:"dimensions,omitempty"`
}

type ListData struct {
	Items   []string `json:"items"`
	Ordered bool     `json:"ordered"`
}

type QuoteData struct {
	Content string `json:"content"`
	Author  string `json:"author,omitempty"`
}

type ActionData struct {
	ActionType   string `json:"actionType"` // "button" | "link"
	Label        string `json:"label"`
	URL          string `json:"url"`
	Style        string `json:"style,omitempty"`
	OpenInNewTab bool   `json:"openInNewTab,omitempty"`
}

type VideoData struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

func (TextData) BlockType() BlockType    { return BlockText }
func (HeadingData) BlockType() BlockType { return BlockHeading }
func (ImageData) BlockType() BlockType   { return BlockImage }
func (ListData) BlockType() BlockType    { return BlockList }
func (QuoteData) BlockType() BlockType   { return BlockQuote }
func (ActionData) BlockType() BlockType  { return BlockAction }
func (VideoData) BlockType() BlockType   { return BlockVideo }

func (TextData) Validate() error { return nil }

func (d HeadingData) Validate() error {
	if d.Level < 1 || d.Level > 6 {
		return fmt.Errorf("heading level %d out of range 1-6: %w", d.Level, ErrInvalid)
	}
	return nil
}

func (d ImageData) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("image url must not be empty: %w", ErrInvalid)
	}
	return nil
}

func (d ListData) Validate() error { return nil }

func (QuoteData) Validate() error { return nil }

func (d ActionData) Validate() error {
	if d.ActionType != "button" && d.ActionType != "link" {
		return fmt.Errorf("action type %q must be button or link: %w", d.ActionType, ErrInvalid)
	}
	if d.URL == "" {
		return fmt.Errorf("action url must not be empty: %w", ErrInvalid)
	}
	return nil
}

func (d VideoData) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("video url must not be empty: %w", ErrInvalid)
	}
	return nil
}

// ParseBlockData decodes the type-specific payload for the given block type.
// This is the single place the type tag selects a concrete variant.
func ParseBlockData(t BlockType, raw []byte) (BlockData, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch t {
	case BlockText:
		var d TextData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode text block data: %w", err)
		}
		return d, nil
	case BlockHeading:
		var d HeadingData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode heading block data: %w", err)
		}
		return d, nil
	case BlockImage:
		var d ImageData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode image block data: %w", err)
		}
		return d, nil
	case BlockList:
		var d ListData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode list block data: %w", err)
		}
		return d, nil
	case BlockQuote:
		var d QuoteData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode quote block data: %w", err)
		}
		return d, nil
	case BlockAction:
		var d ActionData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode action block data: %w", err)
		}
		return d, nil
	case BlockVideo:
		var d VideoData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode video block data: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown block type %q: %w", t, ErrInvalid)
	}
}

// blockHead is the wire shape shared by all block variants.
type blockHead struct {
	ID    string    `json:"id"`
	Type  BlockType `json:"type"`
	Order int       `json:"order"`
}

// MarshalJSON flattens the variant fields next to id/type/order, matching
// the persisted document layout.
func (b Block) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if b.Data != nil {
		raw, err := json.Marshal(b.Data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	head, err := json.Marshal(blockHead{ID: b.ID, Type: b.Type, Order: b.Order})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(head, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func (b *Block) UnmarshalJSON(raw []byte) error {
	var head blockHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}
	data, err := ParseBlockData(head.Type, raw)
	if err != nil {
		return err
	}
	b.ID = head.ID
	b.Type = head.Type
	b.Order = head.Order
	b.Data = data
	return nil
}

// Clone returns a copy of the block with no shared mutable state.
func (b Block) Clone() Block {
	b.Data = cloneBlockData(b.Data)
	return b
}

func cloneBlockData(d BlockData) BlockData {
	switch v := d.(type) {
	case ImageData:
		if v.URLs != nil {
			urls := make(map[string]string, len(v.URLs))
			for k, u := range v.URLs {
				urls[k] = u
			}
			v.URLs = urls
		}
		if v.Dimensions != nil {
			dim := *v.Dimensions
			v.Dimensions = &dim
		}
		return v
	case ListData:
		if v.Items != nil {
			v.Items = append([]string(nil), v.Items...)
		}
		return v
	default:
		return d
	}
}

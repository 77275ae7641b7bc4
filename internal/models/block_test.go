package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockMarshalFlattensVariantFields(t *testing.T) {
	b := Block{
		ID:    "b1",
		Type:  BlockHeading,
		Order: 2,
		Data:  HeadingData{Level: 3, Content: "Hello"},
	}

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "b1", fields["id"])
	assert.Equal(t, "heading", fields["type"])
	assert.Equal(t, float64(2), fields["order"])
	assert.Equal(t, float64(3), fields["level"])
	assert.Equal(t, "Hello", fields["content"])
	assert.NotContains(t, fields, "data")
}

func TestBlockUnmarshalRoundTrip(t *testing.T) {
	cases := []Block{
		{ID: "t", Type: BlockText, Order: 0, Data: TextData{Content: "plain"}},
		{ID: "h", Type: BlockHeading, Order: 1, Data: HeadingData{Level: 1, Content: "top"}},
		{ID: "i", Type: BlockImage, Order: 2, Data: ImageData{
			URL:        "https://x/img.png",
			URLs:       map[string]string{"thumbnail": "https://x/t.png"},
			Alt:        "alt",
			Dimensions: &Dimensions{Width: 10, Height: 20},
		}},
		{ID: "l", Type: BlockList, Order: 3, Data: ListData{Items: []string{"a", "b"}, Ordered: true}},
		{ID: "q", Type: BlockQuote, Order: 4, Data: QuoteData{Content: "said", Author: "someone"}},
		{ID: "a", Type: BlockAction, Order: 5, Data: ActionData{
			ActionType: "button", Label: "Go", URL: "https://x", OpenInNewTab: true,
		}},
		{ID: "v", Type: BlockVideo, Order: 6, Data: VideoData{URL: "https://x/v", Caption: "clip"}},
	}

	for _, want := range cases {
		t.Run(string(want.Type), func(t *testing.T) {
			raw, err := json.Marshal(want)
			require.NoError(t, err)

			var got Block
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, want, got)
		})
	}
}

func TestBlockUnmarshalRejectsUnknownType(t *testing.T) {
	var b Block
	err := json.Unmarshal([]byte(`{"id":"x","type":"table","order":0}`), &b)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestParseBlockDataEmptyPayload(t *testing.T) {
	data, err := ParseBlockData(BlockText, nil)
	require.NoError(t, err)
	assert.Equal(t, TextData{}, data)
}

func TestValidation(t *testing.T) {
	assert.NoError(t, HeadingData{Level: 1, Content: "x"}.Validate())
	assert.NoError(t, HeadingData{Level: 6}.Validate())
	assert.ErrorIs(t, HeadingData{Level: 0}.Validate(), ErrInvalid)
	assert.ErrorIs(t, HeadingData{Level: 7}.Validate(), ErrInvalid)

	assert.NoError(t, ActionData{ActionType: "link", URL: "https://x"}.Validate())
	assert.ErrorIs(t, ActionData{ActionType: "popup", URL: "https://x"}.Validate(), ErrInvalid)
	assert.ErrorIs(t, ActionData{ActionType: "button"}.Validate(), ErrInvalid)

	assert.ErrorIs(t, ImageData{}.Validate(), ErrInvalid)
	assert.ErrorIs(t, VideoData{}.Validate(), ErrInvalid)

	assert.NoError(t, ValidateSlug("about-us_2"))
	assert.ErrorIs(t, ValidateSlug(""), ErrInvalid)
	assert.ErrorIs(t, ValidateSlug("no spaces"), ErrInvalid)
	assert.ErrorIs(t, ValidateSlug("no/slash"), ErrInvalid)
}

func TestBlockPatchMergesOnlySetFields(t *testing.T) {
	original := ImageData{
		URL:        "https://x/full.png",
		URLs:       map[string]string{"original": "https://x/full.png"},
		Alt:        "before",
		Caption:    "old",
		Dimensions: &Dimensions{Width: 100, Height: 50},
	}

	alt := "after"
	merged, err := BlockPatch{Alt: &alt}.Apply(original)
	require.NoError(t, err)

	img := merged.(ImageData)
	assert.Equal(t, "after", img.Alt)
	assert.Equal(t, "https://x/full.png", img.URL)
	assert.Equal(t, "old", img.Caption)
	assert.Equal(t, original.URLs, img.URLs)
	assert.Equal(t, original.Dimensions, img.Dimensions)
}

func TestBlockPatchValidatesResult(t *testing.T) {
	level := 12
	_, err := BlockPatch{Level: &level}.Apply(HeadingData{Level: 2, Content: "x"})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestBlockPatchIgnoresForeignFields(t *testing.T) {
	level := 4
	merged, err := BlockPatch{Level: &level}.Apply(TextData{Content: "keep"})
	require.NoError(t, err)
	assert.Equal(t, TextData{Content: "keep"}, merged)
}

func TestPageCloneIsDeep(t *testing.T) {
	p := Page{
		ID:   "p",
		Slug: "s",
		Sections: []Section{{
			ID: "s1",
			Blocks: []Block{{
				ID:   "b1",
				Type: BlockList,
				Data: ListData{Items: []string{"a"}},
			}},
		}},
	}

	clone := p.Clone()
	clone.Sections[0].Title = "changed"
	data := clone.Sections[0].Blocks[0].Data.(ListData)
	data.Items[0] = "mutated"

	assert.Empty(t, p.Sections[0].Title)
	assert.Equal(t, "a", p.Sections[0].Blocks[0].Data.(ListData).Items[0])
}

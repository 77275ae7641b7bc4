package models

// BlockPatch is a partial update for a block. Nil fields are left untouched,
// mirroring the read-merge-rewrite semantics of the persisted data blob:
// updating one field never erases its siblings.
type BlockPatch struct {
	Order        *int              `json:"order"`
	Content      *string           `json:"content"`
	Level        *int              `json:"level"`
	URL          *string           `json:"url"`
	URLs         map[string]string `json:"urls"`
	Alt          *string           `json:"alt"`
	Caption      *string           `json:"caption"`
	Dimensions   *Dimensions       `json:"dimensions"`
	Items        []string          `json:"items"`
	Ordered      *bool             `json:"ordered"`
	Author       *string           `json:"author"`
	ActionType   *string           `json:"actionType"`
	Label        *string           `json:"label"`
	Style        *string           `json:"style"`
	OpenInNewTab *bool             `json:"openInNewTab"`
}

// Apply merges the patch onto the given variant and returns the merged data.
// Fields that do not belong to the variant are ignored. The result is
// validated so a patch cannot move a block into an invalid state.
func (p BlockPatch) Apply(data BlockData) (BlockData, error) {
	var merged BlockData
	switch d := data.(type) {
	case TextData:
		if p.Content != nil {
			d.Content = *p.Content
		}
		merged = d
	case HeadingData:
		if p.Level != nil {
			d.Level = *p.Level
		}
		if p.Content != nil {
			d.Content = *p.Content
		}
		merged = d
	case ImageData:
		if p.URL != nil {
			d.URL = *p.URL
		}
		if p.URLs != nil {
			d.URLs = p.URLs
		}
		if p.Alt != nil {
			d.Alt = *p.Alt
		}
		if p.Caption != nil {
			d.Caption = *p.Caption
		}
		if p.Dimensions != nil {
			d.Dimensions = p.Dimensions
		}
		merged = d
	case ListData:
		if p.Items != nil {
			d.Items = p.Items
		}
		if p.Ordered != nil {
			d.Ordered = *p.Ordered
		}
		merged = d
	case QuoteData:
		if p.Content != nil {
			d.Content = *p.Content
		}
		if p.Author != nil {
			d.Author = *p.Author
		}
		merged = d
	case ActionData:
		if p.ActionType != nil {
			d.ActionType = *p.ActionType
		}
		if p.Label != nil {
			d.Label = *p.Label
		}
		if p.URL != nil {
			d.URL = *p.URL
		}
		if p.Style != nil {
			d.Style = *p.Style
		}
		if p.OpenInNewTab != nil {
			d.OpenInNewTab = *p.OpenInNewTab
		}
		merged = d
	case VideoData:
		if p.URL != nil {
			d.URL = *p.URL
		}
		if p.Caption != nil {
			d.Caption = *p.Caption
		}
		merged = d
	default:
		merged = data
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

package entity

import "time"

// DbImage is a generated or edited image owned by a user.
type DbImage struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UserID           string    `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	URL              string    `gorm:"column:url;type:varchar(2048);not null" json:"url"`
	Prompt           *string   `gorm:"column:prompt;type:text" json:"prompt,omitempty"`
	Style            *string   `gorm:"column:style;type:varchar(100)" json:"style,omitempty"`
	IsEdited         bool      `gorm:"column:is_edited;not null;default:false" json:"is_edited"`
	EditInstructions *string   `gorm:"column:edit_instructions;type:text" json:"edit_instructions,omitempty"`
	OriginalImageID  *string   `gorm:"column:original_image_id;type:varchar(36)" json:"original_image_id,omitempty"`
}

// TableName 指定表名。
func (DbImage) TableName() string {
	return "image"
}

const (
	ImageFilterAll       = "all"
	ImageFilterGenerated = "generated"
	ImageFilterEdited    = "edited"
)

// ImageQuery lists a user's gallery.
type ImageQuery struct {
	BaseParams
	UserID string `json:"-" form:"-"`
	Filter string `json:"filter" form:"filter" query:"filter"`
}

// ImageListResponse wraps a gallery page.
type ImageListResponse struct {
	Images []DbImage `json:"images"`
	Meta   *Meta     `json:"meta"`
}

// GenerateImageRequest is the generation form payload.
type GenerateImageRequest struct {
	Prompt            string `json:"prompt"`
	StyleCategory     string `json:"style_category"`
	Style             string `json:"style"`
	CustomStyle       string `json:"custom_style"`
	ReferenceTitle    string `json:"reference_title"`
	ReferenceImageURL string `json:"reference_image_url"`
}

// EditImageRequest is the edit form payload. SourceImage is a URL or a data URL.
type EditImageRequest struct {
	SourceImage        string `json:"source_image"`
	EditType           string `json:"edit_type"`
	Option             string `json:"option"`
	CustomInstructions string `json:"custom_instructions"`
}

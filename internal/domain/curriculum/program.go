package curriculum

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PacingWeekly    = "weekly"
	PacingSelfPaced = "self_paced"
)

// Program holds the creator-facing metadata that frames a generated curriculum.
type Program struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string    `gorm:"column:title;not null" json:"title"`
	Description    string    `gorm:"column:description;type:text" json:"description"`
	TargetAudience string    `gorm:"column:target_audience;type:text" json:"target_audience"`
	Transformation string    `gorm:"column:transformation;type:text" json:"transformation"`
	DurationWeeks  int       `gorm:"column:duration_weeks;not null;default:4" json:"duration_weeks"`
	PacingMode     string    `gorm:"column:pacing_mode;not null;default:weekly" json:"pacing_mode"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (Program) TableName() string { return "program" }

const (
	ContentTypeVideo    = "video"
	ContentTypeDocument = "document"
)

// ContentItem is one unit of already-extracted source material attached to a program.
// A nil or blank Text means the item has no usable text.
type ContentItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"content_id"`
	ProgramID   uuid.UUID `gorm:"type:uuid;not null;index" json:"program_id"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	Text        *string   `gorm:"column:text;type:text" json:"text,omitempty"`
	ContentType string    `gorm:"column:content_type;not null" json:"content_type"`
	Position    int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (ContentItem) TableName() string { return "program_content" }

// UsableText returns the trimmed text, or "" when there is none.
func (c *ContentItem) UsableText() string {
	if c == nil || c.Text == nil {
		return ""
	}
	return strings.TrimSpace(*c.Text)
}

// EmbeddingInput returns the text an item is embedded and clustered by. Documents need
// text; a video without a transcript falls back to its title.
func (c *ContentItem) EmbeddingInput() (string, bool) {
	if c == nil {
		return "", false
	}
	if text := c.UsableText(); text != "" {
		return text, true
	}
	if c.ContentType == ContentTypeDocument {
		return "", false
	}
	title := strings.TrimSpace(c.Title)
	return title, title != ""
}

func ValidContentType(t string) bool {
	return t == ContentTypeVideo || t == ContentTypeDocument
}

package curriculum

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionWatch   = "watch"
	ActionRead    = "read"
	ActionDo      = "do"
	ActionReflect = "reflect"
)

func ValidActionType(t string) bool {
	switch t {
	case ActionWatch, ActionRead, ActionDo, ActionReflect:
		return true
	}
	return false
}

// CurriculumDraft is the generated week/session/action tree, before persistence.
type CurriculumDraft struct {
	ProgramID     string      `json:"program_id" yaml:"program_id"`
	Title         string      `json:"title" yaml:"title"`
	Description   string      `json:"description" yaml:"description"`
	PacingMode    string      `json:"pacing_mode" yaml:"pacing_mode"`
	DurationWeeks int         `json:"duration_weeks" yaml:"duration_weeks"`
	Weeks         []DraftWeek `json:"weeks" yaml:"weeks"`
}

type DraftWeek struct {
	Title      string         `json:"title" yaml:"title"`
	Summary    string         `json:"summary" yaml:"summary"`
	WeekNumber int            `json:"week_number" yaml:"week_number"`
	Sessions   []DraftSession `json:"sessions" yaml:"sessions"`
}

type DraftSession struct {
	Title        string        `json:"title" yaml:"title"`
	Summary      string        `json:"summary" yaml:"summary"`
	KeyTakeaways []string      `json:"key_takeaways" yaml:"key_takeaways"`
	OrderIndex   int           `json:"order_index" yaml:"order_index"`
	Actions      []DraftAction `json:"actions" yaml:"actions"`
}

type DraftAction struct {
	Title            string  `json:"title" yaml:"title"`
	Type             string  `json:"type" yaml:"type"`
	Instructions     string  `json:"instructions" yaml:"instructions"`
	ReflectionPrompt *string `json:"reflection_prompt,omitempty" yaml:"reflection_prompt,omitempty"`
	ContentRef       *string `json:"content_ref,omitempty" yaml:"content_ref,omitempty"`
	OrderIndex       int     `json:"order_index" yaml:"order_index"`
}

// Counts returns the number of weeks, sessions and actions in the draft.
func (d *CurriculumDraft) Counts() (weeks, sessions, actions int) {
	if d == nil {
		return 0, 0, 0
	}
	for _, w := range d.Weeks {
		weeks++
		for _, s := range w.Sessions {
			sessions++
			actions += len(s.Actions)
		}
	}
	return weeks, sessions, actions
}

// CurriculumDraftRecord keeps the validated draft JSON of each successful run.
type CurriculumDraftRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID uuid.UUID      `gorm:"type:uuid;not null;index" json:"program_id"`
	JobID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	Draft     datatypes.JSON `gorm:"column:draft;type:jsonb;not null" json:"draft"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (CurriculumDraftRecord) TableName() string { return "curriculum_draft" }

type Week struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"program_id"`
	DraftID    uuid.UUID  `gorm:"type:uuid;not null" json:"draft_id"`
	WeekNumber int        `gorm:"column:week_number;not null" json:"week_number"`
	Title      string     `gorm:"column:title;not null" json:"title"`
	Summary    string     `gorm:"column:summary;type:text" json:"summary"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	Sessions   []*Session `gorm:"-" json:"sessions,omitempty"`
}

func (Week) TableName() string { return "program_week" }

type Session struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"program_id"`
	WeekID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"week_id"`
	Title        string         `gorm:"column:title;not null" json:"title"`
	Summary      string         `gorm:"column:summary;type:text" json:"summary"`
	KeyTakeaways datatypes.JSON `gorm:"column:key_takeaways;type:jsonb" json:"key_takeaways"`
	OrderIndex   int            `gorm:"column:order_index;not null" json:"order_index"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	Actions      []*Action      `gorm:"-" json:"actions,omitempty"`
}

func (Session) TableName() string { return "program_session" }

type Action struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID        uuid.UUID `gorm:"type:uuid;not null;index" json:"program_id"`
	SessionID        uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	Title            string    `gorm:"column:title;not null" json:"title"`
	Type             string    `gorm:"column:type;not null" json:"type"`
	Instructions     string    `gorm:"column:instructions;type:text" json:"instructions"`
	ReflectionPrompt *string   `gorm:"column:reflection_prompt;type:text" json:"reflection_prompt,omitempty"`
	ContentRef       *string   `gorm:"column:content_ref" json:"content_ref,omitempty"`
	OrderIndex       int       `gorm:"column:order_index;not null" json:"order_index"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
}

func (Action) TableName() string { return "program_action" }

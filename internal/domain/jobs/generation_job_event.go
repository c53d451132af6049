package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobEventCreated   = "created"
	JobEventProgress  = "progress"
	JobEventFailed    = "failed"
	JobEventSucceeded = "succeeded"
)

// GenerationJobEvent is an append-only ledger of job transitions, in the order they were written.
type GenerationJobEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	ProgramID uuid.UUID      `gorm:"type:uuid;not null;index" json:"program_id"`
	Kind      string         `gorm:"column:kind;not null" json:"kind"`
	Status    string         `gorm:"column:status;not null" json:"status"`
	Stage     string         `gorm:"column:stage;not null" json:"stage"`
	Progress  int            `gorm:"column:progress;not null" json:"progress"`
	Message   string         `gorm:"column:message;type:text" json:"message,omitempty"`
	Data      datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (GenerationJobEvent) TableName() string { return "generation_job_event" }

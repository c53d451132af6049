package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const JobTypeCurriculumGenerate = "curriculum_generate"

const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

const (
	StageQueued     = "queued"
	StageEmbedding  = "embedding"
	StageClustering = "clustering"
	StageAnalyzing  = "analyzing"
	StageGenerating = "generating"
	StageValidating = "validating"
	StagePersisting = "persisting"
	StageComplete   = "complete"
)

// StageOrder is the only legal forward sequence of stages.
var StageOrder = []string{
	StageQueued,
	StageEmbedding,
	StageClustering,
	StageAnalyzing,
	StageGenerating,
	StageValidating,
	StagePersisting,
	StageComplete,
}

// StageIndex returns the position of stage in StageOrder, or -1.
func StageIndex(stage string) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

var statusRank = map[string]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusCompleted:  2,
	StatusFailed:     2,
}

func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

func IsActive(status string) bool {
	return status == StatusPending || status == StatusProcessing
}

// CanTransition reports whether status may move from -> to.
func CanTransition(from, to string) bool {
	if IsTerminal(from) {
		return false
	}
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	return ok1 && ok2 && tr >= fr
}

// ActiveStatuses are the statuses that count toward the one-active-job-per-program rule.
var ActiveStatuses = []string{StatusPending, StatusProcessing}

type GenerationJob struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"program_id"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Stage       string         `gorm:"column:stage;not null" json:"stage"`
	Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Message     string         `gorm:"column:message" json:"message,omitempty"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	Result      datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (GenerationJob) TableName() string { return "generation_job" }

// JobSnapshot is the externally visible view of a job, as returned by start and poll.
type JobSnapshot struct {
	JobID       uuid.UUID  `json:"job_id"`
	ProgramID   uuid.UUID  `json:"program_id"`
	Status      string     `json:"status"`
	Stage       string     `json:"stage"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (j *GenerationJob) Snapshot() JobSnapshot {
	if j == nil {
		return JobSnapshot{}
	}
	s := JobSnapshot{
		JobID:       j.ID,
		ProgramID:   j.ProgramID,
		Status:      j.Status,
		Stage:       j.Stage,
		Progress:    j.Progress,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Error != "" {
		msg := j.Error
		s.Error = &msg
	}
	return s
}

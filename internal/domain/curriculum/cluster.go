package curriculum

import (
	"time"

	"github.com/google/uuid"
)

type Cluster struct {
	ClusterID  int      `json:"cluster_id" yaml:"cluster_id"`
	ContentIDs []string `json:"content_ids" yaml:"content_ids"`
}

// ClusterAssignment records which cluster a content item landed in on the most recent run.
type ClusterAssignment struct {
	ProgramID uuid.UUID `gorm:"type:uuid;primaryKey" json:"program_id"`
	ContentID uuid.UUID `gorm:"type:uuid;primaryKey" json:"content_id"`
	ClusterID int       `gorm:"column:cluster_id;not null" json:"cluster_id"`
	JobID     uuid.UUID `gorm:"type:uuid;not null" json:"job_id"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ClusterAssignment) TableName() string { return "content_cluster_assignment" }

package curriculum

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type ClusterAssignmentRepo interface {
	Upsert(dbc dbctx.Context, rows []*types.ClusterAssignment) error
	ListByProgram(dbc dbctx.Context, programID uuid.UUID) ([]*types.ClusterAssignment, error)
}

type clusterAssignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClusterAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) ClusterAssignmentRepo {
	return &clusterAssignmentRepo{db: db, log: baseLog.With("repo", "ClusterAssignmentRepo")}
}

func (r *clusterAssignmentRepo) Upsert(dbc dbctx.Context, rows []*types.ClusterAssignment) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now()
	for _, row := range rows {
		row.UpdatedAt = now
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "program_id"}, {Name: "content_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cluster_id", "job_id", "updated_at"}),
		}).
		CreateInBatches(rows, 200).Error
}

func (r *clusterAssignmentRepo) ListByProgram(dbc dbctx.Context, programID uuid.UUID) ([]*types.ClusterAssignment, error) {
	var out []*types.ClusterAssignment
	err := dbc.DB(r.db).
		Where("program_id = ?", programID).
		Order("cluster_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

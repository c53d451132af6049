package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type GenerationJobEventRepo interface {
	Append(dbc dbctx.Context, ev *types.GenerationJobEvent) error
	ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.GenerationJobEvent, error)
}

type generationJobEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationJobEventRepo(db *gorm.DB, baseLog *logger.Logger) GenerationJobEventRepo {
	return &generationJobEventRepo{db: db, log: baseLog.With("repo", "GenerationJobEventRepo")}
}

func (r *generationJobEventRepo) Append(dbc dbctx.Context, ev *types.GenerationJobEvent) error {
	if ev == nil || ev.JobID == uuid.Nil {
		return nil
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	return dbc.DB(r.db).Create(ev).Error
}

func (r *generationJobEventRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.GenerationJobEvent, error) {
	var out []*types.GenerationJobEvent
	if jobID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

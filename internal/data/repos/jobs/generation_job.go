package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/curriculum-backend/internal/pkg/errors"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

// ErrActiveJobExists is returned by Create when the program already has a PENDING/PROCESSING job.
var ErrActiveJobExists = fmt.Errorf("%w: an active generation job already exists for this program", pkgerrors.ErrConflict)

type GenerationJobRepo interface {
	Create(dbc dbctx.Context, job *types.GenerationJob) (*types.GenerationJob, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationJob, error)
	GetLatestForProgram(dbc dbctx.Context, programID uuid.UUID) (*types.GenerationJob, error)
	GetActiveForProgram(dbc dbctx.Context, programID uuid.UUID) (*types.GenerationJob, error)
	ClaimNextPending(dbc dbctx.Context) (*types.GenerationJob, error)
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	AdvanceProgress(dbc dbctx.Context, id uuid.UUID, stage string, progress int, message string) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	FailStale(dbc dbctx.Context, heartbeatBefore time.Time, message string) ([]*types.GenerationJob, error)
}

type generationJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationJobRepo(db *gorm.DB, baseLog *logger.Logger) GenerationJobRepo {
	return &generationJobRepo{
		db:  db,
		log: baseLog.With("repo", "GenerationJobRepo"),
	}
}

// Create inserts a new job. The partial unique index on active jobs turns a
// concurrent second insert into ErrActiveJobExists.
func (r *generationJobRepo) Create(dbc dbctx.Context, job *types.GenerationJob) (*types.GenerationJob, error) {
	if job == nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	now := time.Now()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.JobType == "" {
		job.JobType = jobdomain.JobTypeCurriculumGenerate
	}
	if job.Status == "" {
		job.Status = jobdomain.StatusPending
	}
	if job.Stage == "" {
		job.Stage = jobdomain.StageQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	if err := dbc.DB(r.db).Create(job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrActiveJobExists
		}
		return nil, err
	}
	return job, nil
}

func (r *generationJobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationJob, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.ErrNotFound
	}
	var job types.GenerationJob
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, pkgerrors.ErrNotFound
	}
	return &job, nil
}

func (r *generationJobRepo) GetLatestForProgram(dbc dbctx.Context, programID uuid.UUID) (*types.GenerationJob, error) {
	if programID == uuid.Nil {
		return nil, nil
	}
	var job types.GenerationJob
	err := dbc.DB(r.db).
		Where("program_id = ?", programID).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *generationJobRepo) GetActiveForProgram(dbc dbctx.Context, programID uuid.UUID) (*types.GenerationJob, error) {
	if programID == uuid.Nil {
		return nil, nil
	}
	var job types.GenerationJob
	err := dbc.DB(r.db).
		Where("program_id = ? AND status IN ?", programID, jobdomain.ActiveStatuses).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

// ClaimNextPending moves the oldest PENDING job to PROCESSING and returns it.
// The claim is a conditional update, so two workers racing for the same row
// cannot both win. Returns nil when nothing is runnable.
func (r *generationJobRepo) ClaimNextPending(dbc dbctx.Context) (*types.GenerationJob, error) {
	const maxRaces = 3
	for i := 0; i < maxRaces; i++ {
		var job types.GenerationJob
		err := dbc.DB(r.db).
			Where("status = ?", jobdomain.StatusPending).
			Order("created_at ASC").
			Limit(1).
			Find(&job).Error
		if err != nil {
			return nil, err
		}
		if job.ID == uuid.Nil {
			return nil, nil
		}

		now := time.Now()
		res := dbc.DB(r.db).
			Model(&types.GenerationJob{}).
			Where("id = ? AND status = ?", job.ID, jobdomain.StatusPending).
			Updates(map[string]interface{}{
				"status":       jobdomain.StatusProcessing,
				"attempts":     gorm.Expr("attempts + 1"),
				"started_at":   now,
				"heartbeat_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		job.Status = jobdomain.StatusProcessing
		job.Attempts++
		job.StartedAt = &now
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		return &job, nil
	}
	return nil, nil
}

func (r *generationJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := dbc.DB(r.db).
		Model(&types.GenerationJob{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AdvanceProgress writes stage/progress only while the job is PROCESSING and the
// stored progress is not already ahead, so a poller never sees progress go backwards.
func (r *generationJobRepo) AdvanceProgress(dbc dbctx.Context, id uuid.UUID, stage string, progress int, message string) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	now := time.Now()
	res := dbc.DB(r.db).
		Model(&types.GenerationJob{}).
		Where("id = ? AND status = ? AND progress <= ?", id, jobdomain.StatusProcessing, progress).
		Updates(map[string]interface{}{
			"stage":        stage,
			"progress":     progress,
			"message":      message,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generationJobRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return dbc.DB(r.db).
		Model(&types.GenerationJob{}).
		Where("id = ? AND status = ?", id, jobdomain.StatusProcessing).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

// FailStale marks PROCESSING jobs whose heartbeat is older than heartbeatBefore as FAILED
// and returns the rows it changed.
func (r *generationJobRepo) FailStale(dbc dbctx.Context, heartbeatBefore time.Time, message string) ([]*types.GenerationJob, error) {
	var stale []*types.GenerationJob
	err := dbc.DB(r.db).
		Where("status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?", jobdomain.StatusProcessing, heartbeatBefore).
		Find(&stale).Error
	if err != nil {
		return nil, err
	}
	out := make([]*types.GenerationJob, 0, len(stale))
	for _, job := range stale {
		now := time.Now()
		res := dbc.DB(r.db).
			Model(&types.GenerationJob{}).
			Where("id = ? AND status = ? AND heartbeat_at < ?", job.ID, jobdomain.StatusProcessing, heartbeatBefore).
			Updates(map[string]interface{}{
				"status":       jobdomain.StatusFailed,
				"error":        message,
				"completed_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return out, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		job.Status = jobdomain.StatusFailed
		job.Error = message
		job.CompletedAt = &now
		out = append(out, job)
	}
	if len(out) > 0 {
		r.log.Warn("Failed stale generation jobs", "count", len(out))
	}
	return out, nil
}

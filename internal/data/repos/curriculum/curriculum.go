package curriculum

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/curriculum-backend/internal/pkg/errors"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

// ErrJobNotProcessing is returned by ReplaceCurriculum when the writing job has already
// been finished by someone else. Nothing is written in that case.
var ErrJobNotProcessing = fmt.Errorf("%w: generation job is no longer processing", pkgerrors.ErrConflict)

type CurriculumRepo interface {
	// ReplaceCurriculum destructively replaces the program's weeks, sessions and actions
	// with the draft's tree and records the draft itself, in one transaction. The
	// transaction first touches jobID's row and only proceeds while it is PROCESSING.
	ReplaceCurriculum(dbc dbctx.Context, programID, jobID uuid.UUID, draft *types.CurriculumDraft) (*types.CurriculumDraftRecord, error)
	GetStructure(dbc dbctx.Context, programID uuid.UUID) ([]*types.Week, error)
	GetLatestDraft(dbc dbctx.Context, programID uuid.UUID) (*types.CurriculumDraftRecord, error)
}

type curriculumRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCurriculumRepo(db *gorm.DB, baseLog *logger.Logger) CurriculumRepo {
	return &curriculumRepo{db: db, log: baseLog.With("repo", "CurriculumRepo")}
}

func (r *curriculumRepo) ReplaceCurriculum(dbc dbctx.Context, programID, jobID uuid.UUID, draft *types.CurriculumDraft) (*types.CurriculumDraftRecord, error) {
	if draft == nil {
		return nil, fmt.Errorf("nil draft")
	}
	raw, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	now := time.Now()
	record := &types.CurriculumDraftRecord{
		ID:        uuid.New(),
		ProgramID: programID,
		JobID:     jobID,
		Draft:     datatypes.JSON(raw),
		CreatedAt: now,
	}

	var (
		weeks    []*types.Week
		sessions []*types.Session
		actions  []*types.Action
	)
	for _, w := range draft.Weeks {
		week := &types.Week{
			ID:         uuid.New(),
			ProgramID:  programID,
			DraftID:    record.ID,
			WeekNumber: w.WeekNumber,
			Title:      w.Title,
			Summary:    w.Summary,
			CreatedAt:  now,
		}
		weeks = append(weeks, week)
		for _, s := range w.Sessions {
			takeaways, _ := json.Marshal(s.KeyTakeaways)
			session := &types.Session{
				ID:           uuid.New(),
				ProgramID:    programID,
				WeekID:       week.ID,
				Title:        s.Title,
				Summary:      s.Summary,
				KeyTakeaways: datatypes.JSON(takeaways),
				OrderIndex:   s.OrderIndex,
				CreatedAt:    now,
			}
			sessions = append(sessions, session)
			for _, a := range s.Actions {
				actions = append(actions, &types.Action{
					ID:               uuid.New(),
					ProgramID:        programID,
					SessionID:        session.ID,
					Title:            a.Title,
					Type:             a.Type,
					Instructions:     a.Instructions,
					ReflectionPrompt: a.ReflectionPrompt,
					ContentRef:       a.ContentRef,
					OrderIndex:       a.OrderIndex,
					CreatedAt:        now,
				})
			}
		}
	}

	err = dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		// Row lock on the job; a concurrent stale sweep waits for this commit.
		res := tx.Model(&types.GenerationJob{}).
			Where("id = ? AND status = ?", jobID, jobdomain.StatusProcessing).
			Update("heartbeat_at", now)
		if res.Error != nil {
			return fmt.Errorf("check job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrJobNotProcessing
		}
		for _, model := range []any{&types.Action{}, &types.Session{}, &types.Week{}} {
			if err := tx.Where("program_id = ?", programID).Delete(model).Error; err != nil {
				return fmt.Errorf("clear prior curriculum: %w", err)
			}
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("save draft: %w", err)
		}
		if len(weeks) > 0 {
			if err := tx.CreateInBatches(weeks, 100).Error; err != nil {
				return fmt.Errorf("create weeks: %w", err)
			}
		}
		if len(sessions) > 0 {
			if err := tx.CreateInBatches(sessions, 100).Error; err != nil {
				return fmt.Errorf("create sessions: %w", err)
			}
		}
		if len(actions) > 0 {
			if err := tx.CreateInBatches(actions, 200).Error; err != nil {
				return fmt.Errorf("create actions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetStructure loads the materialized tree ordered by week number, then order index.
func (r *curriculumRepo) GetStructure(dbc dbctx.Context, programID uuid.UUID) ([]*types.Week, error) {
	var weeks []*types.Week
	q := dbc.DB(r.db)
	if err := q.Where("program_id = ?", programID).Order("week_number ASC").Find(&weeks).Error; err != nil {
		return nil, err
	}
	if len(weeks) == 0 {
		return weeks, nil
	}
	var sessions []*types.Session
	if err := q.Where("program_id = ?", programID).Order("order_index ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	var actions []*types.Action
	if err := q.Where("program_id = ?", programID).Order("order_index ASC").Find(&actions).Error; err != nil {
		return nil, err
	}

	bySession := make(map[uuid.UUID][]*types.Action, len(sessions))
	for _, a := range actions {
		bySession[a.SessionID] = append(bySession[a.SessionID], a)
	}
	byWeek := make(map[uuid.UUID][]*types.Session, len(weeks))
	for _, s := range sessions {
		s.Actions = bySession[s.ID]
		byWeek[s.WeekID] = append(byWeek[s.WeekID], s)
	}
	for _, w := range weeks {
		w.Sessions = byWeek[w.ID]
	}
	return weeks, nil
}

func (r *curriculumRepo) GetLatestDraft(dbc dbctx.Context, programID uuid.UUID) (*types.CurriculumDraftRecord, error) {
	var rec types.CurriculumDraftRecord
	err := dbc.DB(r.db).
		Where("program_id = ?", programID).
		Order("created_at DESC").
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		return nil, nil
	}
	return &rec, nil
}

package curriculum

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type ContentItemRepo interface {
	ListByProgram(dbc dbctx.Context, programID uuid.UUID) ([]*types.ContentItem, error)
	ReplaceForProgram(dbc dbctx.Context, programID uuid.UUID, items []*types.ContentItem) ([]*types.ContentItem, error)
}

type contentItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentItemRepo(db *gorm.DB, baseLog *logger.Logger) ContentItemRepo {
	return &contentItemRepo{db: db, log: baseLog.With("repo", "ContentItemRepo")}
}

func (r *contentItemRepo) ListByProgram(dbc dbctx.Context, programID uuid.UUID) ([]*types.ContentItem, error) {
	var out []*types.ContentItem
	if programID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("program_id = ?", programID).
		Order("position ASC, created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceForProgram swaps the program's attached content for items, keeping any
// caller-supplied ids so stored embeddings remain reusable.
func (r *contentItemRepo) ReplaceForProgram(dbc dbctx.Context, programID uuid.UUID, items []*types.ContentItem) ([]*types.ContentItem, error) {
	now := time.Now()
	for i, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.ProgramID = programID
		it.Position = i
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
	}
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("program_id = ?", programID).Delete(&types.ContentItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.CreateInBatches(items, 100).Error
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

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

type EmbeddingRepo interface {
	GetByContentIDs(dbc dbctx.Context, model string, contentIDs []uuid.UUID) ([]*types.ContentEmbedding, error)
	Upsert(dbc dbctx.Context, rows []*types.ContentEmbedding) error
}

type embeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingRepo {
	return &embeddingRepo{db: db, log: baseLog.With("repo", "EmbeddingRepo")}
}

func (r *embeddingRepo) GetByContentIDs(dbc dbctx.Context, model string, contentIDs []uuid.UUID) ([]*types.ContentEmbedding, error) {
	var out []*types.ContentEmbedding
	if len(contentIDs) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("model = ? AND content_id IN ?", model, contentIDs).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *embeddingRepo) Upsert(dbc dbctx.Context, rows []*types.ContentEmbedding) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_id"}, {Name: "model"}},
			DoUpdates: clause.AssignmentColumns([]string{"program_id", "text_hash", "dim", "vector", "updated_at"}),
		}).
		CreateInBatches(rows, 100).Error
}

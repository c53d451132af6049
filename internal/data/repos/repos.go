package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/curriculum-backend/internal/data/repos/curriculum"
	"github.com/yungbote/curriculum-backend/internal/data/repos/jobs"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type ProgramRepo = curriculum.ProgramRepo
type ContentItemRepo = curriculum.ContentItemRepo
type EmbeddingRepo = curriculum.EmbeddingRepo
type ClusterAssignmentRepo = curriculum.ClusterAssignmentRepo
type CurriculumRepo = curriculum.CurriculumRepo

type GenerationJobRepo = jobs.GenerationJobRepo
type GenerationJobEventRepo = jobs.GenerationJobEventRepo

var (
	ErrActiveJobExists  = jobs.ErrActiveJobExists
	ErrJobNotProcessing = curriculum.ErrJobNotProcessing
)

func NewProgramRepo(db *gorm.DB, baseLog *logger.Logger) ProgramRepo {
	return curriculum.NewProgramRepo(db, baseLog)
}

func NewContentItemRepo(db *gorm.DB, baseLog *logger.Logger) ContentItemRepo {
	return curriculum.NewContentItemRepo(db, baseLog)
}

func NewEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingRepo {
	return curriculum.NewEmbeddingRepo(db, baseLog)
}

func NewClusterAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) ClusterAssignmentRepo {
	return curriculum.NewClusterAssignmentRepo(db, baseLog)
}

func NewCurriculumRepo(db *gorm.DB, baseLog *logger.Logger) CurriculumRepo {
	return curriculum.NewCurriculumRepo(db, baseLog)
}

func NewGenerationJobRepo(db *gorm.DB, baseLog *logger.Logger) GenerationJobRepo {
	return jobs.NewGenerationJobRepo(db, baseLog)
}

func NewGenerationJobEventRepo(db *gorm.DB, baseLog *logger.Logger) GenerationJobEventRepo {
	return jobs.NewGenerationJobEventRepo(db, baseLog)
}

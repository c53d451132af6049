package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type Repos struct {
	Program           repos.ProgramRepo
	ContentItem       repos.ContentItemRepo
	Embedding         repos.EmbeddingRepo
	ClusterAssignment repos.ClusterAssignmentRepo
	Curriculum        repos.CurriculumRepo
	GenerationJob     repos.GenerationJobRepo
	GenerationEvent   repos.GenerationJobEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Program:           repos.NewProgramRepo(db, log),
		ContentItem:       repos.NewContentItemRepo(db, log),
		Embedding:         repos.NewEmbeddingRepo(db, log),
		ClusterAssignment: repos.NewClusterAssignmentRepo(db, log),
		Curriculum:        repos.NewCurriculumRepo(db, log),
		GenerationJob:     repos.NewGenerationJobRepo(db, log),
		GenerationEvent:   repos.NewGenerationJobEventRepo(db, log),
	}
}

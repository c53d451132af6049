package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/curriculum-backend/internal/jobs/pipeline/curriculum_generate"
	jobrt "github.com/yungbote/curriculum-backend/internal/jobs/runtime"
	"github.com/yungbote/curriculum-backend/internal/jobs/worker"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/digest"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/draft"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
	"github.com/yungbote/curriculum-backend/internal/services"
)

type Services struct {
	Programs    services.ProgramService
	Generations services.GenerationService
	Notifier    services.JobNotifier
	JobRegistry *jobrt.Registry
	JobWorker   *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) (Services, error) {
	log.Info("Wiring services...")

	notify := services.NewJobNotifier(log, r.GenerationEvent, c.JobBus)

	pipeline := curriculum_generate.New(curriculum_generate.Deps{
		DB:          db,
		Log:         log,
		Programs:    r.Program,
		Content:     r.ContentItem,
		Embeddings:  r.Embedding,
		Assignments: r.ClusterAssignment,
		Curriculum:  r.Curriculum,
		Embedder:    c.Embedder,
		Extractor: digest.NewExtractor(log, c.Provider, c.DigestCache, digest.Config{
			Concurrency: cfg.DigestConcurrency,
		}),
		Generator: draft.NewGenerator(log, c.Provider),
		Schedule:  curriculum_generate.LoadSchedule(log, cfg.PipelineYAML),
		ClusterK:  cfg.ClusterK,
	})

	registry := jobrt.NewRegistry()
	if err := registry.Register(pipeline); err != nil {
		return Services{}, fmt.Errorf("register %s: %w", pipeline.Type(), err)
	}

	w := worker.NewWorker(db, log, r.GenerationJob, registry, notify, worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		StaleAfter:  cfg.JobStaleAfter(),
	})

	return Services{
		Programs:    services.NewProgramService(log, r.Program, r.ContentItem, r.Curriculum),
		Generations: services.NewGenerationService(log, r.Program, r.GenerationJob, notify, w),
		Notifier:    notify,
		JobRegistry: registry,
		JobWorker:   w,
	}, nil
}

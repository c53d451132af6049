package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/curriculum-backend/internal/pkg/errors"
	"github.com/yungbote/curriculum-backend/internal/platform/apierr"
	"github.com/yungbote/curriculum-backend/internal/platform/ctxutil"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

// Dispatcher wakes the job worker after a job is created.
type Dispatcher interface {
	Dispatch()
}

type GenerationService interface {
	// Start returns the program's active job when one exists (existing=true), otherwise
	// creates a PENDING job and hands it to the worker.
	Start(ctx context.Context, programID uuid.UUID) (job *types.GenerationJob, existing bool, err error)
	// Status returns the program's most recent job.
	Status(ctx context.Context, programID uuid.UUID) (*types.GenerationJob, error)
}

type generationService struct {
	log        *logger.Logger
	programs   repos.ProgramRepo
	jobs       repos.GenerationJobRepo
	notify     JobNotifier
	dispatcher Dispatcher
}

func NewGenerationService(baseLog *logger.Logger, programs repos.ProgramRepo, jobs repos.GenerationJobRepo, notify JobNotifier, dispatcher Dispatcher) GenerationService {
	return &generationService{
		log:        baseLog.With("service", "GenerationService"),
		programs:   programs,
		jobs:       jobs,
		notify:     notify,
		dispatcher: dispatcher,
	}
}

func (s *generationService) Start(ctx context.Context, programID uuid.UUID) (*types.GenerationJob, bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.programs.GetByID(dbc, programID); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, false, apierr.NotFound("program_not_found", fmt.Errorf("program %s not found", programID))
		}
		return nil, false, err
	}

	active, err := s.jobs.GetActiveForProgram(dbc, programID)
	if err != nil {
		return nil, false, err
	}
	if active != nil {
		return active, true, nil
	}

	job := &types.GenerationJob{
		ProgramID: programID,
		JobType:   jobdomain.JobTypeCurriculumGenerate,
		Payload:   s.payload(ctx, programID),
	}
	created, err := s.jobs.Create(dbc, job)
	if errors.Is(err, repos.ErrActiveJobExists) {
		// Lost a race with a concurrent Start; return the winner.
		winner, gerr := s.jobs.GetActiveForProgram(dbc, programID)
		if gerr != nil {
			return nil, false, gerr
		}
		if winner != nil {
			return winner, true, nil
		}
		return nil, false, apierr.Conflict("generation_conflict", err)
	}
	if err != nil {
		return nil, false, err
	}

	s.log.Info("Queued curriculum generation", "program_id", programID, "job_id", created.ID)
	if s.notify != nil {
		s.notify.JobCreated(ctx, created)
	}
	if s.dispatcher != nil {
		s.dispatcher.Dispatch()
	}
	return created, false, nil
}

func (s *generationService) Status(ctx context.Context, programID uuid.UUID) (*types.GenerationJob, error) {
	job, err := s.jobs.GetLatestForProgram(dbctx.Context{Ctx: ctx}, programID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierr.NotFound("generation_job_not_found", fmt.Errorf("no generation job for program %s", programID))
	}
	return job, nil
}

func (s *generationService) payload(ctx context.Context, programID uuid.UUID) datatypes.JSON {
	p := map[string]string{"program_id": programID.String()}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			p["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			p["request_id"] = td.RequestID
		}
	}
	b, _ := json.Marshal(p)
	return datatypes.JSON(b)
}

package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/platform/ctxutil"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

// JobNotifier fans job transitions out to the log, the event ledger and, when configured,
// an event bus. Notification failures are logged and never fail the job.
type JobNotifier interface {
	JobCreated(ctx context.Context, job *types.GenerationJob)
	JobProgress(ctx context.Context, job *types.GenerationJob, stage string, progress int, message string)
	JobFailed(ctx context.Context, job *types.GenerationJob, stage string, errorMessage string)
	JobDone(ctx context.Context, job *types.GenerationJob)
}

// EventPublisher delivers job events to out-of-process listeners.
type EventPublisher interface {
	Publish(ctx context.Context, ev *types.GenerationJobEvent) error
}

type jobNotifier struct {
	log    *logger.Logger
	events repos.GenerationJobEventRepo
	bus    EventPublisher
}

// NewJobNotifier builds a notifier. events and bus may be nil.
func NewJobNotifier(baseLog *logger.Logger, events repos.GenerationJobEventRepo, bus EventPublisher) JobNotifier {
	return &jobNotifier{
		log:    baseLog.With("service", "JobNotifier"),
		events: events,
		bus:    bus,
	}
}

func (n *jobNotifier) JobCreated(ctx context.Context, job *types.GenerationJob) {
	if job == nil {
		return
	}
	n.log.Info("Generation job created", "job_id", job.ID, "program_id", job.ProgramID)
	n.emit(ctx, job, jobdomain.JobEventCreated, "", nil)
}

func (n *jobNotifier) JobProgress(ctx context.Context, job *types.GenerationJob, stage string, progress int, message string) {
	if job == nil {
		return
	}
	n.log.Debug("Generation job progress", "job_id", job.ID, "stage", stage, "progress", progress)
	n.emit(ctx, job, jobdomain.JobEventProgress, message, nil)
}

func (n *jobNotifier) JobFailed(ctx context.Context, job *types.GenerationJob, stage string, errorMessage string) {
	if job == nil {
		return
	}
	n.log.Warn("Generation job failed", "job_id", job.ID, "program_id", job.ProgramID, "stage", stage, "error", errorMessage)
	n.emit(ctx, job, jobdomain.JobEventFailed, errorMessage, nil)
}

func (n *jobNotifier) JobDone(ctx context.Context, job *types.GenerationJob) {
	if job == nil {
		return
	}
	n.log.Info("Generation job completed", "job_id", job.ID, "program_id", job.ProgramID)
	n.emit(ctx, job, jobdomain.JobEventSucceeded, "", job.Result)
}

func (n *jobNotifier) emit(ctx context.Context, job *types.GenerationJob, kind, message string, data datatypes.JSON) {
	ev := &types.GenerationJobEvent{
		JobID:     job.ID,
		ProgramID: job.ProgramID,
		Kind:      kind,
		Status:    job.Status,
		Stage:     job.Stage,
		Progress:  job.Progress,
		Message:   message,
		Data:      data,
	}
	if td := ctxutil.GetTraceData(ctx); td != nil && len(ev.Data) == 0 && td.TraceID != "" {
		b, _ := json.Marshal(map[string]string{"trace_id": td.TraceID})
		ev.Data = datatypes.JSON(b)
	}
	if n.events != nil {
		if err := n.events.Append(dbctx.Context{Ctx: ctx}, ev); err != nil {
			n.log.Warn("append job event failed", "job_id", job.ID, "kind", kind, "error", err)
		}
	}
	if n.bus != nil {
		if err := n.bus.Publish(ctx, ev); err != nil {
			n.log.Warn("publish job event failed", "job_id", job.ID, "kind", kind, "error", err)
		}
	}
}

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/jobs/runtime"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
	"github.com/yungbote/curriculum-backend/internal/services"
)

const staleJobMessage = "worker lost: no heartbeat before the stale deadline"

type Config struct {
	Concurrency   int
	PollInterval  time.Duration
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

// Worker claims PENDING generation jobs and runs their handlers. Each run is an error
// boundary: handler errors and panics turn into a FAILED job and never escape.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.GenerationJobRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	cfg      Config

	wake chan struct{}
	wg   sync.WaitGroup
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.GenerationJobRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg,
		wake:     make(chan struct{}, cfg.Concurrency),
	}
}

// Start launches the polling loops and the stale sweep. They stop when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Job worker starting", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go func(slot int) {
			defer w.wg.Done()
			w.loop(ctx, slot)
		}(i)
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.sweepLoop(ctx)
	}()
}

// Wait blocks until every loop started by Start has returned.
func (w *Worker) Wait() { w.wg.Wait() }

// Dispatch nudges an idle loop to claim work now instead of on the next tick.
func (w *Worker) Dispatch() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) loop(ctx context.Context, slot int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
		// Drain everything runnable before waiting again.
		for ctx.Err() == nil {
			ran, err := w.RunOnce(ctx)
			if err != nil {
				w.log.Warn("ClaimNextPending failed", "slot", slot, "error", err)
				break
			}
			if !ran {
				break
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextPending(dbctx.Context{Ctx: ctx})
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify, w.log)
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("", &missingHandlerError{JobType: job.JobType})
		return true, nil
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
				jc.Fail("", &panicError{Val: r})
			}
		}()
		if err := h.Run(jc); err != nil && !jobdomain.IsTerminal(jc.Job.Status) {
			jc.Fail("", err)
		}
	}()
	return true, nil
}

func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.SweepStale(ctx)
		}
	}
}

// SweepStale fails PROCESSING jobs whose heartbeat is older than StaleAfter.
func (w *Worker) SweepStale(ctx context.Context) {
	failed, err := w.repo.FailStale(dbctx.Context{Ctx: ctx}, time.Now().Add(-w.cfg.StaleAfter), staleJobMessage)
	if err != nil {
		w.log.Warn("FailStale failed", "error", err)
	}
	for _, job := range failed {
		if w.notify != nil {
			w.notify.JobFailed(ctx, job, job.Stage, job.Error)
		}
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/observability"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/platform/ctxutil"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
	"github.com/yungbote/curriculum-backend/internal/services"
)

/*
Context is the execution handle for a single claimed generation job.
Pipelines never touch the generation_job row directly; every lifecycle write goes
through Progress, Fail or Succeed so the invariants live in one place:
  - stages only move forward through jobdomain.StageOrder
  - progress never decreases
  - a terminal row (COMPLETED/FAILED) is never overwritten
*/
type Context struct {
	Ctx    context.Context
	DB     *gorm.DB
	Job    *types.GenerationJob
	Repo   repos.GenerationJobRepo
	Notify services.JobNotifier
	Log    *logger.Logger

	payload map[string]any
}

var terminalStatuses = []string{jobdomain.StatusCompleted, jobdomain.StatusFailed}

const (
	terminalWriteAttempts = 3
	terminalWriteBackoff  = 200 * time.Millisecond
)

func NewContext(ctx context.Context, db *gorm.DB, job *types.GenerationJob, repo repos.GenerationJobRepo, notify services.JobNotifier, log *logger.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
		Log:    log,
	}
	if job != nil {
		c.Log = log.With("job_id", job.ID, "program_id", job.ProgramID)
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	td := &ctxutil.TraceData{
		TraceID:   c.payloadString("trace_id"),
		RequestID: c.payloadString("request_id"),
	}
	if c.Job != nil {
		td.JobID = c.Job.ID.String()
		td.ProgramID = c.Job.ProgramID.String()
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, td)
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := c.payloadString(key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) payloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Progress records a non-terminal stage/progress update and reports whether the job is
// still live. It returns false once the row is COMPLETED or FAILED, whoever finished it
// (the stale sweep, another instance); the caller must stop writing results then.
//
// A stage earlier than the current one is rejected and a lower percentage is clamped
// up to the current value.
func (c *Context) Progress(stage string, pct int, msg string) bool {
	if c == nil || c.Job == nil {
		return false
	}
	if jobdomain.IsTerminal(c.Job.Status) {
		return false
	}
	cur := jobdomain.StageIndex(c.Job.Stage)
	next := jobdomain.StageIndex(stage)
	if next < 0 || next < cur {
		c.Log.Warn("ignoring backwards or unknown stage", "from", c.Job.Stage, "to", stage)
		return true
	}
	if pct > 100 {
		pct = 100
	}
	if pct < c.Job.Progress {
		pct = c.Job.Progress
	}

	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, err := c.Repo.AdvanceProgress(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, stage, pct, msg)
		if err != nil {
			c.Log.Warn("progress write failed", "stage", stage, "progress", pct, "error", err)
			return true
		}
		if !ok {
			return !c.syncFinished()
		}
	}

	now := time.Now()
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now

	if c.Notify != nil {
		c.Notify.JobProgress(c.Ctx, c.Job, stage, pct, msg)
	}
	return true
}

// syncFinished reloads the row after a guarded write matched nothing. When the stored
// job is terminal, the in-memory copy takes its status and true is returned.
func (c *Context) syncFinished() bool {
	stored, err := c.Repo.GetByID(dbctx.Context{Ctx: lifecycleCtx(c.Ctx)}, c.Job.ID)
	if err != nil {
		c.Log.Warn("reload job failed", "error", err)
		return false
	}
	if !jobdomain.IsTerminal(stored.Status) {
		return false
	}
	c.Job.Status = stored.Status
	c.Job.Stage = stored.Stage
	c.Job.Error = stored.Error
	c.Job.CompletedAt = stored.CompletedAt
	c.Log.Warn("job finished elsewhere", "status", stored.Status, "error", stored.Error)
	return true
}

// finishRow writes a terminal update, retrying transient errors so the row does not sit
// in PROCESSING until the stale sweep.
func (c *Context) finishRow(updates map[string]interface{}) (bool, error) {
	var err error
	for attempt := 1; attempt <= terminalWriteAttempts; attempt++ {
		var ok bool
		ok, err = c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: lifecycleCtx(c.Ctx)}, c.Job.ID, terminalStatuses, updates)
		if err == nil {
			return ok, nil
		}
		c.Log.Warn("terminal write failed", "attempt", attempt, "error", err)
		if attempt < terminalWriteAttempts {
			time.Sleep(time.Duration(attempt) * terminalWriteBackoff)
		}
	}
	return false, err
}

// Heartbeat refreshes heartbeat_at without changing progress, for long stages.
func (c *Context) Heartbeat() {
	if c == nil || c.Repo == nil || c.Job == nil {
		return
	}
	if err := c.Repo.Heartbeat(dbctx.Context{Ctx: c.Ctx}, c.Job.ID); err != nil {
		c.Log.Warn("heartbeat failed", "error", err)
	}
}

// Fail marks the job FAILED. An empty stage keeps the stage the job was in.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil {
		return
	}
	if stage == "" {
		stage = c.Job.Stage
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	now := time.Now()

	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, werr := c.finishRow(map[string]interface{}{
			"status":       jobdomain.StatusFailed,
			"stage":        stage,
			"message":      "",
			"error":        msg,
			"completed_at": now,
			"updated_at":   now,
		})
		if werr != nil {
			c.Log.Error("fail write failed", "stage", stage, "error", werr)
			return
		}
		if !ok {
			c.syncFinished()
			return
		}
	}

	c.Job.Status = jobdomain.StatusFailed
	c.Job.Stage = stage
	c.Job.Message = ""
	c.Job.Error = msg
	c.Job.CompletedAt = &now
	c.Job.UpdatedAt = now

	observability.Current().IncJobFinished(jobdomain.StatusFailed)
	if c.Notify != nil {
		c.Notify.JobFailed(lifecycleCtx(c.Ctx), c.Job, stage, msg)
	}
}

// Succeed marks the job COMPLETED at stage complete / 100% and stores result as JSON.
func (c *Context) Succeed(result any) {
	if c == nil || c.Job == nil {
		return
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Fail(jobdomain.StagePersisting, fmt.Errorf("encode job result: %w", err))
			return
		}
		res = datatypes.JSON(b)
	}

	if c.Repo != nil && c.Job.ID != uuid.Nil {
		ok, err := c.finishRow(map[string]interface{}{
			"status":       jobdomain.StatusCompleted,
			"stage":        jobdomain.StageComplete,
			"progress":     100,
			"message":      "",
			"error":        "",
			"result":       res,
			"completed_at": now,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Error("succeed write failed", "error", err)
			return
		}
		if !ok {
			c.syncFinished()
			return
		}
	}

	c.Job.Status = jobdomain.StatusCompleted
	c.Job.Stage = jobdomain.StageComplete
	c.Job.Progress = 100
	c.Job.Message = ""
	c.Job.Error = ""
	c.Job.Result = res
	c.Job.CompletedAt = &now
	c.Job.HeartbeatAt = &now
	c.Job.UpdatedAt = now

	observability.Current().IncJobFinished(jobdomain.StatusCompleted)
	if c.Notify != nil {
		c.Notify.JobDone(lifecycleCtx(c.Ctx), c.Job)
	}
}

// lifecycleCtx lets terminal writes land even when the run context was canceled.
func lifecycleCtx(ctx context.Context) context.Context {
	if ctx == nil || ctx.Err() == nil {
		return ctxutil.Default(ctx)
	}
	return ctxutil.Detached(ctx)
}

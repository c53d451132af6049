package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-backend/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/curriculum-backend/internal/pkg/errors"
)

func TestGenerationJobRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewGenerationJobRepo(db, testutil.Logger(t))

	programID := uuid.New()
	now := time.Now()

	first, err := repo.Create(dbc, &types.GenerationJob{ProgramID: programID, CreatedAt: now.Add(-time.Minute)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Status != jobdomain.StatusPending || first.Stage != jobdomain.StageQueued {
		t.Fatalf("Create defaults: got status=%s stage=%s", first.Status, first.Stage)
	}

	// A second active job for the same program is rejected by the store.
	if _, err := repo.Create(dbc, &types.GenerationJob{ProgramID: programID}); !errors.Is(err, ErrActiveJobExists) {
		t.Fatalf("Create duplicate active: expected ErrActiveJobExists, got %v", err)
	}

	active, err := repo.GetActiveForProgram(dbc, programID)
	if err != nil || active == nil || active.ID != first.ID {
		t.Fatalf("GetActiveForProgram: err=%v job=%v", err, active)
	}

	if _, err := repo.GetByID(dbc, uuid.New()); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("GetByID missing: expected ErrNotFound, got %v", err)
	}

	claimed, err := repo.ClaimNextPending(dbc)
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID || claimed.Status != jobdomain.StatusProcessing || claimed.StartedAt == nil {
		t.Fatalf("ClaimNextPending: unexpected claim %+v", claimed)
	}
	if again, err := repo.ClaimNextPending(dbc); err != nil || again != nil {
		t.Fatalf("ClaimNextPending second: expected nothing runnable, got %v err=%v", again, err)
	}

	// Progress never moves backwards in storage.
	if ok, err := repo.AdvanceProgress(dbc, first.ID, jobdomain.StageClustering, 25, ""); err != nil || !ok {
		t.Fatalf("AdvanceProgress 25: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.AdvanceProgress(dbc, first.ID, jobdomain.StageEmbedding, 5, ""); err != nil || ok {
		t.Fatalf("AdvanceProgress backwards: ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(dbc, first.ID)
	if got.Progress != 25 || got.Stage != jobdomain.StageClustering {
		t.Fatalf("after AdvanceProgress: progress=%d stage=%s", got.Progress, got.Stage)
	}

	// Terminal rows are never overwritten.
	terminal := []string{jobdomain.StatusCompleted, jobdomain.StatusFailed}
	if ok, err := repo.UpdateFieldsUnlessStatus(dbc, first.ID, terminal, map[string]interface{}{"status": jobdomain.StatusFailed, "error": "boom"}); err != nil || !ok {
		t.Fatalf("UpdateFieldsUnlessStatus fail: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.UpdateFieldsUnlessStatus(dbc, first.ID, terminal, map[string]interface{}{"status": jobdomain.StatusCompleted}); err != nil || ok {
		t.Fatalf("UpdateFieldsUnlessStatus on terminal: ok=%v err=%v", ok, err)
	}

	// Once the first job is terminal a new one may be created, and it becomes the latest.
	second, err := repo.Create(dbc, &types.GenerationJob{ProgramID: programID})
	if err != nil {
		t.Fatalf("Create after terminal: %v", err)
	}
	latest, err := repo.GetLatestForProgram(dbc, programID)
	if err != nil || latest == nil || latest.ID != second.ID {
		t.Fatalf("GetLatestForProgram: err=%v job=%v", err, latest)
	}
	if none, err := repo.GetLatestForProgram(dbc, uuid.New()); err != nil || none != nil {
		t.Fatalf("GetLatestForProgram unknown: expected nil, got %v err=%v", none, err)
	}
}

func TestGenerationJobRepoFailStale(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewGenerationJobRepo(db, testutil.Logger(t))

	old := time.Now().Add(-2 * time.Hour)
	stale := &types.GenerationJob{
		ProgramID:   uuid.New(),
		Status:      jobdomain.StatusProcessing,
		Stage:       jobdomain.StageAnalyzing,
		HeartbeatAt: &old,
	}
	if _, err := repo.Create(dbc, stale); err != nil {
		t.Fatalf("seed stale: %v", err)
	}
	fresh, err := repo.Create(dbc, &types.GenerationJob{ProgramID: uuid.New()})
	if err != nil {
		t.Fatalf("seed fresh: %v", err)
	}

	failed, err := repo.FailStale(dbc, time.Now().Add(-time.Hour), "worker lost")
	if err != nil {
		t.Fatalf("FailStale: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != stale.ID {
		t.Fatalf("FailStale: expected only the stale job, got %d", len(failed))
	}
	got, _ := repo.GetByID(dbc, stale.ID)
	if got.Status != jobdomain.StatusFailed || got.Error != "worker lost" || got.CompletedAt == nil {
		t.Fatalf("FailStale row: %+v", got)
	}
	untouched, _ := repo.GetByID(dbc, fresh.ID)
	if untouched.Status != jobdomain.StatusPending {
		t.Fatalf("FailStale touched pending job: %s", untouched.Status)
	}
}

func TestGenerationJobEventRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewGenerationJobEventRepo(db, testutil.Logger(t))

	jobID := uuid.New()
	base := time.Now()
	for i, stage := range []string{jobdomain.StageQueued, jobdomain.StageEmbedding, jobdomain.StageClustering} {
		ev := &types.GenerationJobEvent{
			JobID:     jobID,
			ProgramID: uuid.New(),
			Kind:      jobdomain.JobEventProgress,
			Status:    jobdomain.StatusProcessing,
			Stage:     stage,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Append(dbc, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	events, err := repo.ListByJob(dbc, jobID)
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	if len(events) != 3 || events[0].Stage != jobdomain.StageQueued || events[2].Stage != jobdomain.StageClustering {
		t.Fatalf("ListByJob: unexpected order %+v", events)
	}
}

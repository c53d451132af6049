package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	"github.com/yungbote/curriculum-backend/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/services"
)

func claimedContext(t *testing.T) (*Context, repos.GenerationJobRepo, repos.GenerationJobEventRepo) {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: ctx}

	p := testutil.SeedProgram(t, ctx, db, 2)
	jobRepo := repos.NewGenerationJobRepo(db, log)
	eventRepo := repos.NewGenerationJobEventRepo(db, log)
	if _, err := jobRepo.Create(dbc, &types.GenerationJob{ProgramID: p.ID}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	job, err := jobRepo.ClaimNextPending(dbc)
	if err != nil || job == nil {
		t.Fatalf("claim: job=%v err=%v", job, err)
	}
	notify := services.NewJobNotifier(log, eventRepo, nil)
	return NewContext(ctx, db, job, jobRepo, notify, log), jobRepo, eventRepo
}

func TestProgressIsMonotonic(t *testing.T) {
	jc, jobRepo, _ := claimedContext(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	jc.Progress(jobdomain.StageClustering, 25, "clustering")
	jc.Progress(jobdomain.StageEmbedding, 5, "back to embedding")
	if jc.Job.Stage != jobdomain.StageClustering || jc.Job.Progress != 25 {
		t.Fatalf("backwards stage applied: %s/%d", jc.Job.Stage, jc.Job.Progress)
	}
	jc.Progress(jobdomain.StageClustering, 10, "lower pct")
	if jc.Job.Progress != 25 {
		t.Fatalf("progress regressed to %d", jc.Job.Progress)
	}
	jc.Progress("bogus", 50, "")
	if jc.Job.Stage != jobdomain.StageClustering {
		t.Fatalf("unknown stage applied: %s", jc.Job.Stage)
	}

	stored, err := jobRepo.GetByID(dbc, jc.Job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Stage != jobdomain.StageClustering || stored.Progress != 25 {
		t.Fatalf("stored %s/%d", stored.Stage, stored.Progress)
	}
}

func TestFailKeepsStageAndIsTerminal(t *testing.T) {
	jc, jobRepo, eventRepo := claimedContext(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	jc.Progress(jobdomain.StageAnalyzing, 40, "")
	jc.Fail("", errors.New("model unavailable"))
	jc.Succeed(map[string]int{"weeks": 2})
	jc.Progress(jobdomain.StageGenerating, 60, "")

	stored, err := jobRepo.GetByID(dbc, jc.Job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != jobdomain.StatusFailed || stored.Stage != jobdomain.StageAnalyzing || stored.Progress != 40 {
		t.Fatalf("unexpected row %+v", stored)
	}
	if stored.Error != "model unavailable" || stored.CompletedAt == nil {
		t.Fatalf("missing failure details %+v", stored)
	}

	events, err := eventRepo.ListByJob(dbc, jc.Job.ID)
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	kinds := []string{}
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 2 || kinds[0] != jobdomain.JobEventProgress || kinds[1] != jobdomain.JobEventFailed {
		t.Fatalf("unexpected events %v", kinds)
	}
}

func TestSucceedStoresResult(t *testing.T) {
	jc, jobRepo, _ := claimedContext(t)

	jc.Succeed(map[string]int{"weeks": 2})
	stored, err := jobRepo.GetByID(dbctx.Context{Ctx: context.Background()}, jc.Job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != jobdomain.StatusCompleted || stored.Stage != jobdomain.StageComplete || stored.Progress != 100 {
		t.Fatalf("unexpected row %+v", stored)
	}
	if string(stored.Result) != `{"weeks":2}` {
		t.Fatalf("result = %s", stored.Result)
	}
}

func TestProgressStopsOnceJobFinishedElsewhere(t *testing.T) {
	jc, jobRepo, _ := claimedContext(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	if !jc.Progress(jobdomain.StageEmbedding, 5, "embedding") {
		t.Fatalf("a processing job should report live")
	}
	failed, err := jobRepo.FailStale(dbc, time.Now().Add(time.Hour), "worker lost")
	if err != nil || len(failed) != 1 {
		t.Fatalf("FailStale: %d err=%v", len(failed), err)
	}

	if jc.Progress(jobdomain.StageClustering, 25, "clustering") {
		t.Fatalf("Progress reported live for a FAILED job")
	}
	if jc.Job.Status != jobdomain.StatusFailed || jc.Job.Error != "worker lost" {
		t.Fatalf("in-memory job not synced: %+v", jc.Job)
	}
	if jc.Progress(jobdomain.StageAnalyzing, 40, "") {
		t.Fatalf("Progress reported live after sync")
	}

	jc.Succeed(map[string]int{"weeks": 2})
	stored, err := jobRepo.GetByID(dbc, jc.Job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != jobdomain.StatusFailed || stored.Stage != jobdomain.StageEmbedding || stored.Error != "worker lost" {
		t.Fatalf("finished row was overwritten: %+v", stored)
	}
}

// flakyJobRepo fails the first n terminal writes.
type flakyJobRepo struct {
	repos.GenerationJobRepo
	failures int
	calls    int
}

func (r *flakyJobRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowed []string, updates map[string]interface{}) (bool, error) {
	r.calls++
	if r.calls <= r.failures {
		return false, errors.New("connection reset")
	}
	return r.GenerationJobRepo.UpdateFieldsUnlessStatus(dbc, id, disallowed, updates)
}

func TestTerminalWriteRetries(t *testing.T) {
	jc, jobRepo, _ := claimedContext(t)
	flaky := &flakyJobRepo{GenerationJobRepo: jobRepo, failures: terminalWriteAttempts - 1}
	jc.Repo = flaky

	jc.Fail(jobdomain.StageGenerating, errors.New("draft invalid"))
	if flaky.calls != terminalWriteAttempts {
		t.Fatalf("expected %d attempts, got %d", terminalWriteAttempts, flaky.calls)
	}
	stored, err := jobRepo.GetByID(dbctx.Context{Ctx: context.Background()}, jc.Job.ID)
	if err != nil || stored.Status != jobdomain.StatusFailed {
		t.Fatalf("job not failed after retries: %+v err=%v", stored, err)
	}
}

func TestPayloadUUID(t *testing.T) {
	jc := NewContext(context.Background(), nil, &types.GenerationJob{Payload: []byte(`{"program_id":"6f1c1f0e-0a4e-4a53-9d43-2f5d2d0d9c11","bad":"x"}`)}, nil, nil, nil)
	if _, ok := jc.PayloadUUID("program_id"); !ok {
		t.Fatalf("expected program_id to parse")
	}
	if _, ok := jc.PayloadUUID("bad"); ok {
		t.Fatalf("expected bad to be rejected")
	}
	if _, ok := jc.PayloadUUID("missing"); ok {
		t.Fatalf("expected missing key to be rejected")
	}
}

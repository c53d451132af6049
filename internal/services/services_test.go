package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	"github.com/yungbote/curriculum-backend/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/platform/apierr"
)

type countingDispatcher struct{ n atomic.Int32 }

func (d *countingDispatcher) Dispatch() { d.n.Add(1) }

// blindJobRepo hides active jobs from the first lookup, the way a concurrent Start
// would see the table before the other insert commits.
type blindJobRepo struct {
	repos.GenerationJobRepo
	lookups atomic.Int32
}

func (r *blindJobRepo) GetActiveForProgram(dbc dbctx.Context, programID uuid.UUID) (*types.GenerationJob, error) {
	if r.lookups.Add(1) == 1 {
		return nil, nil
	}
	return r.GenerationJobRepo.GetActiveForProgram(dbc, programID)
}

func TestGenerationServiceStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	p := testutil.SeedProgram(t, ctx, db, 2)
	jobs := repos.NewGenerationJobRepo(db, log)
	events := repos.NewGenerationJobEventRepo(db, log)
	d := &countingDispatcher{}
	svc := NewGenerationService(log, repos.NewProgramRepo(db, log), jobs, NewJobNotifier(log, events, nil), d)

	first, existing, err := svc.Start(ctx, p.ID)
	if err != nil || existing {
		t.Fatalf("first Start: existing=%v err=%v", existing, err)
	}
	if first.Status != jobdomain.StatusPending || first.Stage != jobdomain.StageQueued || first.Progress != 0 {
		t.Fatalf("unexpected new job %+v", first)
	}
	second, existing, err := svc.Start(ctx, p.ID)
	if err != nil || !existing || second.ID != first.ID {
		t.Fatalf("second Start: job=%v existing=%v err=%v", second, existing, err)
	}
	if d.n.Load() != 1 {
		t.Fatalf("expected one dispatch, got %d", d.n.Load())
	}

	evs, err := events.ListByJob(dbctx.Context{Ctx: ctx}, first.ID)
	if err != nil || len(evs) != 1 || evs[0].Kind != jobdomain.JobEventCreated {
		t.Fatalf("expected a created event, got %v err=%v", evs, err)
	}

	got, err := svc.Status(ctx, p.ID)
	if err != nil || got.ID != first.ID {
		t.Fatalf("Status: %v err=%v", got, err)
	}
}

func TestGenerationServiceResolvesRace(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	p := testutil.SeedProgram(t, ctx, db, 2)
	base := repos.NewGenerationJobRepo(db, log)
	winner, err := base.Create(dbctx.Context{Ctx: ctx}, &types.GenerationJob{ProgramID: p.ID})
	if err != nil {
		t.Fatalf("create winner: %v", err)
	}

	svc := NewGenerationService(log, repos.NewProgramRepo(db, log), &blindJobRepo{GenerationJobRepo: base}, nil, nil)
	job, existing, err := svc.Start(ctx, p.ID)
	if err != nil || !existing || job.ID != winner.ID {
		t.Fatalf("expected the winner back, got job=%v existing=%v err=%v", job, existing, err)
	}
}

func TestGenerationServiceErrors(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	p := testutil.SeedProgram(t, ctx, db, 2)
	svc := NewGenerationService(log, repos.NewProgramRepo(db, log), repos.NewGenerationJobRepo(db, log), nil, nil)

	var ae *apierr.Error
	if _, _, err := svc.Start(ctx, uuid.New()); !errors.As(err, &ae) || ae.Status != http.StatusNotFound {
		t.Fatalf("Start unknown program: %v", err)
	}
	if _, err := svc.Status(ctx, p.ID); !errors.As(err, &ae) || ae.Code != "generation_job_not_found" {
		t.Fatalf("Status without job: %v", err)
	}
}

func TestProgramServiceValidatesInput(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	svc := NewProgramService(log, repos.NewProgramRepo(db, log), repos.NewContentItemRepo(db, log), repos.NewCurriculumRepo(db, log))

	var ae *apierr.Error
	if _, err := svc.Create(ctx, ProgramInput{Title: " "}); !errors.As(err, &ae) || ae.Status != http.StatusBadRequest {
		t.Fatalf("blank title: %v", err)
	}
	if _, err := svc.Create(ctx, ProgramInput{Title: "x", PacingMode: "daily"}); !errors.As(err, &ae) {
		t.Fatalf("bad pacing: %v", err)
	}
	p, err := svc.Create(ctx, ProgramInput{Title: "Strength"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.DurationWeeks != defaultDurationWeeks || p.PacingMode != "weekly" {
		t.Fatalf("defaults not applied: %+v", p)
	}

	if _, err := svc.ReplaceContent(ctx, p.ID, []ContentInput{{Title: "Intro", ContentType: "podcast"}}); !errors.As(err, &ae) {
		t.Fatalf("bad content type: %v", err)
	}
	text := "Squat with your whole foot on the floor."
	items, err := svc.ReplaceContent(ctx, p.ID, []ContentInput{
		{Title: "Intro", ContentType: "Video", Text: &text},
		{Title: "Notes", ContentType: "document"},
	})
	if err != nil || len(items) != 2 || items[0].ContentType != "video" || items[1].Position != 1 {
		t.Fatalf("ReplaceContent: %v err=%v", items, err)
	}
	listed, err := svc.ListContent(ctx, p.ID)
	if err != nil || len(listed) != 2 {
		t.Fatalf("ListContent: %d err=%v", len(listed), err)
	}
	weeks, err := svc.Curriculum(ctx, p.ID)
	if err != nil || len(weeks) != 0 {
		t.Fatalf("Curriculum before generation: %d err=%v", len(weeks), err)
	}
}

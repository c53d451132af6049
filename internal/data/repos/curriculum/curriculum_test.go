package curriculum

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-backend/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/domain/curriculum"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
)

func sampleDraft(programID uuid.UUID, weeks int) *types.CurriculumDraft {
	d := &types.CurriculumDraft{
		ProgramID:     programID.String(),
		Title:         "Draft",
		DurationWeeks: weeks,
	}
	for w := 1; w <= weeks; w++ {
		d.Weeks = append(d.Weeks, types.DraftWeek{
			Title:      "Week",
			WeekNumber: w,
			Sessions: []types.DraftSession{{
				Title:        "Session",
				KeyTakeaways: []string{"a", "b"},
				OrderIndex:   0,
				Actions: []types.DraftAction{
					{Title: "Watch", Type: curriculum.ActionWatch, Instructions: "watch it", OrderIndex: 0},
					{Title: "Reflect", Type: curriculum.ActionReflect, Instructions: "think", OrderIndex: 1},
				},
			}},
		})
	}
	return d
}

func TestCurriculumRepoReplace(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	log := testutil.Logger(t)
	repo := NewCurriculumRepo(db, log)

	program := testutil.SeedProgram(t, ctx, db, 3)
	job := testutil.SeedJob(t, ctx, db, program.ID, jobdomain.StatusProcessing)

	if _, err := repo.ReplaceCurriculum(dbc, program.ID, job.ID, sampleDraft(program.ID, 3)); err != nil {
		t.Fatalf("ReplaceCurriculum first: %v", err)
	}
	rec, err := repo.ReplaceCurriculum(dbc, program.ID, job.ID, sampleDraft(program.ID, 2))
	if err != nil {
		t.Fatalf("ReplaceCurriculum second: %v", err)
	}

	weeks, err := repo.GetStructure(dbc, program.ID)
	if err != nil {
		t.Fatalf("GetStructure: %v", err)
	}
	if len(weeks) != 2 {
		t.Fatalf("expected prior structure replaced, got %d weeks", len(weeks))
	}
	for i, w := range weeks {
		if w.WeekNumber != i+1 || w.DraftID != rec.ID {
			t.Fatalf("week %d: number=%d draft=%s", i, w.WeekNumber, w.DraftID)
		}
		if len(w.Sessions) != 1 || len(w.Sessions[0].Actions) != 2 {
			t.Fatalf("week %d: unexpected tree shape", i)
		}
		if w.Sessions[0].Actions[1].Type != curriculum.ActionReflect {
			t.Fatalf("week %d: actions out of order", i)
		}
	}

	latest, err := repo.GetLatestDraft(dbc, program.ID)
	if err != nil || latest == nil || latest.ID != rec.ID {
		t.Fatalf("GetLatestDraft: err=%v rec=%v", err, latest)
	}
}

func TestCurriculumRepoReplaceRequiresProcessingJob(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewCurriculumRepo(db, testutil.Logger(t))

	program := testutil.SeedProgram(t, ctx, db, 2)
	job := testutil.SeedJob(t, ctx, db, program.ID, jobdomain.StatusProcessing)
	if _, err := repo.ReplaceCurriculum(dbc, program.ID, job.ID, sampleDraft(program.ID, 2)); err != nil {
		t.Fatalf("ReplaceCurriculum: %v", err)
	}

	// The stale sweep fails the job while its run is still going.
	if err := db.Model(&types.GenerationJob{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{"status": jobdomain.StatusFailed, "error": "worker lost"}).Error; err != nil {
		t.Fatalf("fail job: %v", err)
	}
	if _, err := repo.ReplaceCurriculum(dbc, program.ID, job.ID, sampleDraft(program.ID, 1)); !errors.Is(err, ErrJobNotProcessing) {
		t.Fatalf("expected ErrJobNotProcessing for a failed job, got %v", err)
	}
	if _, err := repo.ReplaceCurriculum(dbc, program.ID, uuid.New(), sampleDraft(program.ID, 1)); !errors.Is(err, ErrJobNotProcessing) {
		t.Fatalf("expected ErrJobNotProcessing for an unknown job, got %v", err)
	}

	weeks, err := repo.GetStructure(dbc, program.ID)
	if err != nil || len(weeks) != 2 {
		t.Fatalf("rejected writes must leave the curriculum alone: weeks=%d err=%v", len(weeks), err)
	}
}

func TestEmbeddingAndAssignmentUpsert(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	log := testutil.Logger(t)

	program := testutil.SeedProgram(t, ctx, db, 2)
	items := testutil.SeedContent(t, ctx, db, program.ID, map[string]*string{
		"a": testutil.Str("first"),
		"b": testutil.Str("second"),
	})

	embRepo := NewEmbeddingRepo(db, log)
	rows := []*types.ContentEmbedding{
		{ContentID: items[0].ID, Model: "m", ProgramID: program.ID, TextHash: "h1", Dim: 2, Vector: curriculum.EncodeVector([]float32{1, 0})},
		{ContentID: items[1].ID, Model: "m", ProgramID: program.ID, TextHash: "h2", Dim: 2, Vector: curriculum.EncodeVector([]float32{0, 1})},
	}
	if err := embRepo.Upsert(dbc, rows); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	update := []*types.ContentEmbedding{
		{ContentID: items[0].ID, Model: "m", ProgramID: program.ID, TextHash: "h1b", Dim: 2, Vector: curriculum.EncodeVector([]float32{0.5, 0.5})},
	}
	if err := embRepo.Upsert(dbc, update); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	got, err := embRepo.GetByContentIDs(dbc, "m", []uuid.UUID{items[0].ID, items[1].ID})
	if err != nil || len(got) != 2 {
		t.Fatalf("GetByContentIDs: err=%v len=%d", err, len(got))
	}
	for _, e := range got {
		if e.ContentID == items[0].ID {
			v, err := e.Values()
			if err != nil || e.TextHash != "h1b" || v[0] != 0.5 {
				t.Fatalf("expected upserted row, got hash=%s vec=%v err=%v", e.TextHash, v, err)
			}
		}
	}

	assignRepo := NewClusterAssignmentRepo(db, log)
	jobID := uuid.New()
	if err := assignRepo.Upsert(dbc, []*types.ClusterAssignment{
		{ProgramID: program.ID, ContentID: items[0].ID, ClusterID: 0, JobID: jobID},
		{ProgramID: program.ID, ContentID: items[1].ID, ClusterID: 0, JobID: jobID},
	}); err != nil {
		t.Fatalf("assignment Upsert: %v", err)
	}
	if err := assignRepo.Upsert(dbc, []*types.ClusterAssignment{
		{ProgramID: program.ID, ContentID: items[1].ID, ClusterID: 1, JobID: jobID},
	}); err != nil {
		t.Fatalf("assignment Upsert update: %v", err)
	}
	assigned, err := assignRepo.ListByProgram(dbc, program.ID)
	if err != nil || len(assigned) != 2 || assigned[1].ClusterID != 1 {
		t.Fatalf("ListByProgram: err=%v rows=%+v", err, assigned)
	}
}

func TestContentItemRepoReplace(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewContentItemRepo(db, testutil.Logger(t))

	program := testutil.SeedProgram(t, ctx, db, 2)
	testutil.SeedContent(t, ctx, db, program.ID, map[string]*string{"old": nil})

	keepID := uuid.New()
	_, err := repo.ReplaceForProgram(dbc, program.ID, []*types.ContentItem{
		{ID: keepID, Title: "intro", ContentType: curriculum.ContentTypeVideo, Text: testutil.Str("hello")},
		{Title: "notes", ContentType: curriculum.ContentTypeDocument},
	})
	if err != nil {
		t.Fatalf("ReplaceForProgram: %v", err)
	}
	items, err := repo.ListByProgram(dbc, program.ID)
	if err != nil {
		t.Fatalf("ListByProgram: %v", err)
	}
	if len(items) != 2 || items[0].ID != keepID || items[1].Position != 1 {
		t.Fatalf("unexpected items after replace: %+v", items)
	}
}

package curriculum_generate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	"github.com/yungbote/curriculum-backend/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/curriculum-backend/internal/jobs/runtime"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/digest"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/draft"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/platform/llm"
	"github.com/yungbote/curriculum-backend/internal/platform/llm/llmtest"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
	"github.com/yungbote/curriculum-backend/internal/services"
)

const lesson = "Progressive overload means adding a little more weight or a few more repetitions every week so the body keeps adapting."

type harness struct {
	t        *testing.T
	db       *gorm.DB
	dbc      dbctx.Context
	log      *logger.Logger
	jobs     repos.GenerationJobRepo
	events   repos.GenerationJobEventRepo
	assigned repos.ClusterAssignmentRepo
	curr     repos.CurriculumRepo
	embedder llm.Embedder
	provider llm.Provider
	// writer, when set, replaces curr as the pipeline's curriculum writer.
	writer repos.CurriculumRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return &harness{
		t:        t,
		db:       db,
		dbc:      dbctx.Context{Ctx: context.Background()},
		log:      log,
		jobs:     repos.NewGenerationJobRepo(db, log),
		events:   repos.NewGenerationJobEventRepo(db, log),
		assigned: repos.NewClusterAssignmentRepo(db, log),
		curr:     repos.NewCurriculumRepo(db, log),
		embedder: llm.NewStubEmbedder(),
		provider: llm.NewStubProvider(),
	}
}

func (h *harness) pipeline() *Pipeline {
	writer := h.writer
	if writer == nil {
		writer = h.curr
	}
	return New(Deps{
		DB:          h.db,
		Log:         h.log,
		Programs:    repos.NewProgramRepo(h.db, h.log),
		Content:     repos.NewContentItemRepo(h.db, h.log),
		Embeddings:  repos.NewEmbeddingRepo(h.db, h.log),
		Assignments: h.assigned,
		Curriculum:  writer,
		Embedder:    h.embedder,
		Extractor:   digest.NewExtractor(h.log, h.provider, nil, digest.DefaultConfig()),
		Generator:   draft.NewGenerator(h.log, h.provider),
		Schedule:    DefaultSchedule(),
	})
}

// runJob creates, claims and runs one job for programID and returns the stored row.
func (h *harness) runJob(programID uuid.UUID) *types.GenerationJob {
	h.t.Helper()
	if _, err := h.jobs.Create(h.dbc, &types.GenerationJob{ProgramID: programID}); err != nil {
		h.t.Fatalf("create job: %v", err)
	}
	job, err := h.jobs.ClaimNextPending(h.dbc)
	if err != nil || job == nil {
		h.t.Fatalf("claim: job=%v err=%v", job, err)
	}
	notify := services.NewJobNotifier(h.log, h.events, nil)
	jc := jobrt.NewContext(context.Background(), h.db, job, h.jobs, notify, h.log)
	if err := h.pipeline().Run(jc); err != nil {
		h.t.Fatalf("Run returned %v", err)
	}
	stored, err := h.jobs.GetByID(h.dbc, job.ID)
	if err != nil {
		h.t.Fatalf("GetByID: %v", err)
	}
	return stored
}

func TestPipelineGeneratesCurriculum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := testutil.SeedProgram(t, ctx, h.db, 2)
	items := testutil.SeedContent(t, ctx, h.db, p.ID, map[string]*string{
		"Deadlift basics":  testutil.Str(lesson + " Hinge at the hips."),
		"Squat basics":     testutil.Str(lesson + " Keep the chest up."),
		"Bench basics":     testutil.Str(lesson + " Retract the shoulder blades."),
		"doc:Sleep guide":  testutil.Str(lesson + " Sleep eight hours."),
		"doc:Empty upload": nil,
	})

	job := h.runJob(p.ID)
	if job.Status != jobdomain.StatusCompleted || job.Stage != jobdomain.StageComplete || job.Progress != 100 {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.CompletedAt == nil || job.Error != "" {
		t.Fatalf("missing completion details %+v", job)
	}
	if !strings.Contains(string(job.Result), `"weeks":2`) || !strings.Contains(string(job.Result), `"embeddings_created":4`) {
		t.Fatalf("unexpected result %s", job.Result)
	}

	weeks, err := h.curr.GetStructure(h.dbc, p.ID)
	if err != nil {
		t.Fatalf("GetStructure: %v", err)
	}
	if len(weeks) != 2 {
		t.Fatalf("expected 2 weeks, got %d", len(weeks))
	}
	referenced := map[string]bool{}
	for _, w := range weeks {
		for _, s := range w.Sessions {
			for _, a := range s.Actions {
				if a.ContentRef != nil {
					referenced[*a.ContentRef] = true
				}
			}
		}
	}
	for _, it := range items {
		want := it.Text != nil
		if referenced[it.ID.String()] != want {
			t.Fatalf("content %q referenced=%v want %v", it.Title, referenced[it.ID.String()], want)
		}
	}

	assignments, err := h.assigned.ListByProgram(h.dbc, p.ID)
	if err != nil || len(assignments) != 4 {
		t.Fatalf("assignments=%d err=%v", len(assignments), err)
	}

	events, err := h.events.ListByJob(h.dbc, job.ID)
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	prevStage, prevPct := -1, -1
	for _, ev := range events {
		idx := jobdomain.StageIndex(ev.Stage)
		if idx < prevStage || ev.Progress < prevPct {
			t.Fatalf("progress went backwards at %s/%d", ev.Stage, ev.Progress)
		}
		prevStage, prevPct = idx, ev.Progress
	}
	if last := events[len(events)-1]; last.Kind != jobdomain.JobEventSucceeded {
		t.Fatalf("last event %s", last.Kind)
	}

	again := h.runJob(p.ID)
	if again.Status != jobdomain.StatusCompleted || !strings.Contains(string(again.Result), `"embeddings_reused":4`) {
		t.Fatalf("second run %+v result=%s", again, again.Result)
	}
}

func TestPipelineFailsWithoutUsableContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := testutil.SeedProgram(t, ctx, h.db, 2)
	testutil.SeedContent(t, ctx, h.db, p.ID, map[string]*string{"doc:Blank": testutil.Str("   ")})

	job := h.runJob(p.ID)
	if job.Status != jobdomain.StatusFailed || job.Stage != jobdomain.StageEmbedding {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Error != ErrNoUsableContent.Error() || job.CompletedAt == nil {
		t.Fatalf("unexpected error %q", job.Error)
	}
}

func TestPipelineFailsOnEmbeddingError(t *testing.T) {
	h := newHarness(t)
	h.embedder = &llmtest.Embedder{Err: errors.New("quota exceeded")}
	ctx := context.Background()
	p := testutil.SeedProgram(t, ctx, h.db, 1)
	testutil.SeedContent(t, ctx, h.db, p.ID, map[string]*string{"Squat basics": testutil.Str(lesson)})

	job := h.runJob(p.ID)
	if job.Status != jobdomain.StatusFailed || job.Stage != jobdomain.StageEmbedding || !strings.Contains(job.Error, "quota exceeded") {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestPipelineKeepsPartialStateWhenDraftFails(t *testing.T) {
	h := newHarness(t)
	scripted := llmtest.Texts("not a curriculum")
	h.provider = llm.ProviderFunc(func(ctx context.Context, prompt string) (string, error) {
		if task, _ := llm.MarkerValue(prompt, llm.MarkerTask); task == llm.TaskContentDigest {
			return llm.NewStubProvider().Complete(ctx, prompt)
		}
		return scripted.Complete(ctx, prompt)
	})
	ctx := context.Background()
	p := testutil.SeedProgram(t, ctx, h.db, 2)
	testutil.SeedContent(t, ctx, h.db, p.ID, map[string]*string{
		"Squat basics": testutil.Str(lesson),
		"Bench basics": testutil.Str(lesson + " Press."),
	})

	job := h.runJob(p.ID)
	if job.Status != jobdomain.StatusFailed || job.Stage != jobdomain.StageGenerating {
		t.Fatalf("unexpected job %+v", job)
	}
	if scripted.Calls() != draft.MaxRepairAttempts+1 {
		t.Fatalf("expected %d draft calls, got %d", draft.MaxRepairAttempts+1, scripted.Calls())
	}
	if job.Progress != 60 {
		t.Fatalf("progress should stay at the failed stage start, got %d", job.Progress)
	}
	assignments, err := h.assigned.ListByProgram(h.dbc, p.ID)
	if err != nil || len(assignments) != 2 {
		t.Fatalf("cluster assignments should survive a failed run: %d err=%v", len(assignments), err)
	}
	weeks, err := h.curr.GetStructure(h.dbc, p.ID)
	if err != nil || len(weeks) != 0 {
		t.Fatalf("no curriculum should be written: %d err=%v", len(weeks), err)
	}
}

// sweepStale fails every PROCESSING job the way the worker's stale sweep does.
func (h *harness) sweepStale() {
	h.t.Helper()
	if _, err := h.jobs.FailStale(h.dbc, time.Now().Add(time.Hour), "worker lost"); err != nil {
		h.t.Fatalf("FailStale: %v", err)
	}
}

func (h *harness) assertNoCurriculum(programID uuid.UUID) {
	h.t.Helper()
	weeks, err := h.curr.GetStructure(h.dbc, programID)
	if err != nil || len(weeks) != 0 {
		h.t.Fatalf("a failed job must not write the curriculum: weeks=%d err=%v", len(weeks), err)
	}
}

func TestPipelineStopsWhenJobFailedMidRun(t *testing.T) {
	h := newHarness(t)
	stub := llm.NewStubProvider()
	h.provider = llm.ProviderFunc(func(ctx context.Context, prompt string) (string, error) {
		if task, _ := llm.MarkerValue(prompt, llm.MarkerTask); task != llm.TaskContentDigest {
			h.sweepStale()
		}
		return stub.Complete(ctx, prompt)
	})
	ctx := context.Background()
	p := testutil.SeedProgram(t, ctx, h.db, 2)
	testutil.SeedContent(t, ctx, h.db, p.ID, map[string]*string{
		"Squat basics": testutil.Str(lesson),
		"Bench basics": testutil.Str(lesson + " Press."),
	})

	job := h.runJob(p.ID)
	if job.Status != jobdomain.StatusFailed || job.Stage != jobdomain.StageGenerating || job.Error != "worker lost" {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Progress != 60 || len(job.Result) != 0 {
		t.Fatalf("run kept writing after the job failed: progress=%d result=%s", job.Progress, job.Result)
	}
	h.assertNoCurriculum(p.ID)
}

// sweepingWriter fails the job right before the curriculum write, after the last
// progress update has already passed.
type sweepingWriter struct {
	repos.CurriculumRepo
	h *harness
}

func (w *sweepingWriter) ReplaceCurriculum(dbc dbctx.Context, programID, jobID uuid.UUID, d *types.CurriculumDraft) (*types.CurriculumDraftRecord, error) {
	w.h.sweepStale()
	return w.CurriculumRepo.ReplaceCurriculum(dbc, programID, jobID, d)
}

func TestPipelinePersistRejectedForFailedJob(t *testing.T) {
	h := newHarness(t)
	h.writer = &sweepingWriter{CurriculumRepo: h.curr, h: h}
	ctx := context.Background()
	p := testutil.SeedProgram(t, ctx, h.db, 2)
	testutil.SeedContent(t, ctx, h.db, p.ID, map[string]*string{
		"Squat basics": testutil.Str(lesson),
		"Bench basics": testutil.Str(lesson + " Press."),
	})

	job := h.runJob(p.ID)
	if job.Status != jobdomain.StatusFailed || job.Stage != jobdomain.StagePersisting || job.Error != "worker lost" {
		t.Fatalf("unexpected job %+v", job)
	}
	h.assertNoCurriculum(p.ID)
}

func TestScheduleValidation(t *testing.T) {
	s, err := ParseSchedule(embeddedSchedule)
	if err != nil {
		t.Fatalf("embedded schedule invalid: %v", err)
	}
	if s.Start(jobdomain.StageClustering) != 25 || s.Within(jobdomain.StageAnalyzing, 1, 2) != 47 || s.Within(jobdomain.StageAnalyzing, 2, 2) != 60 ||
		s.Within(jobdomain.StageAnalyzing, 0, 0) != 60 {
		t.Fatalf("unexpected schedule values")
	}

	bad := []string{
		"stages: [{name: queued, progress: 0}]",
		strings.Replace(string(embeddedSchedule), "progress: 25", "progress: 2", 1),
		strings.Replace(string(embeddedSchedule), "end: 60", "end: 70", 1),
		strings.Replace(string(embeddedSchedule), "name: clustering", "name: embedding", 1),
	}
	for i, raw := range bad {
		if _, err := ParseSchedule([]byte(raw)); err == nil {
			t.Fatalf("bad schedule %d accepted", i)
		}
	}

	path := filepath.Join(t.TempDir(), "schedule.yaml")
	if err := os.WriteFile(path, []byte(bad[1]), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := LoadSchedule(logger.Nop(), path); got.Start(jobdomain.StageClustering) != 25 {
		t.Fatalf("invalid override should fall back to defaults")
	}
}

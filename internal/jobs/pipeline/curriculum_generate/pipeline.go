package curriculum_generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/domain/curriculum"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/curriculum-backend/internal/jobs/runtime"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/cluster"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/digest"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/draft"
	"github.com/yungbote/curriculum-backend/internal/observability"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	"github.com/yungbote/curriculum-backend/internal/platform/llm"
)

// Result is stored on the job row when generation completes.
type Result struct {
	DraftID           uuid.UUID `json:"draft_id"`
	Weeks             int       `json:"weeks"`
	Sessions          int       `json:"sessions"`
	Actions           int       `json:"actions"`
	Clusters          int       `json:"clusters"`
	FallbackDigests   int       `json:"fallback_digests"`
	EmbeddingsReused  int       `json:"embeddings_reused"`
	EmbeddingsCreated int       `json:"embeddings_created"`
}

// run holds the state passed between stages of one job.
type run struct {
	programID uuid.UUID
	program   *types.Program
	items     []*types.ContentItem
	inputs    map[uuid.UUID]string
	vectors   []types.EmbeddingVector
	clusters  []types.Cluster
	digests   []types.ContentDigest
	draft     *types.CurriculumDraft
	result    Result
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	r := &run{programID: jc.Job.ProgramID}
	if r.programID == uuid.Nil {
		id, ok := jc.PayloadUUID("program_id")
		if !ok {
			jc.Fail(jobdomain.StageQueued, fmt.Errorf("missing program_id"))
			return nil
		}
		r.programID = id
	}

	stages := []struct {
		name string
		msg  string
		fn   func(ctx context.Context, jc *jobrt.Context, r *run) error
	}{
		{jobdomain.StageEmbedding, "Embedding content", p.embed},
		{jobdomain.StageClustering, "Grouping related content", p.cluster},
		{jobdomain.StageAnalyzing, "Analyzing content", p.analyze},
		{jobdomain.StageGenerating, "Drafting curriculum", p.generate},
		{jobdomain.StageValidating, "Validating curriculum", p.validate},
		{jobdomain.StagePersisting, "Saving curriculum", p.persist},
	}
	for _, st := range stages {
		if !jc.Progress(st.name, p.schedule.Start(st.name), st.msg) {
			p.log.Warn("Generation job no longer processing; abandoning run",
				"job_id", jc.Job.ID,
				"program_id", r.programID,
				"status", jc.Job.Status,
				"stage", st.name,
			)
			return nil
		}
		if err := p.runStage(jc, st.name, r, st.fn); err != nil {
			jc.Fail(st.name, err)
			return nil
		}
	}

	jc.Succeed(r.result)
	p.log.Info("Curriculum generated",
		"job_id", jc.Job.ID,
		"program_id", r.programID,
		"weeks", r.result.Weeks,
		"sessions", r.result.Sessions,
		"actions", r.result.Actions,
	)
	return nil
}

func (p *Pipeline) runStage(jc *jobrt.Context, name string, r *run, fn func(ctx context.Context, jc *jobrt.Context, r *run) error) (err error) {
	ctx, span := observability.StartSpan(jc.Ctx, "curriculum_generate."+name,
		attribute.String("job.id", jc.Job.ID.String()),
		attribute.String("program.id", r.programID.String()),
	)
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.Current().ObserveStage(name, status, time.Since(start))
		observability.EndSpan(span, err)
	}()
	return fn(ctx, jc, r)
}

func (p *Pipeline) embed(ctx context.Context, jc *jobrt.Context, r *run) error {
	dbc := dbctx.Context{Ctx: ctx}
	program, err := p.programs.GetByID(dbc, r.programID)
	if err != nil {
		return fmt.Errorf("load program: %w", err)
	}
	r.program = program

	all, err := p.content.ListByProgram(dbc, r.programID)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	r.inputs = map[uuid.UUID]string{}
	for _, it := range all {
		text, ok := it.EmbeddingInput()
		if !ok {
			continue
		}
		r.items = append(r.items, it)
		r.inputs[it.ID] = text
	}
	if len(r.items) == 0 {
		return ErrNoUsableContent
	}

	model := llm.ModelOf(p.embedder)
	ids := make([]uuid.UUID, len(r.items))
	for i, it := range r.items {
		ids[i] = it.ID
	}
	stored, err := p.embeddings.GetByContentIDs(dbc, model, ids)
	if err != nil {
		return fmt.Errorf("load stored embeddings: %w", err)
	}
	byID := make(map[uuid.UUID]*types.ContentEmbedding, len(stored))
	for _, e := range stored {
		byID[e.ContentID] = e
	}

	vectors := make(map[uuid.UUID][]float32, len(r.items))
	var missing []*types.ContentItem
	for _, it := range r.items {
		e := byID[it.ID]
		if e != nil && e.TextHash == curriculum.HashText(r.inputs[it.ID]) {
			if v, err := e.Values(); err == nil && len(v) > 0 {
				vectors[it.ID] = v
				continue
			}
		}
		missing = append(missing, it)
	}
	r.result.EmbeddingsReused = len(r.items) - len(missing)

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, it := range missing {
			texts[i] = r.inputs[it.ID]
		}
		out, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed content: %w", err)
		}
		if len(out) != len(missing) {
			return fmt.Errorf("%w: got %d for %d items", ErrEmbeddingMismatch, len(out), len(missing))
		}
		now := time.Now()
		rows := make([]*types.ContentEmbedding, 0, len(missing))
		for i, it := range missing {
			if len(out[i]) == 0 {
				return fmt.Errorf("%w: empty vector for %s", ErrEmbeddingMismatch, it.ID)
			}
			vectors[it.ID] = out[i]
			rows = append(rows, &types.ContentEmbedding{
				ContentID: it.ID,
				Model:     model,
				ProgramID: r.programID,
				TextHash:  curriculum.HashText(texts[i]),
				Dim:       len(out[i]),
				Vector:    curriculum.EncodeVector(out[i]),
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		if err := p.embeddings.Upsert(dbc, rows); err != nil {
			return fmt.Errorf("store embeddings: %w", err)
		}
		r.result.EmbeddingsCreated = len(rows)
	}

	r.vectors = make([]types.EmbeddingVector, len(r.items))
	for i, it := range r.items {
		r.vectors[i] = types.EmbeddingVector{ContentID: it.ID.String(), Vector: vectors[it.ID]}
	}
	jc.Log.Info("embeddings ready", "items", len(r.items), "reused", r.result.EmbeddingsReused, "created", r.result.EmbeddingsCreated)
	return nil
}

func (p *Pipeline) cluster(ctx context.Context, jc *jobrt.Context, r *run) error {
	clusters, err := cluster.Cluster(r.vectors, p.clusterK)
	if err != nil {
		return fmt.Errorf("cluster content: %w", err)
	}
	r.clusters = clusters
	r.result.Clusters = len(clusters)

	now := time.Now()
	var rows []*types.ClusterAssignment
	for _, c := range clusters {
		for _, id := range c.ContentIDs {
			cid, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("cluster member %q: %w", id, err)
			}
			rows = append(rows, &types.ClusterAssignment{
				ProgramID: r.programID,
				ContentID: cid,
				ClusterID: c.ClusterID,
				JobID:     jc.Job.ID,
				UpdatedAt: now,
			})
		}
	}
	if err := p.assignments.Upsert(dbctx.Context{Ctx: ctx}, rows); err != nil {
		return fmt.Errorf("store cluster assignments: %w", err)
	}
	return nil
}

func (p *Pipeline) analyze(ctx context.Context, jc *jobrt.Context, r *run) error {
	items := make([]digest.Item, len(r.items))
	for i, it := range r.items {
		items[i] = digest.Item{
			ContentID:   it.ID.String(),
			Title:       it.Title,
			Text:        it.UsableText(),
			ContentType: it.ContentType,
		}
	}
	digests, err := p.extractor.Extract(ctx, items, func(done, total int) {
		jc.Progress(jobdomain.StageAnalyzing, p.schedule.Within(jobdomain.StageAnalyzing, done, total),
			fmt.Sprintf("Analyzed %d of %d items", done, total))
	})
	if err != nil {
		return fmt.Errorf("extract digests: %w", err)
	}
	r.digests = digests
	for _, d := range digests {
		if d.Fallback {
			r.result.FallbackDigests++
		}
	}
	return nil
}

func (p *Pipeline) generate(ctx context.Context, jc *jobrt.Context, r *run) error {
	gc := draft.NewContext(r.program, r.items, r.clusters, r.digests)
	gc.ProgramID = r.programID.String()

	d, err := p.generator.Generate(ctx, gc)
	if err != nil {
		var ge *draft.GenerationError
		if errors.As(err, &ge) {
			jc.Log.Warn("draft repair exhausted", "attempts", ge.Attempts, "errors", len(ge.Errors))
		}
		return fmt.Errorf("generate draft: %w", err)
	}
	r.draft = d
	return nil
}

// validate is a second, job-level check. A failure here is terminal.
func (p *Pipeline) validate(ctx context.Context, jc *jobrt.Context, r *run) error {
	known := make([]string, len(r.items))
	for i, it := range r.items {
		known[i] = it.ID.String()
	}
	res := draft.Validate(r.draft, draft.Options{
		ExpectedWeeks:   r.program.DurationWeeks,
		KnownContentIDs: known,
	})
	if !res.OK {
		return fmt.Errorf("draft failed validation: %s", strings.Join(res.Errors, "; "))
	}
	if r.draft.ProgramID == "" {
		r.draft.ProgramID = r.programID.String()
	}
	return nil
}

func (p *Pipeline) persist(ctx context.Context, jc *jobrt.Context, r *run) error {
	rec, err := p.curriculum.ReplaceCurriculum(dbctx.Context{Ctx: ctx}, r.programID, jc.Job.ID, r.draft)
	if err != nil {
		return fmt.Errorf("persist curriculum: %w", err)
	}
	r.result.DraftID = rec.ID
	r.result.Weeks, r.result.Sessions, r.result.Actions = r.draft.Counts()
	return nil
}

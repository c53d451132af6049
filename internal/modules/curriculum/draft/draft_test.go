package draft

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/platform/llm"
	"github.com/yungbote/curriculum-backend/internal/platform/llm/llmtest"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

func sampleContext(weeks int) GenerationContext {
	return GenerationContext{
		ProgramID:     "prog-1",
		Title:         "Strength Basics",
		Description:   "Lift safely.",
		Audience:      "Beginners",
		DurationWeeks: weeks,
		PacingMode:    "weekly",
		Clusters: []ClusterGroup{
			{ClusterID: 0, Items: []ClusterItem{
				{ContentID: "a", Title: "Squat form", Text: strings.Repeat("squat ", 200), ContentType: "video"},
				{ContentID: "b", Title: "Hinge form", Text: "hinge", ContentType: "video"},
			}},
			{ClusterID: 1, Items: []ClusterItem{
				{ContentID: "c", Title: "Sleep", Text: "rest", ContentType: "document"},
			}},
		},
		Digests: map[string]types.ContentDigest{
			"b": {ContentID: "b", KeyConcepts: []string{"hip hinge"}, DifficultyLevel: "beginner", Summary: "Hinge at the hips."},
		},
	}
}

func validDraft(weeks int) *types.CurriculumDraft {
	ref := "a"
	d := &types.CurriculumDraft{ProgramID: "prog-1", Title: "Strength Basics", PacingMode: "weekly", DurationWeeks: weeks}
	for w := 1; w <= weeks; w++ {
		d.Weeks = append(d.Weeks, types.DraftWeek{
			WeekNumber: w,
			Title:      "Week",
			Sessions: []types.DraftSession{{
				Title:        "Session",
				KeyTakeaways: []string{"one", "two"},
				Actions: []types.DraftAction{
					{Title: "Watch", Type: "watch", Instructions: "Watch it", ContentRef: &ref},
					{Title: "Reflect", Type: "reflect", Instructions: "Think", OrderIndex: 1},
				},
			}},
		})
	}
	return d
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestValidateAcceptsWellFormedDraft(t *testing.T) {
	res := Validate(validDraft(2), Options{ExpectedWeeks: 2, KnownContentIDs: []string{"a"}})
	if !res.OK {
		t.Fatalf("expected ok, got %v", res.Errors)
	}
}

func TestValidateAcceptsAnyArrayOrder(t *testing.T) {
	d := validDraft(2)
	d.Weeks[0].WeekNumber, d.Weeks[1].WeekNumber = 2, 1
	actions := d.Weeks[0].Sessions[0].Actions
	actions[0].OrderIndex, actions[1].OrderIndex = 1, 0
	if res := Validate(d, Options{ExpectedWeeks: 2}); !res.OK {
		t.Fatalf("numbering out of array order should be accepted, got %v", res.Errors)
	}
}

func TestValidateReportsStructuralErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(d *types.CurriculumDraft)
		opts   Options
		want   string
	}{
		{"week count", func(d *types.CurriculumDraft) { d.Weeks = d.Weeks[:1] }, Options{}, "weeks has 1 entries"},
		{"expected weeks", func(d *types.CurriculumDraft) {}, Options{ExpectedWeeks: 3}, "duration_weeks must be 3"},
		{"week numbering", func(d *types.CurriculumDraft) { d.Weeks[1].WeekNumber = 5 }, Options{}, "weeks: week_number 5 is outside 1..2"},
		{"week repeated", func(d *types.CurriculumDraft) { d.Weeks[1].WeekNumber = 1 }, Options{}, "weeks: week_number 1 is repeated"},
		{"no sessions", func(d *types.CurriculumDraft) { d.Weeks[0].Sessions = nil }, Options{}, "weeks[0] must have at least one session"},
		{"takeaways", func(d *types.CurriculumDraft) { d.Weeks[0].Sessions[0].KeyTakeaways = []string{"one", " "} }, Options{}, "must have 2-3 key_takeaways (got 1)"},
		{"action type", func(d *types.CurriculumDraft) { d.Weeks[0].Sessions[0].Actions[0].Type = "listen" }, Options{}, `type "listen"`},
		{"action order", func(d *types.CurriculumDraft) { d.Weeks[0].Sessions[0].Actions[1].OrderIndex = 3 }, Options{}, "weeks[0].sessions[0].actions: order_index 3 is outside 0..1"},
		{"action repeated", func(d *types.CurriculumDraft) { d.Weeks[0].Sessions[0].Actions[1].OrderIndex = 0 }, Options{}, "actions: order_index 0 is repeated"},
		{"unknown ref", func(d *types.CurriculumDraft) {}, Options{KnownContentIDs: []string{"z"}}, `content_ref "a"`},
		{"title", func(d *types.CurriculumDraft) { d.Title = "" }, Options{}, "title is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft(2)
			tc.mutate(d)
			res := Validate(d, tc.opts)
			if res.OK {
				t.Fatalf("expected failure")
			}
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("errors %v missing %q", res.Errors, tc.want)
			}
		})
	}
}

func TestValidateJSONReportsDecodeErrors(t *testing.T) {
	d, res := ValidateJSON("no json here", Options{})
	if d != nil || res.OK || len(res.Errors) != 1 {
		t.Fatalf("unexpected result %v %+v", d, res)
	}
}

func TestGenerateWithStubProducesValidDraft(t *testing.T) {
	gc := sampleContext(2)
	d, err := NewGenerator(logger.Nop(), llm.NewStubProvider()).Generate(context.Background(), gc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if d.DurationWeeks != 2 || len(d.Weeks) != 2 || d.ProgramID != "prog-1" {
		t.Fatalf("unexpected draft %+v", d)
	}
	referenced := map[string]bool{}
	for _, w := range d.Weeks {
		for _, s := range w.Sessions {
			for _, a := range s.Actions {
				if a.ContentRef != nil {
					referenced[*a.ContentRef] = true
				}
			}
		}
	}
	for _, id := range gc.ContentIDs() {
		if !referenced[id] {
			t.Fatalf("content %s not referenced", id)
		}
	}
}

func TestGenerateRepairsInvalidOutput(t *testing.T) {
	bad := validDraft(1)
	provider := llmtest.Texts("```json\n"+mustJSON(t, bad)+"\n```", mustJSON(t, validDraft(2)))

	d, err := NewGenerator(logger.Nop(), provider).Generate(context.Background(), sampleContext(2))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(d.Weeks) != 2 {
		t.Fatalf("expected repaired draft with 2 weeks, got %d", len(d.Weeks))
	}
	prompts := provider.Prompts()
	if len(prompts) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(prompts))
	}
	if v, _ := llm.MarkerValue(prompts[1], llm.MarkerTask); v != llm.TaskCurriculumRepair {
		t.Fatalf("second prompt should be a repair, got task %q", v)
	}
	if !strings.Contains(prompts[1], "duration_weeks must be 2") {
		t.Fatalf("repair prompt missing validation errors:\n%s", prompts[1])
	}
}

func TestGenerateStopsAfterBoundedRepairs(t *testing.T) {
	provider := llmtest.Texts("not json at all")

	_, err := NewGenerator(logger.Nop(), provider).Generate(context.Background(), sampleContext(2))
	if !errors.Is(err, ErrRepairExhausted) {
		t.Fatalf("expected ErrRepairExhausted, got %v", err)
	}
	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Attempts != MaxRepairAttempts+1 || len(ge.Errors) == 0 {
		t.Fatalf("unexpected error %#v", err)
	}
	if provider.Calls() != MaxRepairAttempts+1 {
		t.Fatalf("expected %d calls, got %d", MaxRepairAttempts+1, provider.Calls())
	}
}

func TestGenerateAbortsOnProviderError(t *testing.T) {
	provider := llmtest.NewScripted(llmtest.Reply{Err: llm.ErrTimeout})

	_, err := NewGenerator(logger.Nop(), provider).Generate(context.Background(), sampleContext(2))
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if provider.Calls() != 1 {
		t.Fatalf("expected a single call, got %d", provider.Calls())
	}
}

func TestGenerateRejectsEmptyContext(t *testing.T) {
	gc := sampleContext(2)
	gc.Clusters = nil
	if _, err := NewGenerator(logger.Nop(), llm.NewStubProvider()).Generate(context.Background(), gc); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestPromptUsesDigestsAndSnippets(t *testing.T) {
	p := buildPrompt(sampleContext(2))
	if !strings.Contains(p, `"summary":"Hinge at the hips."`) {
		t.Fatalf("digest not embedded:\n%s", p)
	}
	if !strings.Contains(p, "excerpt: "+strings.Repeat("squat ", 100)[:snippetChars]+"...") {
		t.Fatalf("snippet not truncated to %d chars", snippetChars)
	}
	if v, _ := llm.MarkerValue(p, llm.MarkerDurationWeeks); v != "2" {
		t.Fatalf("duration marker = %q", v)
	}
}

func TestNewContextGroupsItemsByCluster(t *testing.T) {
	text := "Hinge at the hips."
	program := &types.Program{Title: "Strength", DurationWeeks: 3, PacingMode: "self_paced"}
	a := &types.ContentItem{Title: "Deadlift", ContentType: "video", Text: &text}
	b := &types.ContentItem{Title: "Sleep", ContentType: "document"}
	a.ID[0], b.ID[0] = 1, 2

	gc := NewContext(program, []*types.ContentItem{a, b},
		[]types.Cluster{
			{ClusterID: 0, ContentIDs: []string{b.ID.String()}},
			{ClusterID: 1, ContentIDs: []string{"gone"}},
			{ClusterID: 2, ContentIDs: []string{a.ID.String()}},
		},
		[]types.ContentDigest{{ContentID: a.ID.String(), Summary: "hinge"}},
	)
	if gc.DurationWeeks != 3 || gc.PacingMode != "self_paced" || gc.Title != "Strength" {
		t.Fatalf("program fields not copied: %+v", gc)
	}
	if len(gc.Clusters) != 2 || gc.Clusters[1].ClusterID != 2 {
		t.Fatalf("clusters with no known items should be dropped: %+v", gc.Clusters)
	}
	if got := gc.Clusters[1].Items[0]; got.Text != text || got.Title != "Deadlift" {
		t.Fatalf("unexpected item %+v", got)
	}
	if gc.Digests[a.ID.String()].Summary != "hinge" {
		t.Fatalf("digest not indexed")
	}
	if ids := gc.ContentIDs(); len(ids) != 2 || ids[0] != b.ID.String() {
		t.Fatalf("ContentIDs = %v", ids)
	}
}

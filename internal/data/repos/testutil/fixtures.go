package testutil

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/domain/curriculum"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
)

func SeedProgram(tb testing.TB, ctx context.Context, tx *gorm.DB, durationWeeks int) *types.Program {
	tb.Helper()
	now := time.Now()
	p := &types.Program{
		ID:             uuid.New(),
		Title:          "Morning Strength",
		Description:    "A program for building a sustainable strength habit.",
		TargetAudience: "busy beginners",
		Transformation: "train three times a week without burning out",
		DurationWeeks:  durationWeeks,
		PacingMode:     curriculum.PacingWeekly,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed program: %v", err)
	}
	return p
}

// SeedContent attaches one content item per title. Titles prefixed with "doc:" become
// documents, everything else videos. A nil text is stored as NULL.
func SeedContent(tb testing.TB, ctx context.Context, tx *gorm.DB, programID uuid.UUID, items map[string]*string) []*types.ContentItem {
	tb.Helper()
	now := time.Now()
	out := make([]*types.ContentItem, 0, len(items))
	pos := 0
	for _, title := range sortedKeys(items) {
		ct := curriculum.ContentTypeVideo
		if strings.HasPrefix(title, "doc:") {
			ct = curriculum.ContentTypeDocument
		}
		ci := &types.ContentItem{
			ID:          uuid.New(),
			ProgramID:   programID,
			Title:       title,
			Text:        items[title],
			ContentType: ct,
			Position:    pos,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		pos++
		out = append(out, ci)
	}
	if len(out) > 0 {
		if err := tx.WithContext(ctx).Create(&out).Error; err != nil {
			tb.Fatalf("seed content: %v", err)
		}
	}
	return out
}

// SeedJob inserts a generation job for programID in the given status.
func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, programID uuid.UUID, status string) *types.GenerationJob {
	tb.Helper()
	now := time.Now()
	job := &types.GenerationJob{
		ID:          uuid.New(),
		ProgramID:   programID,
		JobType:     jobdomain.JobTypeCurriculumGenerate,
		Status:      status,
		Stage:       jobdomain.StageQueued,
		HeartbeatAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == jobdomain.StatusProcessing {
		job.Stage = jobdomain.StagePersisting
		job.StartedAt = &now
	}
	if err := tx.WithContext(ctx).Create(job).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return job
}

func Str(s string) *string { return &s }

func sortedKeys(m map[string]*string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

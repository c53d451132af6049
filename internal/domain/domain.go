package domain

import (
	"github.com/yungbote/curriculum-backend/internal/domain/curriculum"
	"github.com/yungbote/curriculum-backend/internal/domain/jobs"
)

type (
	Program               = curriculum.Program
	ContentItem           = curriculum.ContentItem
	ContentEmbedding      = curriculum.ContentEmbedding
	EmbeddingVector       = curriculum.EmbeddingVector
	Cluster               = curriculum.Cluster
	ClusterAssignment     = curriculum.ClusterAssignment
	ContentDigest         = curriculum.ContentDigest
	CurriculumDraft       = curriculum.CurriculumDraft
	DraftWeek             = curriculum.DraftWeek
	DraftSession          = curriculum.DraftSession
	DraftAction           = curriculum.DraftAction
	CurriculumDraftRecord = curriculum.CurriculumDraftRecord
	Week                  = curriculum.Week
	Session               = curriculum.Session
	Action                = curriculum.Action

	GenerationJob      = jobs.GenerationJob
	GenerationJobEvent = jobs.GenerationJobEvent
	JobSnapshot        = jobs.JobSnapshot
)

// AllModels lists every persisted model, in migration order.
func AllModels() []any {
	return []any{
		&Program{},
		&ContentItem{},
		&ContentEmbedding{},
		&ClusterAssignment{},
		&CurriculumDraftRecord{},
		&Week{},
		&Session{},
		&Action{},
		&GenerationJob{},
		&GenerationJobEvent{},
	}
}

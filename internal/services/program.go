package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/domain/curriculum"
	"github.com/yungbote/curriculum-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/curriculum-backend/internal/pkg/errors"
	"github.com/yungbote/curriculum-backend/internal/platform/apierr"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

const defaultDurationWeeks = 4

type ProgramInput struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	TargetAudience string `json:"target_audience"`
	Transformation string `json:"transformation"`
	DurationWeeks  int    `json:"duration_weeks"`
	PacingMode     string `json:"pacing_mode"`
}

type ContentInput struct {
	ID          *uuid.UUID `json:"content_id,omitempty"`
	Title       string     `json:"title"`
	Text        *string    `json:"text"`
	ContentType string     `json:"content_type"`
}

type ProgramService interface {
	Create(ctx context.Context, in ProgramInput) (*types.Program, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Program, error)
	ReplaceContent(ctx context.Context, programID uuid.UUID, items []ContentInput) ([]*types.ContentItem, error)
	ListContent(ctx context.Context, programID uuid.UUID) ([]*types.ContentItem, error)
	Curriculum(ctx context.Context, programID uuid.UUID) ([]*types.Week, error)
}

type programService struct {
	log        *logger.Logger
	programs   repos.ProgramRepo
	content    repos.ContentItemRepo
	curriculum repos.CurriculumRepo
}

func NewProgramService(baseLog *logger.Logger, programs repos.ProgramRepo, content repos.ContentItemRepo, curr repos.CurriculumRepo) ProgramService {
	return &programService{
		log:        baseLog.With("service", "ProgramService"),
		programs:   programs,
		content:    content,
		curriculum: curr,
	}
}

func (s *programService) Create(ctx context.Context, in ProgramInput) (*types.Program, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apierr.BadRequest("invalid_program", fmt.Errorf("title is required"))
	}
	weeks := in.DurationWeeks
	if weeks == 0 {
		weeks = defaultDurationWeeks
	}
	if weeks < 1 {
		return nil, apierr.BadRequest("invalid_program", fmt.Errorf("duration_weeks must be >= 1"))
	}
	pacing := strings.TrimSpace(in.PacingMode)
	if pacing == "" {
		pacing = curriculum.PacingWeekly
	}
	if pacing != curriculum.PacingWeekly && pacing != curriculum.PacingSelfPaced {
		return nil, apierr.BadRequest("invalid_program", fmt.Errorf("pacing_mode must be %q or %q", curriculum.PacingWeekly, curriculum.PacingSelfPaced))
	}

	p, err := s.programs.Create(dbctx.Context{Ctx: ctx}, &types.Program{
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		TargetAudience: strings.TrimSpace(in.TargetAudience),
		Transformation: strings.TrimSpace(in.Transformation),
		DurationWeeks:  weeks,
		PacingMode:     pacing,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Program created", "program_id", p.ID, "duration_weeks", p.DurationWeeks)
	return p, nil
}

func (s *programService) Get(ctx context.Context, id uuid.UUID) (*types.Program, error) {
	p, err := s.programs.GetByID(dbctx.Context{Ctx: ctx}, id)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound("program_not_found", fmt.Errorf("program %s not found", id))
	}
	return p, err
}

func (s *programService) ReplaceContent(ctx context.Context, programID uuid.UUID, items []ContentInput) ([]*types.ContentItem, error) {
	if _, err := s.Get(ctx, programID); err != nil {
		return nil, err
	}
	rows := make([]*types.ContentItem, 0, len(items))
	seen := map[uuid.UUID]bool{}
	for i, in := range items {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			return nil, apierr.BadRequest("invalid_content", fmt.Errorf("items[%d].title is required", i))
		}
		ct := strings.ToLower(strings.TrimSpace(in.ContentType))
		if !curriculum.ValidContentType(ct) {
			return nil, apierr.BadRequest("invalid_content", fmt.Errorf("items[%d].content_type %q must be video or document", i, in.ContentType))
		}
		row := &types.ContentItem{Title: title, Text: in.Text, ContentType: ct}
		if in.ID != nil && *in.ID != uuid.Nil {
			if seen[*in.ID] {
				return nil, apierr.BadRequest("invalid_content", fmt.Errorf("items[%d].content_id %s is duplicated", i, *in.ID))
			}
			seen[*in.ID] = true
			row.ID = *in.ID
		}
		rows = append(rows, row)
	}
	out, err := s.content.ReplaceForProgram(dbctx.Context{Ctx: ctx}, programID, rows)
	if err != nil {
		return nil, err
	}
	s.log.Info("Program content replaced", "program_id", programID, "items", len(out))
	return out, nil
}

func (s *programService) ListContent(ctx context.Context, programID uuid.UUID) ([]*types.ContentItem, error) {
	if _, err := s.Get(ctx, programID); err != nil {
		return nil, err
	}
	return s.content.ListByProgram(dbctx.Context{Ctx: ctx}, programID)
}

func (s *programService) Curriculum(ctx context.Context, programID uuid.UUID) ([]*types.Week, error) {
	if _, err := s.Get(ctx, programID); err != nil {
		return nil, err
	}
	return s.curriculum.GetStructure(dbctx.Context{Ctx: ctx}, programID)
}

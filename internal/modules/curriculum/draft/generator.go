package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/observability"
	"github.com/yungbote/curriculum-backend/internal/platform/llm"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

// MaxRepairAttempts bounds repair calls after the initial generation (3 model calls total).
const MaxRepairAttempts = 2

var (
	ErrRepairExhausted = errors.New("curriculum draft still invalid after repair attempts")
	ErrNoContent       = errors.New("generation context has no content")
)

// GenerationError reports a draft that never passed validation.
type GenerationError struct {
	Attempts int
	Errors   []string
	// LastOutput is the raw text of the final model response.
	LastOutput string
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("curriculum draft invalid after %d attempts", e.Attempts)
	if len(e.Errors) > 0 {
		shown := e.Errors
		if len(shown) > 5 {
			shown = shown[:5]
		}
		msg += ": " + strings.Join(shown, "; ")
		if extra := len(e.Errors) - len(shown); extra > 0 {
			msg += fmt.Sprintf(" (+%d more)", extra)
		}
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return ErrRepairExhausted }

type Generator struct {
	log      *logger.Logger
	provider llm.Provider
}

func NewGenerator(log *logger.Logger, provider llm.Provider) *Generator {
	return &Generator{log: log.With("service", "DraftGenerator"), provider: provider}
}

// Generate asks the model for a curriculum and repairs it until it validates, up to
// MaxRepairAttempts times. Provider errors are returned as-is without a repair attempt.
func (g *Generator) Generate(ctx context.Context, gc GenerationContext) (*types.CurriculumDraft, error) {
	if gc.itemCount() == 0 {
		return nil, ErrNoContent
	}
	if gc.DurationWeeks < 1 {
		return nil, fmt.Errorf("duration weeks must be >= 1 (got %d)", gc.DurationWeeks)
	}
	opts := Options{ExpectedWeeks: gc.DurationWeeks, KnownContentIDs: gc.ContentIDs()}

	prompt := buildPrompt(gc)
	var (
		lastOut  string
		lastErrs []string
	)
	for attempt := 0; attempt <= MaxRepairAttempts; attempt++ {
		if attempt > 0 {
			prompt = buildRepairPrompt(gc, lastOut, lastErrs)
		}
		start := time.Now()
		out, err := g.provider.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("draft model call (attempt %d): %w", attempt+1, err)
		}
		d, res := ValidateJSON(out, opts)
		if res.OK {
			if attempt > 0 {
				observability.Current().IncRepair("repaired")
			}
			g.log.Info("curriculum draft accepted",
				"program_id", gc.ProgramID,
				"attempt", attempt+1,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			return d, nil
		}
		lastOut, lastErrs = out, res.Errors
		g.log.Warn("curriculum draft failed validation",
			"program_id", gc.ProgramID,
			"attempt", attempt+1,
			"errors", len(res.Errors),
			"first_error", res.Errors[0],
		)
	}
	observability.Current().IncRepair("exhausted")
	return nil, &GenerationError{
		Attempts:   MaxRepairAttempts + 1,
		Errors:     lastErrs,
		LastOutput: lastOut,
	}
}

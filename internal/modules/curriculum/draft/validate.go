package draft

import (
	"fmt"
	"strings"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/domain/curriculum"
	"github.com/yungbote/curriculum-backend/internal/platform/llm"
)

const (
	minTakeaways = 2
	maxTakeaways = 3
)

type Options struct {
	// ExpectedWeeks, when > 0, must equal duration_weeks.
	ExpectedWeeks int
	// KnownContentIDs, when non-empty, restricts content_ref values.
	KnownContentIDs []string
}

type Result struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateJSON decodes raw model output and validates it. Decode failures are reported
// as validation errors so they can be fed back into a repair prompt.
func ValidateJSON(raw string, opts Options) (*types.CurriculumDraft, Result) {
	var d types.CurriculumDraft
	if err := llm.DecodeJSON(raw, &d); err != nil {
		return nil, Result{OK: false, Errors: []string{err.Error()}}
	}
	return &d, Validate(&d, opts)
}

// Validate checks the structural rules every persisted curriculum must satisfy.
func Validate(d *types.CurriculumDraft, opts Options) Result {
	if d == nil {
		return Result{OK: false, Errors: []string{"draft is empty"}}
	}
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	known := map[string]bool{}
	for _, id := range opts.KnownContentIDs {
		known[id] = true
	}

	if strings.TrimSpace(d.Title) == "" {
		add("title is required")
	}
	if d.DurationWeeks < 1 {
		add("duration_weeks must be >= 1 (got %d)", d.DurationWeeks)
	}
	if opts.ExpectedWeeks > 0 && d.DurationWeeks != opts.ExpectedWeeks {
		add("duration_weeks must be %d (got %d)", opts.ExpectedWeeks, d.DurationWeeks)
	}
	if len(d.Weeks) != d.DurationWeeks {
		add("weeks has %d entries but duration_weeks is %d", len(d.Weeks), d.DurationWeeks)
	}

	weekNumbers := make([]int, len(d.Weeks))
	for wi, w := range d.Weeks {
		weekNumbers[wi] = w.WeekNumber
	}
	errs = append(errs, checkSequence("weeks", "week_number", weekNumbers, 1)...)

	for wi, w := range d.Weeks {
		wp := fmt.Sprintf("weeks[%d]", wi)
		if strings.TrimSpace(w.Title) == "" {
			add("%s.title is required", wp)
		}
		if len(w.Sessions) == 0 {
			add("%s must have at least one session", wp)
		}
		sessionOrder := make([]int, len(w.Sessions))
		for si, s := range w.Sessions {
			sessionOrder[si] = s.OrderIndex
		}
		errs = append(errs, checkSequence(wp+".sessions", "order_index", sessionOrder, 0)...)

		for si, s := range w.Sessions {
			sp := fmt.Sprintf("%s.sessions[%d]", wp, si)
			if strings.TrimSpace(s.Title) == "" {
				add("%s.title is required", sp)
			}
			takeaways := 0
			for ti, t := range s.KeyTakeaways {
				if strings.TrimSpace(t) == "" {
					add("%s.key_takeaways[%d] is empty", sp, ti)
					continue
				}
				takeaways++
			}
			if takeaways < minTakeaways || takeaways > maxTakeaways {
				add("%s must have %d-%d key_takeaways (got %d)", sp, minTakeaways, maxTakeaways, takeaways)
			}
			if len(s.Actions) == 0 {
				add("%s must have at least one action", sp)
			}
			actionOrder := make([]int, len(s.Actions))
			for ai, a := range s.Actions {
				actionOrder[ai] = a.OrderIndex
			}
			errs = append(errs, checkSequence(sp+".actions", "order_index", actionOrder, 0)...)

			for ai, a := range s.Actions {
				ap := fmt.Sprintf("%s.actions[%d]", sp, ai)
				if !curriculum.ValidActionType(a.Type) {
					add("%s.type %q is not one of watch, read, do, reflect", ap, a.Type)
				}
				if strings.TrimSpace(a.Title) == "" {
					add("%s.title is required", ap)
				}
				if strings.TrimSpace(a.Instructions) == "" {
					add("%s.instructions is required", ap)
				}
				if a.ContentRef != nil && len(known) > 0 && !known[*a.ContentRef] {
					add("%s.content_ref %q does not match any content item", ap, *a.ContentRef)
				}
			}
		}
	}

	if len(errs) == 0 {
		return Result{OK: true}
	}
	return Result{OK: false, Errors: errs}
}

// checkSequence requires values to be a permutation of first..first+len-1. Array order
// is free; readers sort by the field.
func checkSequence(path, field string, values []int, first int) []string {
	var errs []string
	last := first + len(values) - 1
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		switch {
		case v < first || v > last:
			errs = append(errs, fmt.Sprintf("%s: %s %d is outside %d..%d", path, field, v, first, last))
		case seen[v]:
			errs = append(errs, fmt.Sprintf("%s: %s %d is repeated", path, field, v))
		}
		seen[v] = true
	}
	return errs
}

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// StubProvider answers offline with deterministic, schema-valid JSON. It reads the
// marker lines of the prompt to decide what to produce.
type StubProvider struct{}

func NewStubProvider() *StubProvider { return &StubProvider{} }

func (s *StubProvider) Name() string { return "stub" }

func (s *StubProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	task, _ := MarkerValue(prompt, MarkerTask)
	var v any
	switch task {
	case TaskContentDigest:
		v = stubDigest(prompt)
	case TaskCurriculumDraft, TaskCurriculumRepair:
		v = stubDraft(prompt)
	default:
		return "", fmt.Errorf("stub provider: unsupported task %q", task)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}

type stubDigestOut struct {
	KeyConcepts       []string `json:"key_concepts"`
	SkillsIntroduced  []string `json:"skills_introduced"`
	MemorableExamples []string `json:"memorable_examples"`
	DifficultyLevel   string   `json:"difficulty_level"`
	Summary           string   `json:"summary"`
}

func stubDigest(prompt string) stubDigestOut {
	title, _ := MarkerValue(prompt, MarkerContentTitle)
	text := ""
	if i := strings.Index(prompt, MarkerText); i >= 0 {
		text = prompt[i+len(MarkerText):]
	}
	concepts := topWords(text, 3)
	if len(concepts) == 0 && title != "" {
		concepts = []string{title}
	}
	skills := make([]string, 0, len(concepts))
	for _, c := range concepts {
		skills = append(skills, "apply "+c)
	}
	difficulty := "beginner"
	if n := len(strings.Fields(text)); n > 1500 {
		difficulty = "advanced"
	} else if n > 400 {
		difficulty = "intermediate"
	}
	summary := "Introduces " + strings.Join(concepts, ", ") + "."
	if title != "" {
		summary = title + ": " + summary
	}
	return stubDigestOut{
		KeyConcepts:       concepts,
		SkillsIntroduced:  skills,
		MemorableExamples: []string{},
		DifficultyLevel:   difficulty,
		Summary:           summary,
	}
}

// topWords returns the n most frequent words of at least five letters, ties broken alphabetically.
func topWords(text string, n int) []string {
	counts := map[string]int{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if len([]rune(w)) >= 5 {
			counts[w]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

type stubAction struct {
	Title            string  `json:"title"`
	Type             string  `json:"type"`
	Instructions     string  `json:"instructions"`
	ReflectionPrompt *string `json:"reflection_prompt,omitempty"`
	ContentRef       *string `json:"content_ref,omitempty"`
	OrderIndex       int     `json:"order_index"`
}

type stubSession struct {
	Title        string       `json:"title"`
	Summary      string       `json:"summary"`
	KeyTakeaways []string     `json:"key_takeaways"`
	OrderIndex   int          `json:"order_index"`
	Actions      []stubAction `json:"actions"`
}

type stubWeek struct {
	Title      string        `json:"title"`
	Summary    string        `json:"summary"`
	WeekNumber int           `json:"week_number"`
	Sessions   []stubSession `json:"sessions"`
}

type stubDraftOut struct {
	ProgramID     string     `json:"program_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	PacingMode    string     `json:"pacing_mode"`
	DurationWeeks int        `json:"duration_weeks"`
	Weeks         []stubWeek `json:"weeks"`
}

func stubDraft(prompt string) stubDraftOut {
	programID, _ := MarkerValue(prompt, MarkerProgramID)
	title, _ := MarkerValue(prompt, MarkerProgramTitle)
	if title == "" {
		title = "Untitled Program"
	}
	pacing, _ := MarkerValue(prompt, MarkerPacingMode)
	if pacing == "" {
		pacing = "weekly"
	}
	weeks := 1
	if raw, ok := MarkerValue(prompt, MarkerDurationWeeks); ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			weeks = n
		}
	}

	refs := parseContentRefs(prompt)
	perWeek := make([][]contentRef, weeks)
	for i, ref := range refs {
		w := i * weeks / len(refs)
		perWeek[w] = append(perWeek[w], ref)
	}

	out := stubDraftOut{
		ProgramID:     programID,
		Title:         title,
		Description:   fmt.Sprintf("A %d-week program built from %d content items.", weeks, len(refs)),
		PacingMode:    pacing,
		DurationWeeks: weeks,
	}
	for w := 0; w < weeks; w++ {
		weekTitle := fmt.Sprintf("Week %d", w+1)
		if len(perWeek[w]) > 0 && perWeek[w][0].Title != "" {
			weekTitle += ": " + perWeek[w][0].Title
		}
		var actions []stubAction
		for _, ref := range perWeek[w] {
			id := ref.ID
			actionType, verb := "watch", "Watch"
			if ref.Type == "document" {
				actionType, verb = "read", "Read"
			}
			actions = append(actions, stubAction{
				Title:        verb + " " + nonEmpty(ref.Title, "the lesson"),
				Type:         actionType,
				Instructions: verb + " the material and note one idea to try this week.",
				ContentRef:   &id,
				OrderIndex:   len(actions),
			})
		}
		if len(actions) == 0 {
			actions = append(actions, stubAction{
				Title:        "Practice",
				Type:         "do",
				Instructions: "Apply what you learned so far in one short practice block.",
				OrderIndex:   0,
			})
		}
		reflection := "What changed for you this week?"
		actions = append(actions, stubAction{
			Title:            "Reflect",
			Type:             "reflect",
			Instructions:     "Write a few sentences about your progress.",
			ReflectionPrompt: &reflection,
			OrderIndex:       len(actions),
		})
		out.Weeks = append(out.Weeks, stubWeek{
			Title:      weekTitle,
			Summary:    fmt.Sprintf("Week %d of %s.", w+1, title),
			WeekNumber: w + 1,
			Sessions: []stubSession{{
				Title:        weekTitle + " session",
				Summary:      "Work through this week's material.",
				KeyTakeaways: []string{"Understand the core idea", "Practice it once"},
				OrderIndex:   0,
				Actions:      actions,
			}},
		})
	}
	return out
}

func nonEmpty(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// StubEmbedder derives vectors from sha256 of the input text.
type StubEmbedder struct {
	Dims int
}

func NewStubEmbedder() *StubEmbedder { return &StubEmbedder{Dims: 16} }

func (e *StubEmbedder) Name() string { return "stub" }

func (e *StubEmbedder) Model() string { return fmt.Sprintf("stub-sha256-%d", e.dims()) }

func (e *StubEmbedder) dims() int {
	if e.Dims <= 0 {
		return 16
	}
	return e.Dims
}

func (e *StubEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dims := e.dims()
	out := make([][]float32, len(inputs))
	for i, s := range inputs {
		h := sha256.Sum256([]byte(s))
		vec := make([]float32, dims)
		for j := 0; j < dims; j++ {
			u := binary.LittleEndian.Uint32(h[(j*4)%(len(h)-3):])
			vec[j] = float32(u%10_000)/10_000.0 - 0.5
		}
		out[i] = vec
	}
	return out, nil
}

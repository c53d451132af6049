package draft

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/curriculum-backend/internal/platform/llm"
)

const (
	PromptVersion = "draft-v3"
	snippetChars  = 600
)

const envelopeInstructions = `Return ONLY a JSON object with this shape:
{
  "program_id": "<PROGRAM_ID>",
  "title": "program title",
  "description": "1-2 sentences",
  "pacing_mode": "weekly" | "self_paced",
  "duration_weeks": <DURATION_WEEKS>,
  "weeks": [
    {
      "week_number": 1,
      "title": "...",
      "summary": "...",
      "sessions": [
        {
          "title": "...",
          "summary": "...",
          "key_takeaways": ["2-3 short takeaways"],
          "order_index": 0,
          "actions": [
            {
              "title": "...",
              "type": "watch" | "read" | "do" | "reflect",
              "instructions": "...",
              "reflection_prompt": "only for reflect actions",
              "content_ref": "content id for watch/read actions",
              "order_index": 0
            }
          ]
        }
      ]
    }
  ]
}`

func buildPrompt(gc GenerationContext) string {
	var b strings.Builder
	writeHeader(&b, gc, llm.TaskCurriculumDraft)
	b.WriteString(`
You are designing a transformation-focused program from a creator's existing content.
Rules:
- Produce exactly DURATION_WEEKS weeks, numbered 1..DURATION_WEEKS.
- Every content item must be referenced by at least one watch or read action (content_ref = its id).
- Spread content evenly across weeks and keep items from the same cluster together.
- Each session has 2-3 key takeaways and at least one action. order_index values start at 0 and are contiguous.
- End each week with a reflect action that has a reflection_prompt.
- Use the creator's own examples and language from the digests.

`)
	writeContent(&b, gc)
	b.WriteString("\n")
	b.WriteString(envelopeInstructions)
	b.WriteString("\n")
	return b.String()
}

func buildRepairPrompt(gc GenerationContext, badOutput string, errs []string) string {
	var b strings.Builder
	writeHeader(&b, gc, llm.TaskCurriculumRepair)
	b.WriteString(`
Your previous curriculum JSON failed validation. Fix every listed error and return the full
corrected JSON object. Keep everything that was already valid.

VALIDATION_ERRORS_TO_FIX:
`)
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e)
		b.WriteString("\n")
	}
	b.WriteString("\nPREVIOUS_OUTPUT:\n")
	b.WriteString(strings.TrimSpace(badOutput))
	b.WriteString("\n\n")
	writeContent(&b, gc)
	b.WriteString("\n")
	b.WriteString(envelopeInstructions)
	b.WriteString("\n")
	return b.String()
}

func writeHeader(b *strings.Builder, gc GenerationContext, task string) {
	fmt.Fprintf(b, "%s %s\n", llm.MarkerTask, task)
	fmt.Fprintf(b, "%s %s\n", llm.MarkerProgramID, gc.ProgramID)
	fmt.Fprintf(b, "%s %s\n", llm.MarkerProgramTitle, oneLine(gc.Title))
	fmt.Fprintf(b, "%s %s\n", llm.MarkerPacingMode, gc.PacingMode)
	fmt.Fprintf(b, "%s %d\n", llm.MarkerDurationWeeks, gc.DurationWeeks)
	for _, g := range gc.Clusters {
		for _, it := range g.Items {
			b.WriteString(llm.ContentRefLine(it.ContentID, it.ContentType, it.Title))
			b.WriteString("\n")
		}
	}
}

func writeContent(b *strings.Builder, gc GenerationContext) {
	b.WriteString("PROGRAM:\n")
	fmt.Fprintf(b, "title: %s\n", oneLine(gc.Title))
	if s := strings.TrimSpace(gc.Description); s != "" {
		fmt.Fprintf(b, "description: %s\n", s)
	}
	if s := strings.TrimSpace(gc.Audience); s != "" {
		fmt.Fprintf(b, "target_audience: %s\n", s)
	}
	if s := strings.TrimSpace(gc.Transformation); s != "" {
		fmt.Fprintf(b, "transformation: %s\n", s)
	}

	b.WriteString("\nCONTENT_BY_CLUSTER:\n")
	for _, g := range gc.Clusters {
		fmt.Fprintf(b, "\ncluster %d:\n", g.ClusterID)
		for _, it := range g.Items {
			fmt.Fprintf(b, "- id=%s type=%s title=%q\n", it.ContentID, it.ContentType, oneLine(it.Title))
			if d, ok := gc.Digests[it.ContentID]; ok {
				raw, err := json.Marshal(d)
				if err == nil {
					fmt.Fprintf(b, "  digest: %s\n", raw)
					continue
				}
			}
			if s := snippet(it.Text); s != "" {
				fmt.Fprintf(b, "  excerpt: %s\n", s)
			}
		}
	}
}

func snippet(text string) string {
	text = oneLine(text)
	if utf8.RuneCountInString(text) <= snippetChars {
		return text
	}
	return string([]rune(text)[:snippetChars]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

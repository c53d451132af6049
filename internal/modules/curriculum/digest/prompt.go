package digest

import (
	"fmt"
	"strings"

	"github.com/yungbote/curriculum-backend/internal/platform/llm"
)

// PromptVersion is folded into cache keys; bump it when the prompt or parsing changes.
const PromptVersion = "digest-v2"

func buildPrompt(item Item, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", llm.MarkerTask, llm.TaskContentDigest)
	fmt.Fprintf(&b, "%s %s\n", llm.MarkerContentTitle, oneLine(item.Title))
	b.WriteString(llm.ContentRefLine(item.ContentID, item.ContentType, item.Title))
	b.WriteString("\n\n")
	b.WriteString(`Read the source material below and extract what a learner would take from it.
Return ONLY a JSON object with exactly these keys:
{
  "key_concepts": ["3-6 short noun phrases"],
  "skills_introduced": ["concrete things the learner can do afterwards"],
  "memorable_examples": ["specific stories, demos or analogies from the material"],
  "difficulty_level": "beginner" | "intermediate" | "advanced",
  "summary": "2-3 sentences in plain language"
}
Use the creator's own examples where possible. Do not invent material that is not in the text.
`)
	b.WriteString("\n")
	b.WriteString(llm.MarkerText)
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

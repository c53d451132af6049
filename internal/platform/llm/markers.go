package llm

import "strings"

// Prompt header lines. Prompt builders emit them one per line ahead of the free-form
// instructions so offline providers can recover the request shape without parsing prose.
const (
	MarkerTask          = "TASK:"
	MarkerProgramID     = "PROGRAM_ID:"
	MarkerProgramTitle  = "PROGRAM_TITLE:"
	MarkerPacingMode    = "PACING_MODE:"
	MarkerDurationWeeks = "DURATION_WEEKS:"
	MarkerContentRef    = "CONTENT_REF:"
	MarkerContentTitle  = "CONTENT_TITLE:"
	MarkerText          = "TEXT:"
)

const (
	TaskContentDigest    = "content_digest"
	TaskCurriculumDraft  = "curriculum_draft"
	TaskCurriculumRepair = "curriculum_repair"
)

// ContentRefLine renders one CONTENT_REF marker: "CONTENT_REF: id | type | title".
func ContentRefLine(id, contentType, title string) string {
	title = strings.ReplaceAll(strings.TrimSpace(title), "\n", " ")
	return MarkerContentRef + " " + id + " | " + contentType + " | " + title
}

// MarkerValue returns the trimmed value of the first line starting with marker.
func MarkerValue(prompt, marker string) (string, bool) {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}

type contentRef struct {
	ID    string
	Type  string
	Title string
}

func parseContentRefs(prompt string) []contentRef {
	var out []contentRef
	seen := map[string]bool{}
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, MarkerContentRef) {
			continue
		}
		parts := strings.SplitN(strings.TrimSpace(strings.TrimPrefix(line, MarkerContentRef)), "|", 3)
		ref := contentRef{ID: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			ref.Type = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			ref.Title = strings.TrimSpace(parts[2])
		}
		if ref.ID == "" || seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true
		out = append(out, ref)
	}
	return out
}

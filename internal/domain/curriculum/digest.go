package curriculum

const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

func ValidDifficulty(d string) bool {
	return d == DifficultyBeginner || d == DifficultyIntermediate || d == DifficultyAdvanced
}

// ContentDigest is the structured Pass-1 extraction for one content item.
// Fallback is set when the digest was built without a usable model response.
type ContentDigest struct {
	ContentID         string   `json:"content_id" yaml:"content_id"`
	KeyConcepts       []string `json:"key_concepts" yaml:"key_concepts"`
	SkillsIntroduced  []string `json:"skills_introduced" yaml:"skills_introduced"`
	MemorableExamples []string `json:"memorable_examples" yaml:"memorable_examples"`
	DifficultyLevel   string   `json:"difficulty_level" yaml:"difficulty_level"`
	Summary           string   `json:"summary" yaml:"summary"`
	Fallback          bool     `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

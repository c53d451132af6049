package curriculum_generate

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

//go:embed curriculum_generate.yaml
var embeddedSchedule []byte

type StageSpec struct {
	Name     string `yaml:"name"`
	Progress int    `yaml:"progress"`
	End      int    `yaml:"end,omitempty"`
}

type Schedule struct {
	Version int         `yaml:"version"`
	Stages  []StageSpec `yaml:"stages"`

	byName map[string]StageSpec
}

// DefaultSchedule is used when neither the override file nor the embedded schedule is usable.
func DefaultSchedule() *Schedule {
	s := &Schedule{
		Version: 1,
		Stages: []StageSpec{
			{Name: jobdomain.StageQueued, Progress: 0},
			{Name: jobdomain.StageEmbedding, Progress: 5},
			{Name: jobdomain.StageClustering, Progress: 25},
			{Name: jobdomain.StageAnalyzing, Progress: 35, End: 60},
			{Name: jobdomain.StageGenerating, Progress: 60},
			{Name: jobdomain.StageValidating, Progress: 85},
			{Name: jobdomain.StagePersisting, Progress: 90},
			{Name: jobdomain.StageComplete, Progress: 100},
		},
	}
	s.index()
	return s
}

// LoadSchedule reads the stage schedule from path, or the embedded file when path is empty.
// Any read, parse or validation problem falls back to DefaultSchedule with a warning.
func LoadSchedule(log *logger.Logger, path string) *Schedule {
	raw := embeddedSchedule
	source := "embedded"
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			log.Warn("pipeline schedule override unreadable; using embedded", "path", p, "error", err)
		} else {
			raw, source = b, p
		}
	}
	s, err := ParseSchedule(raw)
	if err != nil {
		log.Warn("pipeline schedule invalid; using defaults", "source", source, "error", err)
		return DefaultSchedule()
	}
	return s
}

func ParseSchedule(raw []byte) (*Schedule, error) {
	var s Schedule
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.index()
	return &s, nil
}

// Validate requires every stage in jobdomain.StageOrder, in order, with non-decreasing
// progress that starts at 0 and ends at 100.
func (s *Schedule) Validate() error {
	if len(s.Stages) != len(jobdomain.StageOrder) {
		return fmt.Errorf("schedule has %d stages, want %d", len(s.Stages), len(jobdomain.StageOrder))
	}
	prev := 0
	for i, st := range s.Stages {
		if st.Name != jobdomain.StageOrder[i] {
			return fmt.Errorf("stage %d is %q, want %q", i, st.Name, jobdomain.StageOrder[i])
		}
		if st.Progress < prev || st.Progress > 100 {
			return fmt.Errorf("stage %q progress %d is out of order", st.Name, st.Progress)
		}
		if st.End != 0 {
			if st.End < st.Progress {
				return fmt.Errorf("stage %q end %d is before its start %d", st.Name, st.End, st.Progress)
			}
			if i+1 < len(s.Stages) && st.End > s.Stages[i+1].Progress {
				return fmt.Errorf("stage %q end %d overlaps %q", st.Name, st.End, s.Stages[i+1].Name)
			}
		}
		prev = st.Progress
		if st.End > prev {
			prev = st.End
		}
	}
	if s.Stages[0].Progress != 0 || s.Stages[len(s.Stages)-1].Progress != 100 {
		return fmt.Errorf("schedule must start at 0 and end at 100")
	}
	return nil
}

func (s *Schedule) index() {
	s.byName = make(map[string]StageSpec, len(s.Stages))
	for _, st := range s.Stages {
		s.byName[st.Name] = st
	}
}

// Start is the progress reported when stage begins.
func (s *Schedule) Start(stage string) int {
	return s.byName[stage].Progress
}

// Within maps done/total of a banded stage onto [start, end].
func (s *Schedule) Within(stage string, done, total int) int {
	st := s.byName[stage]
	end := st.End
	if end <= st.Progress {
		return st.Progress
	}
	// Nothing to do means the stage is done.
	if total <= 0 {
		return end
	}
	if done > total {
		done = total
	}
	return st.Progress + (end-st.Progress)*done/total
}

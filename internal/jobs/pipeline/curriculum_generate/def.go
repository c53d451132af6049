package curriculum_generate

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/curriculum-backend/internal/data/repos"
	jobdomain "github.com/yungbote/curriculum-backend/internal/domain/jobs"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/digest"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/draft"
	"github.com/yungbote/curriculum-backend/internal/platform/llm"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

var (
	ErrNoUsableContent   = errors.New("program has no usable content")
	ErrEmbeddingMismatch = errors.New("embedding provider returned an unexpected number of vectors")
)

type Deps struct {
	DB          *gorm.DB
	Log         *logger.Logger
	Programs    repos.ProgramRepo
	Content     repos.ContentItemRepo
	Embeddings  repos.EmbeddingRepo
	Assignments repos.ClusterAssignmentRepo
	Curriculum  repos.CurriculumRepo
	Embedder    llm.Embedder
	Extractor   *digest.Extractor
	Generator   *draft.Generator
	// Schedule defaults to the embedded stage schedule.
	Schedule *Schedule
	// ClusterK <= 0 lets the clustering engine pick k from the item count.
	ClusterK int
}

type Pipeline struct {
	db          *gorm.DB
	log         *logger.Logger
	programs    repos.ProgramRepo
	content     repos.ContentItemRepo
	embeddings  repos.EmbeddingRepo
	assignments repos.ClusterAssignmentRepo
	curriculum  repos.CurriculumRepo
	embedder    llm.Embedder
	extractor   *digest.Extractor
	generator   *draft.Generator
	schedule    *Schedule
	clusterK    int
}

func New(d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	schedule := d.Schedule
	if schedule == nil {
		schedule = LoadSchedule(log, "")
	}
	return &Pipeline{
		db:          d.DB,
		log:         log.With("job", jobdomain.JobTypeCurriculumGenerate),
		programs:    d.Programs,
		content:     d.Content,
		embeddings:  d.Embeddings,
		assignments: d.Assignments,
		curriculum:  d.Curriculum,
		embedder:    d.Embedder,
		extractor:   d.Extractor,
		generator:   d.Generator,
		schedule:    schedule,
		clusterK:    d.ClusterK,
	}
}

func (p *Pipeline) Type() string { return jobdomain.JobTypeCurriculumGenerate }

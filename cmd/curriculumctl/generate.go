package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/curriculum-backend/internal/app"
	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/domain/curriculum"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/cluster"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/digest"
	"github.com/yungbote/curriculum-backend/internal/modules/curriculum/draft"
	"github.com/yungbote/curriculum-backend/internal/platform/llm"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type programFile struct {
	ID             string        `yaml:"id"`
	Title          string        `yaml:"title"`
	Description    string        `yaml:"description"`
	TargetAudience string        `yaml:"target_audience"`
	Transformation string        `yaml:"transformation"`
	DurationWeeks  int           `yaml:"duration_weeks"`
	PacingMode     string        `yaml:"pacing_mode"`
	Items          []contentFile `yaml:"items"`
}

type contentFile struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	ContentType string  `yaml:"content_type"`
	Text        *string `yaml:"text"`
}

type generateReport struct {
	Draft    *types.CurriculumDraft `json:"draft" yaml:"draft"`
	Clusters []types.Cluster        `json:"clusters" yaml:"clusters"`
	Digests  []types.ContentDigest  `json:"digests,omitempty" yaml:"digests,omitempty"`
	Skipped  []string               `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

type generateOptions struct {
	provider    string
	k           int
	format      string
	showDigests bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate FILE",
		Short: "Generate a curriculum draft from a program file",
		Long: `Runs embedding, clustering, content analysis and drafting for a program file
and prints the validated draft. Nothing is written to the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := root.logger()
			if err != nil {
				return err
			}
			defer log.Sync()

			var in programFile
			if err := readInput(args[0], &in); err != nil {
				return err
			}
			cfg := app.LoadConfig(log)
			if opts.provider != "" {
				cfg.LLMProvider = strings.ToLower(opts.provider)
			}
			provider, embedder, err := app.SelectProviders(log, cfg)
			if err != nil {
				return err
			}
			extractor := digest.NewExtractor(log, provider, nil, digest.Config{Concurrency: cfg.DigestConcurrency})
			report, err := runGenerate(cmd.Context(), log, in, embedder, extractor, draft.NewGenerator(log, provider), opts.k)
			if err != nil {
				return err
			}
			if !opts.showDigests {
				report.Digests = nil
			}
			return writeOutput(cmd.OutOrStdout(), opts.format, report)
		},
	}
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Override LLM_PROVIDER (openai|anthropic|stub|auto)")
	cmd.Flags().IntVar(&opts.k, "k", 0, "Number of clusters; 0 picks from the item count")
	cmd.Flags().StringVarP(&opts.format, "output", "o", "json", "Output format: json|yaml")
	cmd.Flags().BoolVar(&opts.showDigests, "digests", false, "Include per-item digests in the output")
	return cmd
}

func runGenerate(ctx context.Context, log *logger.Logger, in programFile, embedder llm.Embedder, extractor *digest.Extractor, gen *draft.Generator, k int) (*generateReport, error) {
	program, items, err := in.toDomain()
	if err != nil {
		return nil, err
	}

	report := &generateReport{}
	var (
		usable []*types.ContentItem
		texts  []string
	)
	for _, it := range items {
		text, ok := it.EmbeddingInput()
		if !ok {
			report.Skipped = append(report.Skipped, it.ID.String())
			continue
		}
		usable = append(usable, it)
		texts = append(texts, text)
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("no usable content: every item lacks text")
	}

	log.Info("Embedding content", "items", len(usable), "model", llm.ModelOf(embedder))
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(vectors) != len(usable) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d items", len(vectors), len(usable))
	}
	ev := make([]types.EmbeddingVector, len(usable))
	for i, it := range usable {
		ev[i] = types.EmbeddingVector{ContentID: it.ID.String(), Vector: vectors[i]}
	}

	clusters, err := cluster.Cluster(ev, k)
	if err != nil {
		return nil, fmt.Errorf("cluster content: %w", err)
	}
	report.Clusters = clusters

	ditems := make([]digest.Item, len(usable))
	for i, it := range usable {
		ditems[i] = digest.Item{ContentID: it.ID.String(), Title: it.Title, Text: it.UsableText(), ContentType: it.ContentType}
	}
	digests, err := extractor.Extract(ctx, ditems, func(done, total int) {
		log.Debug("Analyzed content", "done", done, "total", total)
	})
	if err != nil {
		return nil, fmt.Errorf("extract digests: %w", err)
	}
	report.Digests = digests

	d, err := gen.Generate(ctx, draft.NewContext(program, usable, clusters, digests))
	if err != nil {
		return nil, fmt.Errorf("generate draft: %w", err)
	}
	known := make([]string, len(usable))
	for i, it := range usable {
		known[i] = it.ID.String()
	}
	if res := draft.Validate(d, draft.Options{ExpectedWeeks: program.DurationWeeks, KnownContentIDs: known}); !res.OK {
		return nil, fmt.Errorf("draft failed validation: %s", strings.Join(res.Errors, "; "))
	}
	if d.ProgramID == "" {
		d.ProgramID = program.ID.String()
	}
	report.Draft = d
	return report, nil
}

// toDomain applies the same defaults the API does. Items without an id get one derived
// from their position and title so repeated runs reference the same ids.
func (f programFile) toDomain() (*types.Program, []*types.ContentItem, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return nil, nil, fmt.Errorf("program title is required")
	}
	p := &types.Program{
		Title:          title,
		Description:    strings.TrimSpace(f.Description),
		TargetAudience: strings.TrimSpace(f.TargetAudience),
		Transformation: strings.TrimSpace(f.Transformation),
		DurationWeeks:  f.DurationWeeks,
		PacingMode:     strings.TrimSpace(f.PacingMode),
	}
	if p.DurationWeeks == 0 {
		p.DurationWeeks = 4
	}
	if p.DurationWeeks < 1 {
		return nil, nil, fmt.Errorf("duration_weeks must be >= 1")
	}
	if p.PacingMode == "" {
		p.PacingMode = curriculum.PacingWeekly
	}
	p.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("program:"+title))
	if f.ID != "" {
		id, err := uuid.Parse(f.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("program id: %w", err)
		}
		p.ID = id
	}

	items := make([]*types.ContentItem, 0, len(f.Items))
	for i, it := range f.Items {
		ct := strings.ToLower(strings.TrimSpace(it.ContentType))
		if ct == "" {
			ct = curriculum.ContentTypeDocument
		}
		if !curriculum.ValidContentType(ct) {
			return nil, nil, fmt.Errorf("items[%d].content_type %q must be video or document", i, it.ContentType)
		}
		row := &types.ContentItem{
			ProgramID:   p.ID,
			Title:       strings.TrimSpace(it.Title),
			ContentType: ct,
			Text:        it.Text,
			Position:    i,
		}
		if it.ID != "" {
			id, err := uuid.Parse(it.ID)
			if err != nil {
				return nil, nil, fmt.Errorf("items[%d].id: %w", i, err)
			}
			row.ID = id
		} else {
			row.ID = uuid.NewSHA1(p.ID, []byte(fmt.Sprintf("%d:%s", i, row.Title)))
		}
		items = append(items, row)
	}
	return p, items, nil
}

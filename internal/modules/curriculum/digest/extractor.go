// Package digest turns raw content text into structured per-item digests (Pass 1).
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/curriculum-backend/internal/domain"
	"github.com/yungbote/curriculum-backend/internal/domain/curriculum"
	"github.com/yungbote/curriculum-backend/internal/observability"
	"github.com/yungbote/curriculum-backend/internal/platform/llm"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

// Item is one content source to digest.
type Item struct {
	ContentID   string
	Title       string
	Text        string
	ContentType string
}

// Cache stores digests between runs. Errors are logged and otherwise ignored.
type Cache interface {
	Get(ctx context.Context, key string) (*types.ContentDigest, bool, error)
	Set(ctx context.Context, key string, d *types.ContentDigest) error
}

type Config struct {
	// Concurrency is the batch size; items in a batch run in parallel.
	Concurrency  int
	MinTextChars int
	MaxTextChars int
	MaxListItems int
}

func DefaultConfig() Config {
	return Config{
		Concurrency:  3,
		MinTextChars: 50,
		MaxTextChars: 12000,
		MaxListItems: 8,
	}
}

type Extractor struct {
	log      *logger.Logger
	provider llm.Provider
	cache    Cache
	cfg      Config
}

// NewExtractor builds an Extractor. cache may be nil.
func NewExtractor(log *logger.Logger, provider llm.Provider, cache Cache, cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = def.MinTextChars
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = def.MaxTextChars
	}
	if cfg.MaxListItems <= 0 {
		cfg.MaxListItems = def.MaxListItems
	}
	return &Extractor{
		log:      log.With("service", "DigestExtractor"),
		provider: provider,
		cache:    cache,
		cfg:      cfg,
	}
}

// Extract returns exactly one digest per item, in input order. Items whose text is too
// short, or whose model call or parse fails, get a fallback digest. Only cancellation of
// ctx is returned as an error.
//
// onProgress, when set, is called after every batch with (completed, total). Empty input
// reports (0, 0) once so callers can close out the stage.
func (e *Extractor) Extract(ctx context.Context, items []Item, onProgress func(completed, total int)) ([]types.ContentDigest, error) {
	out := make([]types.ContentDigest, len(items))
	total := len(items)
	if total == 0 && onProgress != nil {
		onProgress(0, 0)
	}
	for start := 0; start < total; start += e.cfg.Concurrency {
		end := start + e.cfg.Concurrency
		if end > total {
			end = total
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Concurrency)
		for i := start; i < end; i++ {
			g.Go(func() error {
				d, err := e.digestOne(gctx, items[i])
				if err != nil {
					return err
				}
				out[i] = d
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(end, total)
		}
	}
	return out, nil
}

func (e *Extractor) digestOne(ctx context.Context, item Item) (types.ContentDigest, error) {
	if err := ctx.Err(); err != nil {
		return types.ContentDigest{}, err
	}
	text := strings.TrimSpace(item.Text)
	if utf8.RuneCountInString(text) < e.cfg.MinTextChars {
		observability.Current().IncDigest("fallback")
		return Fallback(item), nil
	}
	text = truncateRunes(text, e.cfg.MaxTextChars)

	key := CacheKey(item.ContentID, text)
	if e.cache != nil {
		if cached, ok, err := e.cache.Get(ctx, key); err != nil {
			e.log.Warn("digest cache get failed", "content_id", item.ContentID, "error", err)
		} else if ok && cached != nil {
			observability.Current().IncDigest("cached")
			d := *cached
			d.ContentID = item.ContentID
			return d, nil
		}
	}

	raw, err := e.provider.Complete(ctx, buildPrompt(item, text))
	if err != nil {
		if ctx.Err() != nil {
			return types.ContentDigest{}, ctx.Err()
		}
		e.log.Warn("digest model call failed; using fallback", "content_id", item.ContentID, "error", err)
		observability.Current().IncDigest("fallback")
		return Fallback(item), nil
	}
	d, err := e.parse(item, raw)
	if err != nil {
		e.log.Warn("digest response unusable; using fallback", "content_id", item.ContentID, "error", err)
		observability.Current().IncDigest("fallback")
		return Fallback(item), nil
	}
	observability.Current().IncDigest("llm")

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, &d); err != nil {
			e.log.Warn("digest cache set failed", "content_id", item.ContentID, "error", err)
		}
	}
	return d, nil
}

type rawDigest struct {
	KeyConcepts       []string `json:"key_concepts"`
	SkillsIntroduced  []string `json:"skills_introduced"`
	MemorableExamples []string `json:"memorable_examples"`
	DifficultyLevel   string   `json:"difficulty_level"`
	Summary           string   `json:"summary"`
}

func (e *Extractor) parse(item Item, raw string) (types.ContentDigest, error) {
	var r rawDigest
	if err := llm.DecodeJSON(raw, &r); err != nil {
		return types.ContentDigest{}, err
	}
	d := types.ContentDigest{
		ContentID:         item.ContentID,
		KeyConcepts:       cleanList(r.KeyConcepts, e.cfg.MaxListItems),
		SkillsIntroduced:  cleanList(r.SkillsIntroduced, e.cfg.MaxListItems),
		MemorableExamples: cleanList(r.MemorableExamples, e.cfg.MaxListItems),
		DifficultyLevel:   normalizeDifficulty(r.DifficultyLevel),
		Summary:           strings.TrimSpace(r.Summary),
	}
	if d.Summary == "" {
		d.Summary = strings.TrimSpace(item.Title)
	}
	return d, nil
}

// Fallback builds a digest from the title alone.
func Fallback(item Item) types.ContentDigest {
	title := strings.TrimSpace(item.Title)
	concepts := []string{}
	if title != "" {
		concepts = append(concepts, title)
	}
	return types.ContentDigest{
		ContentID:         item.ContentID,
		KeyConcepts:       concepts,
		SkillsIntroduced:  []string{},
		MemorableExamples: []string{},
		DifficultyLevel:   curriculum.DifficultyBeginner,
		Summary:           title,
		Fallback:          true,
	}
}

// CacheKey identifies a digest by content, text and prompt version.
func CacheKey(contentID, text string) string {
	sum := sha256.Sum256([]byte(text))
	return PromptVersion + ":" + contentID + ":" + hex.EncodeToString(sum[:16])
}

func normalizeDifficulty(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if curriculum.ValidDifficulty(s) {
		return s
	}
	return curriculum.DifficultyBeginner
}

func cleanList(in []string, max int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}

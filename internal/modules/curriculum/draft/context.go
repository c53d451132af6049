// Package draft generates the week/session/action curriculum from clustered content (Pass 2).
package draft

import (
	types "github.com/yungbote/curriculum-backend/internal/domain"
)

// GenerationContext is everything the draft prompt is built from.
type GenerationContext struct {
	ProgramID      string
	Title          string
	Description    string
	Audience       string
	Transformation string
	DurationWeeks  int
	PacingMode     string
	Clusters       []ClusterGroup
	// Digests is keyed by content id. Items without a digest are described by a text snippet.
	Digests map[string]types.ContentDigest
}

type ClusterGroup struct {
	ClusterID int
	Items     []ClusterItem
}

type ClusterItem struct {
	ContentID   string
	Title       string
	Text        string
	ContentType string
}

// ContentIDs returns every content id across clusters, in cluster order.
func (c GenerationContext) ContentIDs() []string {
	var out []string
	for _, g := range c.Clusters {
		for _, it := range g.Items {
			out = append(out, it.ContentID)
		}
	}
	return out
}

func (c GenerationContext) itemCount() int {
	n := 0
	for _, g := range c.Clusters {
		n += len(g.Items)
	}
	return n
}

// NewContext assembles a GenerationContext from a program, its usable items, their
// clusters and digests. Cluster members missing from items are skipped.
func NewContext(program *types.Program, items []*types.ContentItem, clusters []types.Cluster, digests []types.ContentDigest) GenerationContext {
	gc := GenerationContext{Digests: make(map[string]types.ContentDigest, len(digests))}
	if program != nil {
		gc.ProgramID = program.ID.String()
		gc.Title = program.Title
		gc.Description = program.Description
		gc.Audience = program.TargetAudience
		gc.Transformation = program.Transformation
		gc.DurationWeeks = program.DurationWeeks
		gc.PacingMode = program.PacingMode
	}
	for _, d := range digests {
		gc.Digests[d.ContentID] = d
	}
	byID := make(map[string]*types.ContentItem, len(items))
	for _, it := range items {
		byID[it.ID.String()] = it
	}
	for _, c := range clusters {
		g := ClusterGroup{ClusterID: c.ClusterID}
		for _, id := range c.ContentIDs {
			it := byID[id]
			if it == nil {
				continue
			}
			g.Items = append(g.Items, ClusterItem{
				ContentID:   id,
				Title:       it.Title,
				Text:        it.UsableText(),
				ContentType: it.ContentType,
			})
		}
		if len(g.Items) > 0 {
			gc.Clusters = append(gc.Clusters, g)
		}
	}
	return gc
}

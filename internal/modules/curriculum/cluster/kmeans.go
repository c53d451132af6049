// Package cluster groups content embeddings into topical buckets with a deterministic k-means.
package cluster

import (
	"errors"
	"fmt"

	types "github.com/yungbote/curriculum-backend/internal/domain"
)

// MaxIterations caps the assign/recompute loop.
const MaxIterations = 50

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DefaultK is max(1, min(n, ceil(n/3))).
func DefaultK(n int) int {
	k := (n + 2) / 3
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}
	return k
}

// Cluster partitions items into at most k clusters. k <= 0 selects DefaultK.
//
// Centroid i starts at item floor(i*n/k), so identical input always yields identical
// output. Clusters come back ordered by id with members in input order. Clusters that
// end up empty are dropped and the rest renumbered 0..m-1.
func Cluster(items []types.EmbeddingVector, k int) ([]types.Cluster, error) {
	n := len(items)
	if n == 0 {
		return []types.Cluster{}, nil
	}
	dim := len(items[0].Vector)
	for i := 1; i < n; i++ {
		if len(items[i].Vector) != dim {
			return nil, fmt.Errorf("%w: item %d (%s) has %d dimensions, item 0 (%s) has %d",
				ErrDimensionMismatch, i, items[i].ContentID, len(items[i].Vector), items[0].ContentID, dim)
		}
	}
	if k <= 0 {
		k = DefaultK(n)
	}
	if n <= k {
		out := make([]types.Cluster, n)
		for i, it := range items {
			out[i] = types.Cluster{ClusterID: i, ContentIDs: []string{it.ContentID}}
		}
		return out, nil
	}

	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = toFloat64(items[i*n/k].Vector)
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	for iter := 0; iter < MaxIterations; iter++ {
		changed := false
		for i, it := range items {
			best := nearest(it.Vector, centroids)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		recompute(items, assign, centroids)
	}

	members := make([][]string, k)
	for i, c := range assign {
		members[c] = append(members[c], items[i].ContentID)
	}
	out := make([]types.Cluster, 0, k)
	for _, ids := range members {
		if len(ids) == 0 {
			continue
		}
		out = append(out, types.Cluster{ClusterID: len(out), ContentIDs: ids})
	}
	return out, nil
}

// nearest returns the centroid index with the smallest squared distance; ties go to the lower index.
func nearest(v []float32, centroids [][]float64) int {
	best := 0
	bestDist := squaredDistance(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := squaredDistance(v, centroids[c]); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

// recompute sets each centroid to the mean of its members. Empty clusters keep their centroid.
func recompute(items []types.EmbeddingVector, assign []int, centroids [][]float64) {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i, c := range assign {
		if sums[c] == nil {
			sums[c] = make([]float64, dim)
		}
		for j, x := range items[i].Vector {
			sums[c][j] += float64(x)
		}
		counts[c]++
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
		centroids[c] = sums[c]
	}
}

func squaredDistance(v []float32, c []float64) float64 {
	var sum float64
	for i := range v {
		d := float64(v[i]) - c[i]
		sum += d * d
	}
	return sum
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

package algorithms

import (
	"math"

	"github.com/dd0wney/gridcascade/pkg/topology"
)

// PageRankOptions configures PageRank algorithm
type PageRankOptions struct {
	DampingFactor float64 // Usually 0.85
	MaxIterations int
	Tolerance     float64 // Convergence threshold (L1 change per iteration)
}

// DefaultPageRankOptions returns default PageRank configuration
func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{
		DampingFactor: 0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// PageRankResult contains PageRank scores for a node subset
type PageRankResult struct {
	Scores     []float64 // indexed by graph node index; zero outside members
	Iterations int
	Converged  bool
}

// PageRank runs weighted power iteration over the subgraph induced by
// members. A walker at v moves to neighbour w with probability proportional
// to 1/weight(v,w), so short lines carry more rank. Scores over members sum
// to 1. Mass at nodes with no member neighbours is spread uniformly.
func PageRank(g *topology.Graph, members []int, opts PageRankOptions) *PageRankResult {
	result := &PageRankResult{Scores: make([]float64, g.Len())}
	n := len(members)
	if n == 0 {
		result.Converged = true
		return result
	}

	local := make(map[int]int, n)
	for li, gi := range members {
		local[gi] = li
	}

	// Transition lists in local indices, weights normalised per source.
	type transition struct {
		to int
		p  float64
	}
	out := make([][]transition, n)
	for li, gi := range members {
		total := 0.0
		for _, nb := range g.Neighbors(gi) {
			if _, ok := local[nb.Index]; ok {
				total += 1.0 / nb.Weight()
			}
		}
		if total == 0 {
			continue
		}
		for _, nb := range g.Neighbors(gi) {
			if lj, ok := local[nb.Index]; ok {
				out[li] = append(out[li], transition{to: lj, p: (1.0 / nb.Weight()) / total})
			}
		}
	}

	scores := make([]float64, n)
	next := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}

	d := opts.DampingFactor
	base := (1.0 - d) / float64(n)

	for result.Iterations < opts.MaxIterations {
		result.Iterations++

		dangling := 0.0
		for i := range out {
			if len(out[i]) == 0 {
				dangling += scores[i]
			}
		}
		share := base + d*dangling/float64(n)
		for i := range next {
			next[i] = share
		}
		for i, ts := range out {
			for _, t := range ts {
				next[t.to] += d * scores[i] * t.p
			}
		}

		diff := 0.0
		for i := range next {
			diff += math.Abs(next[i] - scores[i])
		}
		scores, next = next, scores

		if diff < opts.Tolerance {
			result.Converged = true
			break
		}
	}

	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	for li, gi := range members {
		if sum > 0 {
			result.Scores[gi] = scores[li] / sum
		}
	}

	return result
}

package algorithms

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"runtime"

	"github.com/dd0wney/gridcascade/pkg/parallel"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// distanceEpsilon is the relative tolerance under which two weighted path
// lengths count as equal when counting shortest paths.
const distanceEpsilon = 1e-9

// BetweennessOptions configures BrandesBetweenness.
type BetweennessOptions struct {
	// SampleSources limits the number of source nodes. Zero, or a value not
	// smaller than the member count, runs every source.
	SampleSources int
	// Seed drives source selection when sampling.
	Seed int64
	// Workers is the number of goroutines. Zero uses GOMAXPROCS.
	Workers int
}

// BetweennessResult holds normalised betweenness for a node subset.
type BetweennessResult struct {
	// Scores is indexed by graph node index. Nodes outside the member set
	// stay zero.
	Scores  []float64
	Sources int
	Sampled bool
}

// BrandesBetweenness computes distance-weighted betweenness centrality
// restricted to members (typically one connected component). Shortest paths
// use Dijkstra with edge weights max(distance, MinEdgeWeightKM).
//
// Raw undirected sums are divided by (n-1)(n-2) and clamped to [0,1]. When
// sampling k < n sources the raw sums are first scaled by n/k.
func BrandesBetweenness(ctx context.Context, g *topology.Graph, members []int, opts BetweennessOptions) (*BetweennessResult, error) {
	result := &BetweennessResult{Scores: make([]float64, g.Len())}
	n := len(members)
	if n == 0 {
		return result, nil
	}

	sources := members
	if opts.SampleSources > 0 && opts.SampleSources < n {
		sources = sampleSources(members, opts.SampleSources, opts.Seed)
		result.Sampled = true
	}
	result.Sources = len(sources)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(sources))

	mask := memberMask(g.Len(), members)
	partials := make([][]float64, workers)

	err := parallel.ForEach(ctx, workers, workers, func(w int) {
		acc := make([]float64, g.Len())
		state := newBrandesState(g.Len())
		for i := w; i < len(sources); i += workers {
			if ctx.Err() != nil {
				return
			}
			state.accumulate(g, mask, sources[i], acc)
		}
		partials[w] = acc
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := result.Scores
	for _, acc := range partials {
		for i, v := range acc {
			raw[i] += v
		}
	}

	scale := 1.0
	if result.Sampled {
		scale = float64(n) / float64(len(sources))
	}
	norm := 0.0
	if n > 2 {
		norm = 1.0 / float64((n-1)*(n-2))
	}
	for i := range raw {
		raw[i] = clamp01(raw[i] * scale * norm)
	}

	return result, nil
}

// sampleSources picks k distinct members with a seeded generator. The result
// is sorted so traversal order is independent of the permutation.
func sampleSources(members []int, k int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(members))
	picked := make([]bool, len(members))
	for _, p := range perm[:k] {
		picked[p] = true
	}
	out := make([]int, 0, k)
	for i, m := range members {
		if picked[i] {
			out = append(out, m)
		}
	}
	return out
}

// brandesState holds the per-source scratch buffers, reused across sources.
type brandesState struct {
	dist    []float64
	sigma   []float64
	delta   []float64
	preds   [][]int
	stack   []int
	settled []bool
	touched []int
	pq      distHeap
}

func newBrandesState(n int) *brandesState {
	s := &brandesState{
		dist:    make([]float64, n),
		sigma:   make([]float64, n),
		delta:   make([]float64, n),
		preds:   make([][]int, n),
		settled: make([]bool, n),
	}
	for i := range s.dist {
		s.dist[i] = math.Inf(1)
	}
	return s
}

func (s *brandesState) reset() {
	for _, v := range s.touched {
		s.dist[v] = math.Inf(1)
		s.sigma[v] = 0
		s.delta[v] = 0
		s.preds[v] = s.preds[v][:0]
		s.settled[v] = false
	}
	s.touched = s.touched[:0]
	s.stack = s.stack[:0]
	s.pq = s.pq[:0]
}

// accumulate runs one single-source Dijkstra pass and adds the dependency of
// every node on source into acc.
func (s *brandesState) accumulate(g *topology.Graph, mask []bool, source int, acc []float64) {
	s.reset()

	s.dist[source] = 0
	s.sigma[source] = 1
	s.touched = append(s.touched, source)
	heap.Push(&s.pq, distItem{node: source, dist: 0})

	for s.pq.Len() > 0 {
		item := heap.Pop(&s.pq).(distItem)
		v := item.node
		if s.settled[v] {
			continue
		}
		s.settled[v] = true
		s.stack = append(s.stack, v)

		for _, nb := range g.Neighbors(v) {
			w := nb.Index
			if !mask[w] || s.settled[w] {
				continue
			}
			alt := s.dist[v] + nb.Weight()

			switch {
			case math.IsInf(s.dist[w], 1):
				s.touched = append(s.touched, w)
				s.dist[w] = alt
				s.sigma[w] = s.sigma[v]
				s.preds[w] = append(s.preds[w], v)
				heap.Push(&s.pq, distItem{node: w, dist: alt})
			case nearlyEqual(alt, s.dist[w]):
				s.sigma[w] += s.sigma[v]
				s.preds[w] = append(s.preds[w], v)
			case alt < s.dist[w]:
				s.dist[w] = alt
				s.sigma[w] = s.sigma[v]
				s.preds[w] = append(s.preds[w][:0], v)
				heap.Push(&s.pq, distItem{node: w, dist: alt})
			}
		}
	}

	for i := len(s.stack) - 1; i >= 0; i-- {
		w := s.stack[i]
		for _, v := range s.preds[w] {
			s.delta[v] += (s.sigma[v] / s.sigma[w]) * (1.0 + s.delta[w])
		}
		if w != source {
			acc[w] += s.delta[w]
		}
	}
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= distanceEpsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

type distItem struct {
	node int
	dist float64
}

// distHeap is a min-heap on tentative distance, ties broken by node index.
type distHeap []distItem

func (h distHeap) Len() int { return len(h) }
func (h distHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].node < h[j].node
}
func (h distHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *distHeap) Push(x any) {
	*h = append(*h, x.(distItem))
}

func (h *distHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

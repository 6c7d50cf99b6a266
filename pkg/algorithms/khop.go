package algorithms

import (
	"sync"

	"github.com/dd0wney/gridcascade/pkg/topology"
)

// HopCounts is the number of distinct nodes first reached at each BFS depth.
// Index 0 is depth 1.
type HopCounts []int

// Total returns the number of nodes reached at any depth.
func (h HopCounts) Total() int {
	total := 0
	for _, c := range h {
		total += c
	}
	return total
}

// At returns the count at the given depth (1-based), or 0 when out of range.
func (h HopCounts) At(depth int) int {
	if depth < 1 || depth > len(h) {
		return 0
	}
	return h[depth-1]
}

// bfsScratch is reusable traversal state. Marks use an epoch counter so the
// visited array is never cleared between traversals.
type bfsScratch struct {
	mark     []uint32
	epoch    uint32
	frontier []int
	next     []int
}

var scratchPool sync.Pool

func acquireScratch(n int) *bfsScratch {
	if s, ok := scratchPool.Get().(*bfsScratch); ok && len(s.mark) == n {
		return s
	}
	return &bfsScratch{mark: make([]uint32, n)}
}

func releaseScratch(s *bfsScratch) {
	scratchPool.Put(s)
}

// KHopCounts performs a BFS from source over the whole graph up to maxHops
// levels and counts newly discovered nodes per level. The source itself is
// never counted.
func KHopCounts(g *topology.Graph, source, maxHops int) HopCounts {
	counts := make(HopCounts, maxHops)
	if maxHops < 1 || source < 0 || source >= g.Len() {
		return counts
	}

	s := acquireScratch(g.Len())
	defer releaseScratch(s)

	s.epoch++
	if s.epoch == 0 {
		clear(s.mark)
		s.epoch = 1
	}

	s.mark[source] = s.epoch
	s.frontier = append(s.frontier[:0], source)

	for hop := 0; hop < maxHops && len(s.frontier) > 0; hop++ {
		s.next = s.next[:0]
		for _, v := range s.frontier {
			for _, nb := range g.Neighbors(v) {
				if s.mark[nb.Index] == s.epoch {
					continue
				}
				s.mark[nb.Index] = s.epoch
				s.next = append(s.next, nb.Index)
			}
		}
		counts[hop] = len(s.next)
		s.frontier, s.next = s.next, s.frontier
	}

	return counts
}

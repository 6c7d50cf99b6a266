package algorithms

import (
	"container/heap"
	"sort"

	"github.com/dd0wney/gridcascade/pkg/topology"
)

// RankedNode represents a node with its rank
type RankedNode struct {
	Index  int
	NodeID string
	Score  float64
}

// rankedNodeHeap is a min-heap keyed on score; among equal scores the larger
// ID is "smaller" so it is evicted first.
type rankedNodeHeap []RankedNode

func (h rankedNodeHeap) Len() int { return len(h) }
func (h rankedNodeHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].NodeID > h[j].NodeID
}
func (h rankedNodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *rankedNodeHeap) Push(x any) {
	*h = append(*h, x.(RankedNode))
}

func (h *rankedNodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// TopNodes returns the n highest-scoring nodes, descending, ties by node ID
// ascending. scores is indexed by graph node index. O(len(scores) log n).
func TopNodes(g *topology.Graph, scores []float64, n int) []RankedNode {
	if n <= 0 {
		return nil
	}

	h := make(rankedNodeHeap, 0, n)
	heap.Init(&h)

	for i, score := range scores {
		rn := RankedNode{Index: i, NodeID: g.Node(i).ID, Score: score}
		if h.Len() < n {
			heap.Push(&h, rn)
			continue
		}
		if (rankedNodeHeap{h[0], rn}).Less(0, 1) {
			heap.Pop(&h)
			heap.Push(&h, rn)
		}
	}

	result := make([]RankedNode, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(RankedNode)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].NodeID < result[j].NodeID
	})

	return result
}

package algorithms

import (
	"math"
	"sort"
	"testing"

	"github.com/dd0wney/gridcascade/pkg/topology"
)

type link struct {
	from, to string
	km       float64
}

// buildGraph creates pole nodes for every ID mentioned in links plus extra.
func buildGraph(t *testing.T, links []link, extra ...string) *topology.Graph {
	t.Helper()

	seen := make(map[string]bool)
	var nodes []topology.GridNode
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			nodes = append(nodes, topology.GridNode{ID: id, Type: topology.NodeTypePole})
		}
	}

	edges := make([]topology.GridEdge, 0, len(links))
	for _, l := range links {
		add(l.from)
		add(l.to)
		edges = append(edges, topology.GridEdge{FromNodeID: l.from, ToNodeID: l.to, DistanceKM: l.km, Type: topology.EdgeTypeHierarchical})
	}
	for _, id := range extra {
		add(id)
	}

	return topology.Build(nodes, edges)
}

func allIndices(g *topology.Graph) []int {
	out := make([]int, g.Len())
	for i := range out {
		out[i] = i
	}
	return out
}

func scoreOf(t *testing.T, g *topology.Graph, scores []float64, id string) float64 {
	t.Helper()
	i, ok := g.Index(id)
	if !ok {
		t.Fatalf("unknown node %s", id)
	}
	return scores[i]
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func idsOf(g *topology.Graph, idx []int) []string {
	out := make([]string, len(idx))
	for i, v := range idx {
		out[i] = g.Node(v).ID
	}
	sort.Strings(out)
	return out
}

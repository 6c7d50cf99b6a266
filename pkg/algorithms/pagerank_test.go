package algorithms

import (
	"math"
	"testing"
)

func TestPageRankStar(t *testing.T) {
	g := buildGraph(t, []link{{"HUB", "L1", 1}, {"HUB", "L2", 1}, {"HUB", "L3", 1}})

	res := PageRank(g, allIndices(g), DefaultPageRankOptions())
	if !res.Converged {
		t.Errorf("did not converge in %d iterations", res.Iterations)
	}

	hub := scoreOf(t, g, res.Scores, "HUB")
	sum := 0.0
	for _, id := range []string{"L1", "L2", "L3"} {
		leaf := scoreOf(t, g, res.Scores, id)
		if leaf >= hub {
			t.Errorf("PR(%s)=%v should be below PR(HUB)=%v", id, leaf, hub)
		}
		if math.Abs(leaf-scoreOf(t, g, res.Scores, "L1")) > 1e-9 {
			t.Errorf("symmetric leaves differ: %v", leaf)
		}
		sum += leaf
	}
	sum += hub
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("scores sum to %v, want 1", sum)
	}
}

func TestPageRankFavoursShortLines(t *testing.T) {
	// From the hub, NEAR is ten times more attractive than FAR.
	g := buildGraph(t, []link{{"HUB", "NEAR", 0.1}, {"HUB", "FAR", 1}, {"NEAR", "FAR", 5}})

	res := PageRank(g, allIndices(g), DefaultPageRankOptions())
	if scoreOf(t, g, res.Scores, "NEAR") <= scoreOf(t, g, res.Scores, "FAR") {
		t.Errorf("PR(NEAR)=%v should exceed PR(FAR)=%v",
			scoreOf(t, g, res.Scores, "NEAR"), scoreOf(t, g, res.Scores, "FAR"))
	}
}

func TestPageRankMembersOnly(t *testing.T) {
	g := buildGraph(t, []link{{"A", "B", 1}, {"B", "C", 1}}, "ISOLATED")

	comp, _ := LargestComponent(g, 3)
	res := PageRank(g, comp.Nodes, DefaultPageRankOptions())

	if got := scoreOf(t, g, res.Scores, "ISOLATED"); got != 0 {
		t.Errorf("PR(ISOLATED) = %v, want 0", got)
	}
}

func TestPageRankEmpty(t *testing.T) {
	g := buildGraph(t, nil)
	res := PageRank(g, nil, DefaultPageRankOptions())
	if !res.Converged || len(res.Scores) != 0 {
		t.Errorf("empty PageRank = %+v", res)
	}
}

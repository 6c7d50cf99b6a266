package algorithms

import "testing"

func TestTopNodes(t *testing.T) {
	g := buildGraph(t, nil, "A", "B", "C", "D", "E")
	scores := []float64{0.2, 0.9, 0.5, 0.9, 0.1}

	top := TopNodes(g, scores, 3)
	want := []string{"B", "D", "C"}
	if len(top) != len(want) {
		t.Fatalf("TopNodes() returned %d nodes, want %d", len(top), len(want))
	}
	for i, id := range want {
		if top[i].NodeID != id {
			t.Errorf("top[%d] = %s, want %s", i, top[i].NodeID, id)
		}
	}
}

func TestTopNodesTieKeepsLowestID(t *testing.T) {
	g := buildGraph(t, nil, "A", "B", "C")
	top := TopNodes(g, []float64{1, 1, 1}, 2)

	if top[0].NodeID != "A" || top[1].NodeID != "B" {
		t.Errorf("ties should prefer lower IDs, got %s, %s", top[0].NodeID, top[1].NodeID)
	}
}

func TestTopNodesZero(t *testing.T) {
	g := buildGraph(t, nil, "A")
	if TopNodes(g, []float64{1}, 0) != nil {
		t.Error("TopNodes(n=0) should return nil")
	}
}

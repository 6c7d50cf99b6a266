package algorithms

import (
	"reflect"
	"testing"
)

func TestConnectedComponents(t *testing.T) {
	g := buildGraph(t, []link{
		{"A", "B", 1}, {"B", "C", 1},
		{"X", "Y", 1},
	}, "LONE")

	comps := ConnectedComponents(g)
	if len(comps) != 3 {
		t.Fatalf("got %d components, want 3", len(comps))
	}

	if got := idsOf(g, comps[0].Nodes); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("largest component = %v", got)
	}
	if comps[1].Size() != 2 || comps[2].Size() != 1 {
		t.Errorf("component sizes = %d, %d; want 2, 1", comps[1].Size(), comps[2].Size())
	}
	for i, c := range comps {
		if c.ID != i {
			t.Errorf("component %d has ID %d", i, c.ID)
		}
	}
}

func TestLargestComponentMinSize(t *testing.T) {
	g := buildGraph(t, []link{{"A", "B", 1}, {"C", "D", 1}})

	if _, ok := LargestComponent(g, 3); ok {
		t.Error("no component of size >= 3 exists")
	}
	c, ok := LargestComponent(g, 2)
	if !ok || c.Size() != 2 {
		t.Errorf("LargestComponent(2) = %+v, %v", c, ok)
	}
	if got := idsOf(g, c.Nodes); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("tie should resolve to the lowest index, got %v", got)
	}
}

func TestLargestComponentEmptyGraph(t *testing.T) {
	g := buildGraph(t, nil)
	if _, ok := LargestComponent(g, 0); ok {
		t.Error("empty graph has no component")
	}
}

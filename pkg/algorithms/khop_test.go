package algorithms

import (
	"reflect"
	"testing"
)

func TestKHopCountsPath(t *testing.T) {
	g := buildGraph(t, []link{{"N0", "N1", 1}, {"N1", "N2", 1}, {"N2", "N3", 1}, {"N3", "N4", 1}})

	n0, _ := g.Index("N0")
	if got := KHopCounts(g, n0, 3); !reflect.DeepEqual(got, HopCounts{1, 1, 1}) {
		t.Errorf("KHopCounts(N0) = %v, want [1 1 1]", got)
	}

	n2, _ := g.Index("N2")
	got := KHopCounts(g, n2, 3)
	if !reflect.DeepEqual(got, HopCounts{2, 2, 0}) {
		t.Errorf("KHopCounts(N2) = %v, want [2 2 0]", got)
	}
	if got.Total() != 4 || got.At(1) != 2 || got.At(4) != 0 {
		t.Errorf("Total=%d At(1)=%d At(4)=%d", got.Total(), got.At(1), got.At(4))
	}
}

func TestKHopCountsCycleDoesNotRecount(t *testing.T) {
	g := buildGraph(t, []link{{"A", "B", 1}, {"B", "C", 1}, {"C", "A", 1}})

	a, _ := g.Index("A")
	if got := KHopCounts(g, a, 3); !reflect.DeepEqual(got, HopCounts{2, 0, 0}) {
		t.Errorf("KHopCounts(A) = %v, want [2 0 0]", got)
	}
}

func TestKHopCountsRepeatedCalls(t *testing.T) {
	g := buildGraph(t, []link{{"A", "B", 1}, {"B", "C", 1}})
	a, _ := g.Index("A")

	for i := 0; i < 5; i++ {
		if got := KHopCounts(g, a, 2); !reflect.DeepEqual(got, HopCounts{1, 1}) {
			t.Fatalf("call %d: KHopCounts = %v", i, got)
		}
	}
}

func TestKHopCountsIsolated(t *testing.T) {
	g := buildGraph(t, nil, "ALONE")
	if got := KHopCounts(g, 0, 3).Total(); got != 0 {
		t.Errorf("isolated reach = %d, want 0", got)
	}
}

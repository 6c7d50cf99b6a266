package centrality

import (
	"time"
)

// Snapshot is an immutable set of per-node features produced by one batch.
// Once published it must not be modified.
type Snapshot struct {
	Version         uint64              `json:"version"`
	TopologyVersion uint64              `json:"topology_version"`
	ComputedAt      time.Time           `json:"computed_at"`
	Duration        time.Duration       `json:"duration_ns"`
	ComponentSize   int                 `json:"component_size"`
	SampledSources  int                 `json:"sampled_sources"`
	Method          Method              `json:"method"`
	Features        map[string]Features `json:"features"`
}

// Get returns the features of a node.
func (s *Snapshot) Get(id string) (Features, bool) {
	if s == nil {
		return Features{}, false
	}
	f, ok := s.Features[id]
	return f, ok
}

// Len returns the number of nodes in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Features)
}

// ExactCount returns how many nodes were scored by graph traversal.
func (s *Snapshot) ExactCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, f := range s.Features {
		if f.Exact {
			n++
		}
	}
	return n
}

// Ranked returns all features ordered by SortByRisk. The slice is a copy.
func (s *Snapshot) Ranked() []Features {
	if s == nil {
		return nil
	}
	out := make([]Features, 0, len(s.Features))
	for _, f := range s.Features {
		out = append(out, f)
	}
	SortByRisk(out)
	return out
}

// Age returns how long ago the snapshot was computed.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return now.Sub(s.ComputedAt)
}

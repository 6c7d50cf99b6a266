// Package ranking surfaces patient-zero candidates and the scenario library
// from a centrality snapshot.
package ranking

import (
	"fmt"
	"time"

	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/metrics"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// Default and maximum candidate list sizes.
const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// DefaultMaxSnapshotAge is the age beyond which a snapshot is treated as stale.
const DefaultMaxSnapshotAge = 24 * time.Hour

// Candidate is one ranked patient-zero suggestion.
type Candidate struct {
	Rank                   int               `json:"rank"`
	NodeID                 string            `json:"node_id"`
	Name                   string            `json:"name,omitempty"`
	Type                   topology.NodeType `json:"type,omitempty"`
	CascadeRiskScore       float64           `json:"cascade_risk_score"`
	BetweennessCentrality  float64           `json:"betweenness_centrality"`
	PageRank               float64           `json:"pagerank"`
	TotalReach             int               `json:"total_reach"`
	DownstreamTransformers int               `json:"downstream_transformers"`
	Exact                  bool              `json:"exact"`
	Method                 centrality.Method `json:"method"`
}

// Ranking is the response of RankPatientZeroCandidates.
type Ranking struct {
	Candidates      []Candidate `json:"candidates"`
	SnapshotVersion uint64      `json:"snapshot_version"`
	ComputedAt      time.Time   `json:"computed_at"`
	ProxyFallback   bool        `json:"proxy_fallback"`
	Warnings        []string    `json:"warnings,omitempty"`
}

// ScenarioEntry is a catalog scenario with its recommended patient zero.
type ScenarioEntry struct {
	cascade.Scenario
	RecommendedPatientZero string `json:"recommended_patient_zero"`
	Rationale              string `json:"rationale"`
}

// Ranker reads the graph and snapshot it is given on every call and keeps no
// state of its own beyond configuration.
type Ranker struct {
	maxAge  time.Duration
	metrics *metrics.Registry
	now     func() time.Time
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithMaxSnapshotAge sets the staleness limit. Zero disables the age check.
func WithMaxSnapshotAge(d time.Duration) Option {
	return func(r *Ranker) { r.maxAge = d }
}

// WithMetrics counts proxy fallbacks in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(r *Ranker) { r.metrics = reg }
}

// NewRanker creates a Ranker.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{maxAge: DefaultMaxSnapshotAge, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RankPatientZeroCandidates orders nodes by cascade risk. When snap is nil or
// stale the ranking falls back to proxy scores computed from g, the exact-only
// filter is ignored and the response says so.
func (r *Ranker) RankPatientZeroCandidates(g *topology.Graph, snap *centrality.Snapshot, limit int, onlyExact bool) (*Ranking, error) {
	if g == nil {
		return nil, topology.ErrNoTopology
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	out := &Ranking{Candidates: []Candidate{}}
	now := r.now()

	switch {
	case snap == nil:
		out.Warnings = append(out.Warnings, "no centrality snapshot available; ranking uses proxy scores")
	case r.IsStale(snap, now):
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"centrality snapshot v%d is stale (computed %s ago); ranking uses proxy scores",
			snap.Version, snap.Age(now).Round(time.Second)))
		snap = nil
	}

	if snap == nil {
		out.ProxyFallback = true
		if onlyExact {
			out.Warnings = append(out.Warnings, "only_exact ignored: no exact scores available")
			onlyExact = false
		}
		snap = centrality.ProxySnapshot(g, now)
		if r.metrics != nil {
			r.metrics.CentralityProxyFallbacksTotal.Inc()
		}
	} else {
		out.SnapshotVersion = snap.Version
	}
	out.ComputedAt = snap.ComputedAt

	for _, f := range snap.Ranked() {
		if onlyExact && !f.Exact {
			continue
		}
		c := Candidate{
			Rank:                  len(out.Candidates) + 1,
			NodeID:                f.NodeID,
			CascadeRiskScore:      f.CascadeRiskScore,
			BetweennessCentrality: f.BetweennessCentrality,
			PageRank:              f.PageRank,
			TotalReach:            f.TotalReach,
			Exact:                 f.Exact,
			Method:                f.Method,
		}
		if node, ok := g.Lookup(f.NodeID); ok {
			c.Name = node.Name
			c.Type = node.Type
			c.DownstreamTransformers = node.DownstreamTransformers
		}
		out.Candidates = append(out.Candidates, c)
		if len(out.Candidates) == limit {
			break
		}
	}

	return out, nil
}

// IsStale reports whether snap is older than the configured maximum age.
func (r *Ranker) IsStale(snap *centrality.Snapshot, now time.Time) bool {
	return snap != nil && r.maxAge > 0 && snap.Age(now) > r.maxAge
}

// ListScenarios returns the catalog. Every entry recommends the top-ranked
// exact node of snap; with no exact nodes the recommendation is empty.
func (r *Ranker) ListScenarios(snap *centrality.Snapshot) []ScenarioEntry {
	var (
		top   centrality.Features
		found bool
	)
	for _, f := range snap.Ranked() {
		if f.Exact {
			top, found = f, true
			break
		}
	}

	rationale := "no exact centrality available yet; run a centrality batch to get a recommendation"
	if found {
		rationale = fmt.Sprintf(
			"%s has the highest exact cascade risk (%.3f) with betweenness centrality %.3f: it sits on the largest share of shortest paths in the network",
			top.NodeID, top.CascadeRiskScore, top.BetweennessCentrality)
	}

	scenarios := cascade.Scenarios()
	out := make([]ScenarioEntry, 0, len(scenarios))
	for _, s := range scenarios {
		entry := ScenarioEntry{Scenario: s, Rationale: rationale}
		if found {
			entry.RecommendedPatientZero = top.NodeID
		}
		out = append(out, entry)
	}
	return out
}

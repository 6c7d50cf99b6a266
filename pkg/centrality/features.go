package centrality

import (
	"math"
	"sort"
	"time"
)

// Method records how a node's centrality was obtained.
type Method string

const (
	// MethodExact is full Brandes betweenness over the qualifying component.
	MethodExact Method = "exact"
	// MethodSampled is Brandes betweenness from a random subset of sources,
	// scaled to the full component.
	MethodSampled Method = "sampled"
	// MethodProxy is a metadata-based estimate with no shortest-path work.
	MethodProxy Method = "proxy"
)

// Score weights shared by the exact and proxy formulas.
const (
	WeightBetweenness = 0.4
	WeightPageRank    = 0.3
	WeightReach       = 0.3

	WeightCriticality = 0.4
	WeightDegree      = 0.3
)

// Features is the per-node output of a centrality batch.
type Features struct {
	NodeID                string    `json:"node_id"`
	DegreeCentrality      float64   `json:"degree_centrality"`
	BetweennessCentrality float64   `json:"betweenness_centrality"`
	PageRank              float64   `json:"pagerank"`
	ClusteringCoefficient float64   `json:"clustering_coefficient"`
	Hop1                  int       `json:"hop1_count"`
	Hop2                  int       `json:"hop2_count"`
	Hop3                  int       `json:"hop3_count"`
	TotalReach            int       `json:"total_reach"`
	ReachExpansionRatio   float64   `json:"reach_expansion_ratio"`
	CascadeRiskScore      float64   `json:"cascade_risk_score"`
	Exact                 bool      `json:"exact"`
	Method                Method    `json:"method"`
	ComputedAt            time.Time `json:"computed_at"`
}

// SortByRisk orders features by CascadeRiskScore descending, then
// betweenness descending, then node ID ascending.
func SortByRisk(fs []Features) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].CascadeRiskScore != fs[j].CascadeRiskScore {
			return fs[i].CascadeRiskScore > fs[j].CascadeRiskScore
		}
		if fs[i].BetweennessCentrality != fs[j].BetweennessCentrality {
			return fs[i].BetweennessCentrality > fs[j].BetweennessCentrality
		}
		return fs[i].NodeID < fs[j].NodeID
	})
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

func ratio(v, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	return v / peak
}

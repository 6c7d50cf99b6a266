package centrality

import (
	"math"
	"time"

	"github.com/dd0wney/gridcascade/pkg/topology"
)

// ProxySnapshot scores every node from metadata alone, without any graph
// traversal beyond degree. The reach term is the number of downstream
// transformers per connection, normalised to the graph maximum. Used when no
// batch snapshot is available or the current one is stale.
func ProxySnapshot(g *topology.Graph, now time.Time) *Snapshot {
	n := g.Len()
	snap := &Snapshot{
		TopologyVersion: g.Version(),
		ComputedAt:      now,
		Method:          MethodProxy,
		Features:        make(map[string]Features, n),
	}

	reach := make([]float64, n)
	maxReach := 0.0
	maxDegree := 0
	for i := 0; i < n; i++ {
		deg := g.Degree(i)
		reach[i] = float64(g.Node(i).DownstreamTransformers) / float64(max(deg, 1))
		maxReach = math.Max(maxReach, reach[i])
		maxDegree = max(maxDegree, deg)
	}

	degreeNorm := 0.0
	if n > 1 {
		degreeNorm = 1.0 / float64(n-1)
	}

	for i := 0; i < n; i++ {
		node := g.Node(i)
		snap.Features[node.ID] = Features{
			NodeID:           node.ID,
			DegreeCentrality: clamp01(float64(g.Degree(i)) * degreeNorm),
			CascadeRiskScore: proxyScore(node.Criticality, g.Degree(i), maxDegree, ratio(reach[i], maxReach)),
			Method:           MethodProxy,
			ComputedAt:       now,
		}
	}

	return snap
}

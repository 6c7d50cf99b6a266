package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTopologyMetrics() {
	r.TopologyNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gridcascade_topology_nodes",
			Help: "Number of grid nodes in the current topology",
		},
	)

	r.TopologyEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gridcascade_topology_edges",
			Help: "Number of distinct undirected edges in the current topology",
		},
	)

	r.TopologyDroppedEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gridcascade_topology_dropped_edges",
			Help: "Edges discarded at build time (dangling references, self loops)",
		},
	)

	r.TopologyVersion = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gridcascade_topology_version",
			Help: "Version of the currently published topology",
		},
	)

	r.TopologySyncsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridcascade_topology_syncs_total",
			Help: "Topology refresh attempts by outcome",
		},
		[]string{"status"},
	)

	r.TopologySyncDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridcascade_topology_sync_duration_seconds",
			Help:    "Time spent loading and indexing the topology",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
}

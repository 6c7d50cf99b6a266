package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCentralityMetrics() {
	r.CentralityBatchesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridcascade_centrality_batches_total",
			Help: "Centrality batches by outcome",
		},
		[]string{"status"},
	)

	r.CentralityBatchDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridcascade_centrality_batch_duration_seconds",
			Help:    "Wall time of a centrality batch",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	r.CentralityLastSuccess = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gridcascade_centrality_last_success_timestamp_seconds",
			Help: "Unix time of the last successful centrality batch",
		},
	)

	r.CentralitySnapshotVersion = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gridcascade_centrality_snapshot_version",
			Help: "Version of the currently published centrality snapshot",
		},
	)

	r.CentralityExactNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gridcascade_centrality_exact_nodes",
			Help: "Nodes in the current snapshot scored from graph traversal",
		},
	)

	r.CentralityComponentSize = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gridcascade_centrality_component_size",
			Help: "Size of the qualifying connected component",
		},
	)

	r.CentralityProxyFallbacksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "gridcascade_centrality_proxy_fallbacks_total",
			Help: "Rankings served from proxy scores because the snapshot was missing or stale",
		},
	)
}

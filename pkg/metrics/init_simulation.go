package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimulationMetrics() {
	r.SimulationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridcascade_simulations_total",
			Help: "Cascade simulations by scenario and outcome",
		},
		[]string{"scenario", "status"},
	)

	r.SimulationDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridcascade_simulation_duration_seconds",
			Help:    "Cascade simulation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	r.SimulationAffectedNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridcascade_simulation_affected_nodes",
			Help:    "Nodes failed per simulation",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	r.SimulationTruncated = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridcascade_simulation_truncated_total",
			Help: "Simulations stopped early by a wave or node cap",
		},
		[]string{"reason"},
	)

	r.RealtimeRiskScore = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gridcascade_realtime_risk_score",
			Help: "Most recent composite realtime risk score (0-100)",
		},
	)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Topology Metrics
	TopologyNodes        prometheus.Gauge
	TopologyEdges        prometheus.Gauge
	TopologyDroppedEdges prometheus.Gauge
	TopologyVersion      prometheus.Gauge
	TopologySyncsTotal   *prometheus.CounterVec
	TopologySyncDuration prometheus.Histogram

	// Centrality Metrics
	CentralityBatchesTotal        *prometheus.CounterVec
	CentralityBatchDuration       prometheus.Histogram
	CentralityLastSuccess         prometheus.Gauge
	CentralitySnapshotVersion     prometheus.Gauge
	CentralityExactNodes          prometheus.Gauge
	CentralityComponentSize       prometheus.Gauge
	CentralityProxyFallbacksTotal prometheus.Counter

	// Simulation Metrics
	SimulationsTotal        *prometheus.CounterVec
	SimulationDuration      prometheus.Histogram
	SimulationAffectedNodes prometheus.Histogram
	SimulationTruncated     *prometheus.CounterVec

	// Risk Metrics
	RealtimeRiskScore prometheus.Gauge

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
}

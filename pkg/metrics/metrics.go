package metrics

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initHTTPMetrics()
	r.initTopologyMetrics()
	r.initCentralityMetrics()
	r.initSimulationMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordResponseSize observes the size of a response body.
func (r *Registry) RecordResponseSize(method, path string, size float64) {
	r.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(size)
}

func (r *Registry) IncHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Inc() }

func (r *Registry) DecHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Dec() }

// RecordTopologySync records one topology refresh attempt. Graph gauges are
// only updated on success.
func (r *Registry) RecordTopologySync(status string, duration time.Duration, nodes, edges, dropped int, version uint64) {
	r.TopologySyncsTotal.WithLabelValues(status).Inc()
	r.TopologySyncDuration.Observe(duration.Seconds())
	if status != "success" {
		return
	}
	r.TopologyNodes.Set(float64(nodes))
	r.TopologyEdges.Set(float64(edges))
	r.TopologyDroppedEdges.Set(float64(dropped))
	r.TopologyVersion.Set(float64(version))
}

// RecordCentralityBatch records a finished centrality batch.
func (r *Registry) RecordCentralityBatch(status string, duration time.Duration) {
	r.CentralityBatchesTotal.WithLabelValues(status).Inc()
	r.CentralityBatchDuration.Observe(duration.Seconds())
	if status == "success" {
		r.CentralityLastSuccess.SetToCurrentTime()
	}
}

// RecordSnapshot records the shape of a newly published snapshot.
func (r *Registry) RecordSnapshot(version uint64, exactNodes, componentSize int) {
	r.CentralitySnapshotVersion.Set(float64(version))
	r.CentralityExactNodes.Set(float64(exactNodes))
	r.CentralityComponentSize.Set(float64(componentSize))
}

// RecordSimulation records a cascade simulation run.
func (r *Registry) RecordSimulation(scenario, status string, duration time.Duration, affected int, truncationReason string) {
	r.SimulationsTotal.WithLabelValues(scenario, status).Inc()
	r.SimulationDuration.Observe(duration.Seconds())
	if status != "success" {
		return
	}
	r.SimulationAffectedNodes.Observe(float64(affected))
	if truncationReason != "" {
		r.SimulationTruncated.WithLabelValues(truncationReason).Inc()
	}
}

// UpdateSystemMetrics samples uptime and Go runtime statistics.
func (r *Registry) UpdateSystemMetrics(startTime time.Time) {
	r.UptimeSeconds.Set(time.Since(startTime).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}

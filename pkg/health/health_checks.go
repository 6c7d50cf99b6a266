package health

import (
	"fmt"
	"runtime"
	"time"

	"github.com/dd0wney/gridcascade/pkg/centrality"
	gridtls "github.com/dd0wney/gridcascade/pkg/tls"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// TopologyCheck is unhealthy until a graph has been loaded.
func TopologyCheck(current func() *topology.Graph) CheckFunc {
	return func() Check {
		check := Check{Name: "topology"}
		g := current()
		if g == nil {
			check.Status = StatusUnhealthy
			check.Message = "No topology loaded"
			return check
		}
		check.Status = StatusHealthy
		check.Message = "Topology loaded"
		check.Details = map[string]any{
			"version":       g.Version(),
			"nodes":         g.Len(),
			"edges":         g.EdgeCount(),
			"dropped_edges": g.DroppedEdges(),
			"loaded_at":     g.LoadedAt(),
		}
		return check
	}
}

// SnapshotCheck reports centrality snapshot freshness. A missing or stale
// snapshot is degraded, not unhealthy: rankings fall back to the proxy score.
func SnapshotCheck(store *centrality.Store, maxAge time.Duration) CheckFunc {
	return func() Check {
		check := Check{Name: "centrality_snapshot"}
		now := time.Now()
		snap := store.Current()
		if snap == nil {
			check.Status = StatusDegraded
			check.Message = "No centrality snapshot; serving proxy scores"
			return check
		}

		age := store.Age(now)
		check.Details = map[string]any{
			"version":          snap.Version,
			"topology_version": snap.TopologyVersion,
			"nodes":            snap.Len(),
			"exact_nodes":      snap.ExactCount(),
			"age_seconds":      age.Seconds(),
		}
		if store.IsStale(now, maxAge) {
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("Snapshot older than %v; serving proxy scores", maxAge)
			return check
		}
		check.Status = StatusHealthy
		check.Message = "Snapshot fresh"
		return check
	}
}

// SchedulerCheck is degraded when the most recent centrality batch failed.
func SchedulerCheck(status func() centrality.Status) CheckFunc {
	return func() Check {
		st := status()
		check := Check{
			Name:   "centrality_scheduler",
			Status: StatusHealthy,
			Details: map[string]any{
				"running":  st.Running,
				"runs":     st.Runs,
				"failures": st.Failures,
			},
		}
		if st.LastError != "" {
			check.Status = StatusDegraded
			check.Message = "Last batch failed: " + st.LastError
		}
		return check
	}
}

// MemoryCheck is degraded when heap allocation exceeds 90% of memory
// obtained from the OS.
func MemoryCheck() CheckFunc {
	return func() Check {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)

		check := Check{
			Name: "memory",
			Details: map[string]any{
				"alloc_bytes": ms.Alloc,
				"sys_bytes":   ms.Sys,
				"goroutines":  runtime.NumGoroutine(),
			},
			Status: StatusHealthy,
		}
		if ms.Sys > 0 && float64(ms.Alloc)/float64(ms.Sys) > 0.9 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		}
		return check
	}
}

// CertificateCheck is degraded once the serving certificate is within warn
// of expiry and unhealthy after it has expired.
func CertificateCheck(info gridtls.CertificateInfo, warn time.Duration) CheckFunc {
	return func() Check {
		left := info.ExpiresIn(time.Now())
		check := Check{
			Name:   "tls_certificate",
			Status: StatusHealthy,
			Details: map[string]any{
				"subject":    info.Subject,
				"not_after":  info.NotAfter,
				"expires_in": left.Round(time.Second).String(),
			},
		}
		switch {
		case left <= 0:
			check.Status = StatusUnhealthy
			check.Message = "Certificate has expired"
		case left < warn:
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("Certificate expires in %s", left.Round(time.Hour))
		}
		return check
	}
}

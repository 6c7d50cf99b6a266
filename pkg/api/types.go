package api

import (
	"time"

	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ScenariosResponse lists the scenario catalog.
type ScenariosResponse struct {
	Scenarios       []ranking.ScenarioEntry `json:"scenarios"`
	SnapshotVersion uint64                  `json:"snapshot_version"`
	Warnings        []string                `json:"warnings,omitempty"`
}

// SnapshotInfo summarises the published centrality snapshot.
type SnapshotInfo struct {
	Version         uint64            `json:"version"`
	TopologyVersion uint64            `json:"topology_version"`
	ComputedAt      time.Time         `json:"computed_at"`
	AgeSeconds      float64           `json:"age_seconds"`
	Stale           bool              `json:"stale"`
	Method          centrality.Method `json:"method"`
	Nodes           int               `json:"nodes"`
	ExactNodes      int               `json:"exact_nodes"`
	ComponentSize   int               `json:"component_size"`
	SampledSources  int               `json:"sampled_sources"`
	DurationMS      float64           `json:"duration_ms"`
}

// CentralityStatusResponse reports the batch scheduler and current snapshot.
type CentralityStatusResponse struct {
	Snapshot  *SnapshotInfo      `json:"snapshot"`
	Scheduler *centrality.Status `json:"scheduler,omitempty"`
}

// RecomputeResponse acknowledges a recompute trigger.
type RecomputeResponse struct {
	Status          string `json:"status"`
	SnapshotVersion uint64 `json:"snapshot_version"`
}

// NodeResponse is a node's metadata with its latest features.
type NodeResponse struct {
	Node            topology.GridNode    `json:"node"`
	Degree          int                  `json:"degree"`
	Features        *centrality.Features `json:"features,omitempty"`
	SnapshotVersion uint64               `json:"snapshot_version"`
	TopologyVersion uint64               `json:"topology_version"`
}

// decisionRequest accepts a simulation result either bare or wrapped as
// {"simulation": {...}}.
type decisionRequest struct {
	cascade.Result
	Simulation *cascade.Result `json:"simulation,omitempty"`
}

func (d *decisionRequest) result() *cascade.Result {
	if d.Simulation != nil {
		return d.Simulation
	}
	return &d.Result
}

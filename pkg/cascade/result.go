package cascade

import (
	"time"

	"github.com/dd0wney/gridcascade/pkg/topology"
)

// Truncation reasons.
const (
	TruncatedMaxWaves = "max_waves"
	TruncatedMaxNodes = "max_nodes"
)

// FailedNode is one entry of the cascade order.
type FailedNode struct {
	NodeID                 string            `json:"node_id"`
	Name                   string            `json:"name,omitempty"`
	Type                   topology.NodeType `json:"type"`
	WaveDepth              int               `json:"wave_depth"`
	SequenceOrder          int               `json:"sequence_order"`
	Latitude               float64           `json:"latitude"`
	Longitude              float64           `json:"longitude"`
	CapacityKW             float64           `json:"capacity_kw"`
	DownstreamTransformers int               `json:"downstream_transformers"`
	FailureProbability     float64           `json:"failure_probability"`
	// CausedBy is the node whose failure triggered this one; empty for
	// patient zero.
	CausedBy string `json:"caused_by,omitempty"`
}

// Wave summarises one propagation step. Cumulative values include every
// earlier wave.
type Wave struct {
	Wave                        int     `json:"wave"`
	NodesFailed                 int     `json:"nodes_failed"`
	CumulativeCapacityLostMW    float64 `json:"cumulative_capacity_lost_mw"`
	CumulativeCustomersAffected int     `json:"cumulative_customers_affected"`
}

// PropagationPath is the edge a failure travelled along.
type PropagationPath struct {
	FromNode           string  `json:"from_node"`
	ToNode             string  `json:"to_node"`
	SequenceOrder      int     `json:"sequence_order"`
	DistanceKM         float64 `json:"distance_km"`
	FailureProbability float64 `json:"failure_probability"`
}

// ScenarioParameters records the stress a result was produced under.
type ScenarioParameters struct {
	Name string `json:"name,omitempty"`
	Parameters
}

// Result is the immutable output of one simulation.
type Result struct {
	SimulationID               string             `json:"simulation_id"`
	PatientZero                string             `json:"patient_zero"`
	Scenario                   ScenarioParameters `json:"scenario"`
	MaxWaves                   int                `json:"max_waves"`
	MaxNodes                   int                `json:"max_nodes"`
	CascadeOrder               []FailedNode       `json:"cascade_order"`
	WaveBreakdown              []Wave             `json:"wave_breakdown"`
	PropagationPaths           []PropagationPath  `json:"propagation_paths"`
	TotalAffectedNodes         int                `json:"total_affected_nodes"`
	AffectedCapacityMW         float64            `json:"affected_capacity_mw"`
	EstimatedCustomersAffected int                `json:"estimated_customers_affected"`
	MaxCascadeDepth            int                `json:"max_cascade_depth"`
	Truncated                  bool               `json:"truncated"`
	TruncationReason           string             `json:"truncation_reason,omitempty"`
	SnapshotVersion            uint64             `json:"snapshot_version"`
	TopologyVersion            uint64             `json:"topology_version"`
	Warnings                   []string           `json:"warnings,omitempty"`
	SimulatedAt                time.Time          `json:"simulated_at"`
	Duration                   time.Duration      `json:"duration_ns"`
}

// PatientZeroNode returns the first entry of the cascade order.
func (r *Result) PatientZeroNode() (FailedNode, bool) {
	if r == nil || len(r.CascadeOrder) == 0 {
		return FailedNode{}, false
	}
	return r.CascadeOrder[0], true
}

// Customers returns the customers behind one failed node.
func (n FailedNode) Customers() int {
	return n.DownstreamTransformers * CustomersPerTransformer
}

package decision

import (
	"fmt"

	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// treeResult is a two-wave cascade:
//
//	SUB-1 -> TX-1 -> POLE-1, POLE-2
//	      -> TX-2 -> M-1
func treeResult() *cascade.Result {
	order := []cascade.FailedNode{
		{NodeID: "SUB-1", Name: "North", Type: topology.NodeTypeSubstation, WaveDepth: 0, SequenceOrder: 1, CapacityKW: 20000, DownstreamTransformers: 10, Latitude: 30.0, Longitude: -95.0},
		{NodeID: "TX-1", Type: topology.NodeTypeTransformer, WaveDepth: 1, SequenceOrder: 2, CapacityKW: 500, DownstreamTransformers: 4, Latitude: 30.2, Longitude: -95.2, CausedBy: "SUB-1"},
		{NodeID: "TX-2", Type: topology.NodeTypeTransformer, WaveDepth: 1, SequenceOrder: 3, CapacityKW: 500, DownstreamTransformers: 1, Latitude: 29.8, Longitude: -94.8, CausedBy: "SUB-1"},
		{NodeID: "POLE-1", Type: topology.NodeTypePole, WaveDepth: 2, SequenceOrder: 4, CapacityKW: 50, CausedBy: "TX-1"},
		{NodeID: "POLE-2", Type: topology.NodeTypePole, WaveDepth: 2, SequenceOrder: 5, CapacityKW: 50, CausedBy: "TX-1"},
		{NodeID: "M-1", Type: topology.NodeTypeMeter, WaveDepth: 2, SequenceOrder: 6, CapacityKW: 10, CausedBy: "TX-2"},
	}

	res := &cascade.Result{
		SimulationID: "sim-1",
		PatientZero:  "SUB-1",
		Scenario: cascade.ScenarioParameters{
			Name:       "baseline",
			Parameters: cascade.Parameters{TemperatureC: 20, LoadMultiplier: 1, FailureThreshold: 0.3},
		},
		CascadeOrder:    order,
		MaxCascadeDepth: 2,
	}
	for _, n := range order {
		res.TotalAffectedNodes++
		res.AffectedCapacityMW += n.CapacityKW / 1000
		res.EstimatedCustomersAffected += n.Customers()
		if n.CausedBy != "" {
			res.PropagationPaths = append(res.PropagationPaths, cascade.PropagationPath{
				FromNode: n.CausedBy, ToNode: n.NodeID, SequenceOrder: n.SequenceOrder, DistanceKM: 1,
			})
		}
	}
	return res
}

// largeResult scales the concrete extreme-cold hub cascade: one substation
// with 1296 transformers failing in wave one.
func largeResult() *cascade.Result {
	res := &cascade.Result{
		SimulationID: "sim-cold",
		PatientZero:  "SUB-HUB",
		Scenario: cascade.ScenarioParameters{
			Name:       "extreme_cold",
			Parameters: cascade.Parameters{TemperatureC: -10, LoadMultiplier: 1.8, FailureThreshold: 0.15},
		},
		CascadeOrder: []cascade.FailedNode{
			{NodeID: "SUB-HUB", Type: topology.NodeTypeSubstation, SequenceOrder: 1, CapacityKW: 50000, DownstreamTransformers: 1296},
		},
		TotalAffectedNodes:         1297,
		AffectedCapacityMW:         698,
		EstimatedCustomersAffected: 64800,
		MaxCascadeDepth:            1,
	}
	for i := 0; i < 1296; i++ {
		res.CascadeOrder = append(res.CascadeOrder, cascade.FailedNode{
			NodeID: fmt.Sprintf("TX-%04d", i+1), Type: topology.NodeTypeTransformer,
			WaveDepth: 1, SequenceOrder: i + 2, CapacityKW: 500, CausedBy: "SUB-HUB",
		})
	}
	return res
}

// chainResult is a substation feeding transformers downstream transformers,
// followed by a chain of poles reaching the given wave depth.
func chainResult(transformers, depth int) *cascade.Result {
	res := &cascade.Result{
		SimulationID: "sim-chain",
		PatientZero:  "SUB-C",
		CascadeOrder: []cascade.FailedNode{
			{NodeID: "SUB-C", Type: topology.NodeTypeSubstation, SequenceOrder: 1, CapacityKW: 10000, DownstreamTransformers: transformers},
		},
	}
	for d := 1; d <= depth; d++ {
		res.CascadeOrder = append(res.CascadeOrder, cascade.FailedNode{
			NodeID: fmt.Sprintf("POLE-%02d", d), Type: topology.NodeTypePole,
			WaveDepth: d, SequenceOrder: d + 1, CapacityKW: 50, CausedBy: res.CascadeOrder[d-1].NodeID,
		})
	}
	for _, n := range res.CascadeOrder {
		res.TotalAffectedNodes++
		res.AffectedCapacityMW += n.CapacityKW / 1000
		res.EstimatedCustomersAffected += n.Customers()
		res.MaxCascadeDepth = max(res.MaxCascadeDepth, n.WaveDepth)
	}
	return res
}

package topology

import (
	"errors"
	"fmt"
)

// NodeType classifies a distribution asset.
type NodeType string

const (
	NodeTypeSubstation  NodeType = "SUBSTATION"
	NodeTypeTransformer NodeType = "TRANSFORMER"
	NodeTypePole        NodeType = "POLE"
	NodeTypeMeter       NodeType = "METER"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeSubstation, NodeTypeTransformer, NodeTypePole, NodeTypeMeter:
		return true
	default:
		return false
	}
}

// EdgeType distinguishes feeder hierarchy from lateral ties.
type EdgeType string

const (
	// EdgeTypeHierarchical connects a node to its parent in the feeder tree.
	EdgeTypeHierarchical EdgeType = "HIERARCHICAL"
	// EdgeTypeLateral is a peer tie between two feeders or sections.
	EdgeTypeLateral EdgeType = "LATERAL"
)

// GridNode is a single asset in the distribution network.
type GridNode struct {
	ID                     string   `json:"id" yaml:"id"`
	Type                   NodeType `json:"type" yaml:"type"`
	Name                   string   `json:"name" yaml:"name"`
	Latitude               float64  `json:"latitude" yaml:"latitude"`
	Longitude              float64  `json:"longitude" yaml:"longitude"`
	CapacityKW             float64  `json:"capacity_kw" yaml:"capacity_kw"`
	VoltageClass           string   `json:"voltage_class" yaml:"voltage_class"`
	Criticality            float64  `json:"criticality" yaml:"criticality"`
	DownstreamTransformers int      `json:"downstream_transformers" yaml:"downstream_transformers"`
	DownstreamCapacityKW   float64  `json:"downstream_capacity_kw" yaml:"downstream_capacity_kw"`
	ParentID               string   `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// GridEdge is an undirected connection between two nodes.
type GridEdge struct {
	FromNodeID string   `json:"from_node_id" yaml:"from_node_id"`
	ToNodeID   string   `json:"to_node_id" yaml:"to_node_id"`
	Type       EdgeType `json:"type" yaml:"type"`
	DistanceKM float64  `json:"distance_km" yaml:"distance_km"`
}

var (
	ErrEmptyNodeID        = errors.New("node id cannot be empty")
	ErrInvalidNodeType    = errors.New("invalid node type")
	ErrInvalidCriticality = errors.New("criticality must be within [0,1]")
	ErrNegativeValue      = errors.New("value cannot be negative")
)

// Validate checks the record-level invariants of a node.
func (n GridNode) Validate() error {
	if n.ID == "" {
		return ErrEmptyNodeID
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %q (node %s)", ErrInvalidNodeType, n.Type, n.ID)
	}
	if n.Criticality < 0 || n.Criticality > 1 {
		return fmt.Errorf("%w: %f (node %s)", ErrInvalidCriticality, n.Criticality, n.ID)
	}
	if n.CapacityKW < 0 || n.DownstreamCapacityKW < 0 || n.DownstreamTransformers < 0 {
		return fmt.Errorf("%w (node %s)", ErrNegativeValue, n.ID)
	}
	return nil
}

// Validate checks the record-level invariants of an edge. Referential
// integrity is not checked here; Build drops dangling edges.
func (e GridEdge) Validate() error {
	if e.FromNodeID == "" || e.ToNodeID == "" {
		return ErrEmptyNodeID
	}
	if e.DistanceKM < 0 {
		return fmt.Errorf("%w: distance %f (%s-%s)", ErrNegativeValue, e.DistanceKM, e.FromNodeID, e.ToNodeID)
	}
	return nil
}

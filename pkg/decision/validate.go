package decision

import (
	"errors"
	"fmt"
	"math"

	"github.com/dd0wney/gridcascade/pkg/cascade"
)

// ErrInvalidResult is returned when a simulation result contradicts itself.
var ErrInvalidResult = errors.New("invalid simulation result")

// capacityTolerance absorbs float summation order when totals are recomputed.
const capacityTolerance = 1e-6

// ValidateResult checks that res is internally consistent: patient zero
// leads the cascade order, node IDs are unique, causes precede their
// effects, and the totals equal the sums over the cascade order.
func ValidateResult(res *cascade.Result) error {
	pz, ok := res.PatientZeroNode()
	if !ok {
		return ErrEmptyResult
	}
	if pz.NodeID != res.PatientZero {
		return fmt.Errorf("%w: cascade_order starts with %q, patient zero is %q", ErrInvalidResult, pz.NodeID, res.PatientZero)
	}
	if pz.WaveDepth != 0 || pz.CausedBy != "" {
		return fmt.Errorf("%w: patient zero %q must be wave 0 with no cause", ErrInvalidResult, pz.NodeID)
	}

	seen := make(map[string]bool, len(res.CascadeOrder))
	var (
		capacityMW float64
		customers  int
		maxDepth   int
	)
	for i, n := range res.CascadeOrder {
		switch {
		case n.NodeID == "":
			return fmt.Errorf("%w: cascade_order[%d] has no node_id", ErrInvalidResult, i)
		case seen[n.NodeID]:
			return fmt.Errorf("%w: node %q appears more than once", ErrInvalidResult, n.NodeID)
		case n.WaveDepth < 0:
			return fmt.Errorf("%w: node %q has negative wave_depth", ErrInvalidResult, n.NodeID)
		case n.DownstreamTransformers < 0:
			return fmt.Errorf("%w: node %q has negative downstream_transformers", ErrInvalidResult, n.NodeID)
		case n.CapacityKW < 0 || math.IsNaN(n.CapacityKW) || math.IsInf(n.CapacityKW, 0):
			return fmt.Errorf("%w: node %q has invalid capacity_kw", ErrInvalidResult, n.NodeID)
		case n.CausedBy != "" && !seen[n.CausedBy]:
			return fmt.Errorf("%w: node %q caused by %q which did not fail before it", ErrInvalidResult, n.NodeID, n.CausedBy)
		}
		seen[n.NodeID] = true
		capacityMW += n.CapacityKW / 1000
		customers += n.Customers()
		maxDepth = max(maxDepth, n.WaveDepth)
	}

	if res.TotalAffectedNodes != len(res.CascadeOrder) {
		return fmt.Errorf("%w: total_affected_nodes is %d, cascade_order has %d", ErrInvalidResult, res.TotalAffectedNodes, len(res.CascadeOrder))
	}
	if res.EstimatedCustomersAffected != customers {
		return fmt.Errorf("%w: estimated_customers_affected is %d, cascade_order implies %d", ErrInvalidResult, res.EstimatedCustomersAffected, customers)
	}
	if math.Abs(res.AffectedCapacityMW-capacityMW) > capacityTolerance*math.Max(1, capacityMW) {
		return fmt.Errorf("%w: affected_capacity_mw is %g, cascade_order implies %g", ErrInvalidResult, res.AffectedCapacityMW, capacityMW)
	}
	if res.MaxCascadeDepth != maxDepth {
		return fmt.Errorf("%w: max_cascade_depth is %d, cascade_order reaches %d", ErrInvalidResult, res.MaxCascadeDepth, maxDepth)
	}
	return nil
}

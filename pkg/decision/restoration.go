package decision

import (
	"container/heap"
	"fmt"

	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// RepairHours is the expected repair time per asset type.
var RepairHours = map[topology.NodeType]float64{
	topology.NodeTypeSubstation:  4,
	topology.NodeTypeTransformer: 2,
	topology.NodeTypePole:        1.5,
	topology.NodeTypeMeter:       0.5,
}

const defaultRepairHours = 1.0

// MilestonePercents are the restoration checkpoints reported in a plan.
var MilestonePercents = []int{25, 50, 75, 100}

// RestorationStep is one node in the restoration order.
type RestorationStep struct {
	Step                int               `json:"step"`
	NodeID              string            `json:"node_id"`
	Name                string            `json:"name,omitempty"`
	Type                topology.NodeType `json:"type"`
	DependsOn           string            `json:"depends_on,omitempty"`
	RepairHours         float64           `json:"repair_hours"`
	CumulativeHours     float64           `json:"cumulative_hours"`
	CustomersRestored   int               `json:"customers_restored"`
	CumulativeCustomers int               `json:"cumulative_customers"`
	PercentRestored     float64           `json:"percent_restored"`
}

// Milestone marks the first step at which a share of customers is back.
type Milestone struct {
	Percent         int     `json:"percent"`
	Step            int     `json:"step"`
	CumulativeHours float64 `json:"cumulative_hours"`
	Description     string  `json:"description"`
}

// RestorationPlan is the output of SequenceRestoration.
type RestorationPlan struct {
	SimulationID   string            `json:"simulation_id"`
	PatientZero    string            `json:"patient_zero"`
	Steps          []RestorationStep `json:"sequence"`
	Milestones     []Milestone       `json:"milestones"`
	TotalHours     float64           `json:"total_hours"`
	TotalCustomers int               `json:"total_customers"`
	// NodeBased is set when the result has no customers and percentages
	// count nodes instead.
	NodeBased bool `json:"node_based"`
}

type restoreItem struct {
	node      cascade.FailedNode
	dependsOn string
	hours     float64
	priority  float64
}

// restoreHeap pops the highest customers-per-hour first, then the largest
// capacity, then the lowest node ID.
type restoreHeap []restoreItem

func (h restoreHeap) Len() int { return len(h) }
func (h restoreHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	if h[i].node.CapacityKW != h[j].node.CapacityKW {
		return h[i].node.CapacityKW > h[j].node.CapacityKW
	}
	return h[i].node.NodeID < h[j].node.NodeID
}
func (h restoreHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *restoreHeap) Push(x any)   { *h = append(*h, x.(restoreItem)) }
func (h *restoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func repairHours(t topology.NodeType) float64 {
	if h, ok := RepairHours[t]; ok {
		return h
	}
	return defaultRepairHours
}

func newRestoreItem(n cascade.FailedNode, dependsOn string) restoreItem {
	hours := repairHours(n.Type)
	return restoreItem{node: n, dependsOn: dependsOn, hours: hours, priority: float64(n.Customers()) / hours}
}

// parentOf maps each failed node to the node that caused it, preferring
// CausedBy and falling back to the propagation paths.
func parentOf(res *cascade.Result) map[string]string {
	parent := make(map[string]string, len(res.CascadeOrder))
	for _, p := range res.PropagationPaths {
		parent[p.ToNode] = p.FromNode
	}
	for _, n := range res.CascadeOrder {
		if n.CausedBy != "" {
			parent[n.NodeID] = n.CausedBy
		}
	}
	return parent
}

// SequenceRestoration orders repairs greedily by customers restored per
// repair hour with a single work front. Patient zero is always first and no
// node is scheduled before the node whose failure caused it.
func SequenceRestoration(res *cascade.Result) (*RestorationPlan, error) {
	if err := ValidateResult(res); err != nil {
		return nil, err
	}
	pz, _ := res.PatientZeroNode()

	parent := parentOf(res)
	failed := make(map[string]bool, len(res.CascadeOrder))
	children := make(map[string][]cascade.FailedNode)
	totalCustomers := 0
	for _, n := range res.CascadeOrder {
		failed[n.NodeID] = true
		totalCustomers += n.Customers()
	}

	h := &restoreHeap{}
	for _, n := range res.CascadeOrder[1:] {
		if p := parent[n.NodeID]; failed[p] && p != n.NodeID {
			children[p] = append(children[p], n)
		} else {
			heap.Push(h, newRestoreItem(n, ""))
		}
	}

	plan := &RestorationPlan{
		SimulationID:   res.SimulationID,
		PatientZero:    res.PatientZero,
		TotalCustomers: totalCustomers,
		NodeBased:      totalCustomers == 0,
	}
	total := float64(totalCustomers)
	if plan.NodeBased {
		total = float64(len(res.CascadeOrder))
	}

	var hours float64
	customers := 0
	scheduled := make(map[string]bool, len(res.CascadeOrder))
	schedule := func(item restoreItem) {
		if scheduled[item.node.NodeID] {
			return
		}
		scheduled[item.node.NodeID] = true
		hours += item.hours
		customers += item.node.Customers()
		step := RestorationStep{
			Step:                len(plan.Steps) + 1,
			NodeID:              item.node.NodeID,
			Name:                item.node.Name,
			Type:                item.node.Type,
			DependsOn:           item.dependsOn,
			RepairHours:         item.hours,
			CumulativeHours:     hours,
			CustomersRestored:   item.node.Customers(),
			CumulativeCustomers: customers,
		}
		restored := float64(customers)
		if plan.NodeBased {
			restored = float64(step.Step)
		}
		step.PercentRestored = 100 * restored / total
		plan.Steps = append(plan.Steps, step)

		for _, child := range children[item.node.NodeID] {
			heap.Push(h, newRestoreItem(child, item.node.NodeID))
		}
	}

	drain := func() {
		for h.Len() > 0 {
			schedule(heap.Pop(h).(restoreItem))
		}
	}

	schedule(newRestoreItem(pz, ""))
	drain()
	// Nodes on a parent cycle in a hand-edited result are never released by
	// the heap; append them in cascade order.
	for _, n := range res.CascadeOrder {
		if !scheduled[n.NodeID] {
			schedule(newRestoreItem(n, ""))
			drain()
		}
	}

	plan.TotalHours = hours
	plan.Milestones = milestones(plan)
	return plan, nil
}

func milestones(plan *RestorationPlan) []Milestone {
	unit := "affected customers"
	if plan.NodeBased {
		unit = "failed nodes"
	}

	out := make([]Milestone, 0, len(MilestonePercents))
	next := 0
	for _, step := range plan.Steps {
		for next < len(MilestonePercents) && step.PercentRestored+1e-9 >= float64(MilestonePercents[next]) {
			pct := MilestonePercents[next]
			out = append(out, Milestone{
				Percent:         pct,
				Step:            step.Step,
				CumulativeHours: step.CumulativeHours,
				Description:     fmt.Sprintf("%d%% of %s restored after step %d, at %.1f cumulative hours", pct, unit, step.Step, step.CumulativeHours),
			})
			next++
		}
	}
	return out
}

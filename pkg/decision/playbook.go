package decision

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dd0wney/gridcascade/pkg/cascade"
)

// Playbook tuning constants.
const (
	// CrewCapacity is the number of failed nodes one crew is expected to handle.
	CrewCapacity = 8
	// MaxChokePoints bounds the sectionalising recommendations.
	MaxChokePoints = 5
	// LoadSheddingMultiplier is the scenario load above which load shedding
	// is recommended.
	LoadSheddingMultiplier = 1.2
)

// ContainmentDelays are the response delays, in minutes, published on the
// containment curve.
var ContainmentDelays = []int{0, 5, 10, 15, 30, 60}

// Action is one step of the immediate response.
type Action struct {
	Priority int    `json:"priority"`
	Window   string `json:"window"`
	Action   string `json:"action"`
}

// ChokePoint is a propagation edge whose opening would split the cascade.
type ChokePoint struct {
	FromNode        string  `json:"from_node"`
	ToNode          string  `json:"to_node"`
	SequenceOrder   int     `json:"sequence_order"`
	EdgeBetweenness float64 `json:"edge_betweenness"`
	NodesProtected  int     `json:"nodes_protected"`
	Recommendation  string  `json:"recommendation"`
}

// CrewDispatch is the crew estimate and staging location.
type CrewDispatch struct {
	CrewsNeeded  int     `json:"crews_needed"`
	NodesPerCrew int     `json:"nodes_per_crew"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Located      bool    `json:"located"`
}

// ContainmentPoint is the probability of containing the cascade when the
// response starts after DelayMinutes.
type ContainmentPoint struct {
	DelayMinutes int     `json:"delay_minutes"`
	Probability  float64 `json:"probability"`
}

// Playbook is the output of GeneratePlaybook.
type Playbook struct {
	SimulationID     string             `json:"simulation_id"`
	PatientZero      string             `json:"patient_zero"`
	ImmediateActions []Action           `json:"immediate_actions"`
	ChokePoints      []ChokePoint       `json:"choke_points"`
	CrewDispatch     CrewDispatch       `json:"crew_dispatch"`
	Containment      []ContainmentPoint `json:"containment"`
}

// ContainmentProbability falls linearly from 0.85 at an immediate response to
// 0.60 at 15 minutes, then decays exponentially with a 30 minute constant.
func ContainmentProbability(delayMinutes float64) float64 {
	d := math.Max(delayMinutes, 0)
	if d <= 15 {
		return 0.85 - (0.25/15)*d
	}
	return 0.60 * math.Exp(-(d-15)/30)
}

// ChokePoints ranks the edges of the propagation tree by edge betweenness
// s·(N−s)/C(N,2), where s is the number of failed nodes at or below the
// edge's target. Ties keep propagation order.
func ChokePoints(res *cascade.Result, limit int) []ChokePoint {
	n := len(res.CascadeOrder)
	if n < 2 || limit <= 0 {
		return []ChokePoint{}
	}

	parent := parentOf(res)

	subtree := make(map[string]int, n)
	for i := n - 1; i >= 0; i-- {
		id := res.CascadeOrder[i].NodeID
		subtree[id]++
		if p, ok := parent[id]; ok {
			subtree[p] += subtree[id]
		}
	}

	pairs := float64(n) * float64(n-1) / 2
	points := make([]ChokePoint, 0, n-1)
	for _, node := range res.CascadeOrder[1:] {
		from, ok := parent[node.NodeID]
		if !ok {
			continue
		}
		s := subtree[node.NodeID]
		points = append(points, ChokePoint{
			FromNode:        from,
			ToNode:          node.NodeID,
			SequenceOrder:   node.SequenceOrder,
			EdgeBetweenness: float64(s*(n-s)) / pairs,
			NodesProtected:  s,
			Recommendation:  fmt.Sprintf("Open the switch between %s and %s to protect %d downstream node(s)", from, node.NodeID, s),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].EdgeBetweenness != points[j].EdgeBetweenness {
			return points[i].EdgeBetweenness > points[j].EdgeBetweenness
		}
		return points[i].SequenceOrder < points[j].SequenceOrder
	})
	if len(points) > limit {
		points = points[:limit]
	}
	return points
}

// PlanCrews sizes the crew dispatch and stages it at the centroid of the
// failed nodes that have coordinates.
func PlanCrews(res *cascade.Result) CrewDispatch {
	d := CrewDispatch{
		CrewsNeeded:  int(math.Ceil(float64(res.TotalAffectedNodes) / CrewCapacity)),
		NodesPerCrew: CrewCapacity,
	}

	var lat, lon float64
	located := 0
	for _, node := range res.CascadeOrder {
		if node.Latitude == 0 && node.Longitude == 0 {
			continue
		}
		lat += node.Latitude
		lon += node.Longitude
		located++
	}
	if located > 0 {
		d.Latitude = lat / float64(located)
		d.Longitude = lon / float64(located)
		d.Located = true
	}
	return d
}

// GeneratePlaybook builds the containment response for res.
func GeneratePlaybook(res *cascade.Result) (*Playbook, error) {
	if err := ValidateResult(res); err != nil {
		return nil, err
	}
	pz, _ := res.PatientZeroNode()

	pb := &Playbook{
		SimulationID: res.SimulationID,
		PatientZero:  res.PatientZero,
		ChokePoints:  ChokePoints(res, MaxChokePoints),
		CrewDispatch: PlanCrews(res),
	}

	add := func(window, text string) {
		pb.ImmediateActions = append(pb.ImmediateActions, Action{
			Priority: len(pb.ImmediateActions) + 1,
			Window:   window,
			Action:   text,
		})
	}

	label := pz.NodeID
	if pz.Name != "" {
		label = fmt.Sprintf("%s (%s)", pz.NodeID, pz.Name)
	}
	add("0-5 min", fmt.Sprintf("Isolate patient zero %s by opening its protective breaker", label))

	if len(pb.ChokePoints) > 0 {
		edges := make([]string, len(pb.ChokePoints))
		for i, cp := range pb.ChokePoints {
			edges[i] = cp.FromNode + "->" + cp.ToNode
		}
		add("5-15 min", "Sectionalise at choke points: "+strings.Join(edges, ", "))
	}

	if res.Scenario.LoadMultiplier > LoadSheddingMultiplier {
		shed := res.AffectedCapacityMW * (res.Scenario.LoadMultiplier - LoadSheddingMultiplier) / res.Scenario.LoadMultiplier
		add("10-20 min", fmt.Sprintf("Shed about %.1f MW of non-critical load on adjacent feeders (load at %.0f%% of nominal)",
			shed, res.Scenario.LoadMultiplier*100))
	}

	dispatch := fmt.Sprintf("Dispatch %d crew(s)", pb.CrewDispatch.CrewsNeeded)
	if pb.CrewDispatch.Located {
		dispatch += fmt.Sprintf(" staged at %.4f, %.4f", pb.CrewDispatch.Latitude, pb.CrewDispatch.Longitude)
	}
	add("15-30 min", dispatch)

	add("30-60 min", fmt.Sprintf("Start the restoration sequence at %s and follow the propagation tree outward", pz.NodeID))

	for _, delay := range ContainmentDelays {
		pb.Containment = append(pb.Containment, ContainmentPoint{
			DelayMinutes: delay,
			Probability:  ContainmentProbability(float64(delay)),
		})
	}

	return pb, nil
}

package cascade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/metrics"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// Default and maximum traversal bounds.
const (
	DefaultMaxWaves = 10
	DefaultMaxNodes = 10000
	LimitMaxWaves   = 100
	LimitMaxNodes   = 1000000
)

// Request describes one simulation. Nil stress fields take their value from
// the named scenario, or from the baseline scenario when none is named.
type Request struct {
	PatientZeroID    string   `json:"patient_zero_id"`
	ScenarioName     string   `json:"scenario_name,omitempty"`
	TemperatureC     *float64 `json:"temperature_c,omitempty"`
	LoadMultiplier   *float64 `json:"load_multiplier,omitempty"`
	FailureThreshold *float64 `json:"failure_threshold,omitempty"`
	MaxWaves         int      `json:"max_waves,omitempty"`
	MaxNodes         int      `json:"max_nodes,omitempty"`
}

// Resolve returns the effective scenario name and parameters.
func (r Request) Resolve() (ScenarioParameters, error) {
	name := r.ScenarioName
	if name == "" {
		name = ScenarioBaseline
	}
	scenario, err := LookupScenario(name)
	if err != nil {
		return ScenarioParameters{}, err
	}

	sp := ScenarioParameters{Name: scenario.Name, Parameters: scenario.Parameters()}
	if r.TemperatureC != nil {
		sp.TemperatureC = *r.TemperatureC
	}
	if r.LoadMultiplier != nil {
		sp.LoadMultiplier = *r.LoadMultiplier
	}
	if r.FailureThreshold != nil {
		sp.FailureThreshold = *r.FailureThreshold
	}
	if err := sp.Validate(); err != nil {
		return ScenarioParameters{}, err
	}
	return sp, nil
}

func (r Request) bounds() (int, int, error) {
	waves, nodes := r.MaxWaves, r.MaxNodes
	if waves == 0 {
		waves = DefaultMaxWaves
	}
	if nodes == 0 {
		nodes = DefaultMaxNodes
	}
	if waves < 0 || waves > LimitMaxWaves {
		return 0, 0, fmt.Errorf("%w: max_waves %d outside [1,%d]", ErrInvalidParameters, r.MaxWaves, LimitMaxWaves)
	}
	if nodes < 0 || nodes > LimitMaxNodes {
		return 0, 0, fmt.Errorf("%w: max_nodes %d outside [1,%d]", ErrInvalidParameters, r.MaxNodes, LimitMaxNodes)
	}
	return waves, nodes, nil
}

// Simulator runs cascade simulations. It holds no per-simulation state and
// is safe for concurrent use.
type Simulator struct {
	logger  logging.Logger
	metrics *metrics.Registry
	maxAge  time.Duration
	newID   func() string
	now     func() time.Time
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

// WithMetrics records every simulation in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Simulator) { s.metrics = reg }
}

// WithMaxSnapshotAge annotates results computed from a snapshot older than
// d. Zero disables the check.
func WithMaxSnapshotAge(d time.Duration) Option {
	return func(s *Simulator) { s.maxAge = d }
}

// NewSimulator creates a Simulator.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		logger: logging.NewNopLogger(),
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.Component("cascade"))
	return s
}

// run is the per-call traversal state.
type run struct {
	g       *topology.Graph
	snap    *centrality.Snapshot
	stress  float64
	thresh  float64
	failed  []bool
	missing map[int]struct{}
	result  *Result
}

// Simulate propagates a failure from req.PatientZeroID over g, using snap for
// betweenness. snap may be nil, in which case every betweenness is 0 and the
// result carries a warning. The traversal is deterministic: failures are
// evaluated in wave order, then source order, then neighbour order.
func (s *Simulator) Simulate(ctx context.Context, g *topology.Graph, snap *centrality.Snapshot, req Request) (*Result, error) {
	start := s.now()

	res, err := s.simulate(ctx, g, snap, req)

	if s.metrics != nil {
		scenario := req.ScenarioName
		if res != nil {
			scenario = res.Scenario.Name
		}
		if scenario == "" {
			scenario = ScenarioBaseline
		}
		status, affected, reason := simulationStatus(err), 0, ""
		if res != nil {
			affected, reason = res.TotalAffectedNodes, res.TruncationReason
		}
		s.metrics.RecordSimulation(scenario, status, s.now().Sub(start), affected, reason)
	}
	if err != nil {
		return nil, err
	}

	res.SimulatedAt = start
	res.Duration = s.now().Sub(start)

	s.logger.Info("simulation complete",
		logging.SimulationID(res.SimulationID),
		logging.NodeID(res.PatientZero),
		logging.String("scenario", res.Scenario.Name),
		logging.Int("affected_nodes", res.TotalAffectedNodes),
		logging.Int("max_depth", res.MaxCascadeDepth),
		logging.Bool("truncated", res.Truncated),
		logging.Latency(res.Duration),
	)
	return res, nil
}

func (s *Simulator) simulate(ctx context.Context, g *topology.Graph, snap *centrality.Snapshot, req Request) (*Result, error) {
	if g == nil {
		return nil, topology.ErrNoTopology
	}
	origin, ok := g.Index(req.PatientZeroID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPatientZeroNotFound, req.PatientZeroID)
	}
	params, err := req.Resolve()
	if err != nil {
		return nil, err
	}
	maxWaves, maxNodes, err := req.bounds()
	if err != nil {
		return nil, err
	}

	r := &run{
		g:       g,
		snap:    snap,
		stress:  params.Stress(),
		thresh:  params.FailureThreshold,
		failed:  make([]bool, g.Len()),
		missing: make(map[int]struct{}),
		result:  &Result{
			SimulationID:     s.newID(),
			PatientZero:      req.PatientZeroID,
			Scenario:         params,
			MaxWaves:         maxWaves,
			MaxNodes:         maxNodes,
			CascadeOrder:     []FailedNode{},
			WaveBreakdown:    []Wave{},
			PropagationPaths: []PropagationPath{},
			TopologyVersion:  g.Version(),
		},
	}
	age := snap.Age(s.now())
	switch {
	case snap == nil:
		r.result.Warnings = append(r.result.Warnings, "no centrality snapshot available; betweenness treated as 0")
	case s.maxAge > 0 && age > s.maxAge:
		r.result.SnapshotVersion = snap.Version
		r.result.Warnings = append(r.result.Warnings, fmt.Sprintf(
			"centrality snapshot v%d is stale (computed %s ago); betweenness may not reflect the current topology",
			snap.Version, age.Round(time.Second)))
	default:
		r.result.SnapshotVersion = snap.Version
	}

	r.fail(origin, -1, 0, 1)
	r.closeWave(0)

	frontier := []int{origin}
	for depth := 0; len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.result.TotalAffectedNodes >= maxNodes {
			r.truncate(TruncatedMaxNodes, frontier)
			break
		}
		if depth >= maxWaves {
			r.truncate(TruncatedMaxWaves, frontier)
			break
		}

		next := r.spread(frontier, depth+1, maxNodes)
		if len(next) > 0 {
			r.closeWave(depth + 1)
		}
		if r.result.TotalAffectedNodes >= maxNodes {
			r.truncate(TruncatedMaxNodes, append(frontier, next...))
			break
		}
		frontier = next
	}

	if len(r.missing) > 0 && snap != nil {
		r.result.Warnings = append(r.result.Warnings,
			fmt.Sprintf("centrality missing for %d node(s); betweenness treated as 0", len(r.missing)))
	}
	return r.result, nil
}

// spread evaluates every edge out of frontier and returns the nodes that fail
// at depth, stopping once maxNodes is reached.
func (r *run) spread(frontier []int, depth, maxNodes int) []int {
	var next []int
	for _, u := range frontier {
		srcWeight := r.sourceWeight(u)
		for _, nb := range r.g.Neighbors(u) {
			if r.failed[nb.Index] {
				continue
			}
			p := FailureProbability(nb.DistanceKM, srcWeight, r.betweenness(nb.Index), r.stress)
			if p <= r.thresh {
				continue
			}
			r.fail(nb.Index, u, depth, p)
			r.result.PropagationPaths = append(r.result.PropagationPaths, PropagationPath{
				FromNode:           r.g.Node(u).ID,
				ToNode:             r.g.Node(nb.Index).ID,
				SequenceOrder:      r.result.TotalAffectedNodes,
				DistanceKM:         nb.DistanceKM,
				FailureProbability: p,
			})
			next = append(next, nb.Index)
			if r.result.TotalAffectedNodes >= maxNodes {
				return next
			}
		}
	}
	return next
}

// pending reports whether any node in from could still fail a neighbour.
func (r *run) pending(from []int) bool {
	for _, u := range from {
		srcWeight := r.sourceWeight(u)
		for _, nb := range r.g.Neighbors(u) {
			if !r.failed[nb.Index] && FailureProbability(nb.DistanceKM, srcWeight, r.betweenness(nb.Index), r.stress) > r.thresh {
				return true
			}
		}
	}
	return false
}

func (r *run) truncate(reason string, from []int) {
	if r.pending(from) {
		r.result.Truncated = true
		r.result.TruncationReason = reason
	}
}

func (r *run) fail(i, parent, depth int, p float64) {
	node := r.g.Node(i)
	r.failed[i] = true

	fn := FailedNode{
		NodeID:                 node.ID,
		Name:                   node.Name,
		Type:                   node.Type,
		WaveDepth:              depth,
		SequenceOrder:          len(r.result.CascadeOrder) + 1,
		Latitude:               node.Latitude,
		Longitude:              node.Longitude,
		CapacityKW:             node.CapacityKW,
		DownstreamTransformers: node.DownstreamTransformers,
		FailureProbability:     p,
	}
	if parent >= 0 {
		fn.CausedBy = r.g.Node(parent).ID
	}

	res := r.result
	res.CascadeOrder = append(res.CascadeOrder, fn)
	res.TotalAffectedNodes++
	res.AffectedCapacityMW += node.CapacityKW / 1000
	res.EstimatedCustomersAffected += fn.Customers()
	res.MaxCascadeDepth = max(res.MaxCascadeDepth, depth)
}

func (r *run) closeWave(depth int) {
	count := 0
	for i := len(r.result.CascadeOrder) - 1; i >= 0 && r.result.CascadeOrder[i].WaveDepth == depth; i-- {
		count++
	}
	r.result.WaveBreakdown = append(r.result.WaveBreakdown, Wave{
		Wave:                        depth,
		NodesFailed:                 count,
		CumulativeCapacityLostMW:    r.result.AffectedCapacityMW,
		CumulativeCustomersAffected: r.result.EstimatedCustomersAffected,
	})
}

func (r *run) betweenness(i int) float64 {
	if r.snap == nil {
		return 0
	}
	f, ok := r.snap.Get(r.g.Node(i).ID)
	if !ok {
		r.missing[i] = struct{}{}
		return 0
	}
	return f.BetweennessCentrality
}

func (r *run) sourceWeight(i int) float64 {
	return max(r.g.Node(i).Criticality, r.betweenness(i))
}

func simulationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrPatientZeroNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidParameters), errors.Is(err, ErrUnknownScenario):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

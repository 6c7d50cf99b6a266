package centrality

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/dd0wney/gridcascade/pkg/algorithms"
	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/parallel"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

// Options configures an Engine.
type Options struct {
	// MinComponentSize is the smallest connected component that qualifies
	// for shortest-path centrality.
	MinComponentSize int
	// ExactBetweennessLimit is the component size above which betweenness
	// switches to source sampling.
	ExactBetweennessLimit int
	// SampleSources is the number of sources used when sampling.
	SampleSources int
	// Seed drives source sampling.
	Seed int64
	// ReachDepth is the BFS depth of the reach features.
	ReachDepth int
	// Workers bounds the goroutines used by reach and betweenness.
	Workers  int
	PageRank algorithms.PageRankOptions
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MinComponentSize:      3,
		ExactBetweennessLimit: 5000,
		SampleSources:         1000,
		Seed:                  1,
		ReachDepth:            3,
		Workers:               runtime.GOMAXPROCS(0),
		PageRank:              algorithms.DefaultPageRankOptions(),
	}
}

// Engine turns a topology graph into a centrality Snapshot. It is stateless
// between calls and safe for concurrent use.
type Engine struct {
	opts   Options
	logger logging.Logger
	now    func() time.Time
}

// NewEngine creates an Engine. Zero-valued options fall back to defaults.
func NewEngine(opts Options, logger logging.Logger) *Engine {
	def := DefaultOptions()
	if opts.MinComponentSize <= 0 {
		opts.MinComponentSize = def.MinComponentSize
	}
	if opts.ExactBetweennessLimit <= 0 {
		opts.ExactBetweennessLimit = def.ExactBetweennessLimit
	}
	if opts.SampleSources <= 0 {
		opts.SampleSources = def.SampleSources
	}
	if opts.ReachDepth <= 0 {
		opts.ReachDepth = def.ReachDepth
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.PageRank.MaxIterations <= 0 {
		opts.PageRank = def.PageRank
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		opts:   opts,
		logger: logger.With(logging.Component("centrality")),
		now:    time.Now,
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Compute produces one Features record per node of g. Betweenness and
// PageRank are computed only on the largest connected component of at least
// MinComponentSize nodes; every other node gets a proxy score. The returned
// snapshot carries Version 0 until it is published to a Store.
func (e *Engine) Compute(ctx context.Context, g *topology.Graph) (*Snapshot, error) {
	start := e.now()
	n := g.Len()

	snap := &Snapshot{
		TopologyVersion: g.Version(),
		ComputedAt:      start,
		Method:          MethodProxy,
		Features:        make(map[string]Features, n),
	}
	if n == 0 {
		return snap, nil
	}

	hops := make([]algorithms.HopCounts, n)
	if err := parallel.ForEach(ctx, e.opts.Workers, n, func(i int) {
		hops[i] = algorithms.KHopCounts(g, i, e.opts.ReachDepth)
	}); err != nil {
		return nil, fmt.Errorf("reach computation: %w", err)
	}

	ratios := make([]float64, n)
	maxRatio := 0.0
	maxDegree := 0
	for i := 0; i < n; i++ {
		ratios[i] = float64(hops[i].Total()) / float64(max(hops[i].At(1), 1))
		maxRatio = math.Max(maxRatio, ratios[i])
		maxDegree = max(maxDegree, g.Degree(i))
	}

	clustering := algorithms.CountTriangles(g).ClusteringCoefficients

	var (
		bc, pr       []float64
		inComponent  []bool
		maxBC, maxPR float64
	)
	component, qualifies := algorithms.LargestComponent(g, e.opts.MinComponentSize)
	if qualifies {
		snap.ComponentSize = component.Size()

		bopts := algorithms.BetweennessOptions{Workers: e.opts.Workers, Seed: e.opts.Seed}
		snap.Method = MethodExact
		if component.Size() > e.opts.ExactBetweennessLimit {
			bopts.SampleSources = e.opts.SampleSources
		}

		res, err := algorithms.BrandesBetweenness(ctx, g, component.Nodes, bopts)
		if err != nil {
			return nil, fmt.Errorf("betweenness: %w", err)
		}
		if res.Sampled {
			snap.Method = MethodSampled
			snap.SampledSources = res.Sources
		}
		bc = res.Scores
		pr = algorithms.PageRank(g, component.Nodes, e.opts.PageRank).Scores

		inComponent = make([]bool, n)
		for _, i := range component.Nodes {
			inComponent[i] = true
			maxBC = math.Max(maxBC, bc[i])
			maxPR = math.Max(maxPR, pr[i])
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	degreeNorm := 0.0
	if n > 1 {
		degreeNorm = 1.0 / float64(n-1)
	}

	for i := 0; i < n; i++ {
		node := g.Node(i)
		reachNorm := ratio(ratios[i], maxRatio)

		f := Features{
			NodeID:                node.ID,
			DegreeCentrality:      clamp01(float64(g.Degree(i)) * degreeNorm),
			ClusteringCoefficient: clustering[i],
			Hop1:                  hops[i].At(1),
			Hop2:                  hops[i].At(2),
			Hop3:                  hops[i].At(3),
			TotalReach:            hops[i].Total(),
			ReachExpansionRatio:   ratios[i],
			ComputedAt:            start,
		}

		if inComponent != nil && inComponent[i] {
			f.BetweennessCentrality = clamp01(bc[i])
			f.PageRank = pr[i]
			f.Exact = true
			f.Method = snap.Method
			f.CascadeRiskScore = clamp01(
				WeightBetweenness*ratio(bc[i], maxBC) +
					WeightPageRank*ratio(pr[i], maxPR) +
					WeightReach*reachNorm)
		} else {
			f.Method = MethodProxy
			f.CascadeRiskScore = proxyScore(node.Criticality, g.Degree(i), maxDegree, reachNorm)
		}

		snap.Features[node.ID] = f
	}

	snap.Duration = e.now().Sub(start)

	e.logger.Info("centrality computed",
		logging.TopologyVersion(g.Version()),
		logging.Int("nodes", n),
		logging.Int("component_size", snap.ComponentSize),
		logging.String("method", string(snap.Method)),
		logging.Latency(snap.Duration),
	)

	return snap, nil
}

func proxyScore(criticality float64, degree, maxDegree int, reachNorm float64) float64 {
	return clamp01(
		WeightCriticality*clamp01(criticality) +
			WeightDegree*ratio(float64(degree), float64(maxDegree)) +
			WeightReach*reachNorm)
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/dd0wney/gridcascade/pkg/api/middleware"
	"github.com/dd0wney/gridcascade/pkg/auth"
	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/health"
	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/metrics"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/risk"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

const (
	// DefaultRequestTimeout bounds simulation and analysis requests.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultMaxBodyBytes bounds request bodies. Simulation results posted
	// back for decision support can hold every node of the network.
	DefaultMaxBodyBytes int64 = 16 << 20
)

// GraphSource supplies the live topology. *topology.Syncer satisfies it.
type GraphSource interface {
	Current() *topology.Graph
}

// BatchController controls the out-of-band centrality batch.
// *centrality.Scheduler satisfies it.
type BatchController interface {
	Trigger()
	Status() centrality.Status
}

// Deps are the components the API reads from. Graphs and Snapshots are
// required; nil Simulator, Ranker or Assessor get defaults.
type Deps struct {
	Graphs    GraphSource
	Snapshots *centrality.Store
	Batch     BatchController
	Simulator *cascade.Simulator
	Ranker    *ranking.Ranker
	Assessor  *risk.Assessor
	Health    *health.HealthChecker
	Metrics   *metrics.Registry
	// Tokens enables bearer-token checks when non-nil.
	Tokens *auth.JWTManager
	// GraphQL is mounted at /graphql when non-nil.
	GraphQL http.Handler
}

// Server is the HTTP API.
type Server struct {
	graphs    GraphSource
	snapshots *centrality.Store
	batch     BatchController
	simulator *cascade.Simulator
	ranker    *ranking.Ranker
	assessor  *risk.Assessor
	health    *health.HealthChecker
	metrics   *metrics.Registry
	tokens    *auth.JWTManager
	graphql   http.Handler

	logger         logging.Logger
	requestTimeout time.Duration
	maxBodyBytes   int64
	corsConfig     *middleware.CORSConfig
	rateLimiter    *middleware.RateLimiter
	now            func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRequestTimeout bounds each simulation and analysis request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithCORS enables CORS handling with cfg.
func WithCORS(cfg *middleware.CORSConfig) Option {
	return func(s *Server) { s.corsConfig = cfg }
}

// WithRateLimit limits the simulation endpoint per client address.
func WithRateLimit(cfg middleware.RateLimitConfig) Option {
	return func(s *Server) { s.rateLimiter = middleware.NewRateLimiter(cfg) }
}

// NewServer creates the API server.
func NewServer(deps Deps, opts ...Option) (*Server, error) {
	if deps.Graphs == nil {
		return nil, errors.New("api: graph source is required")
	}
	if deps.Snapshots == nil {
		return nil, errors.New("api: snapshot store is required")
	}

	s := &Server{
		graphs:         deps.Graphs,
		snapshots:      deps.Snapshots,
		batch:          deps.Batch,
		simulator:      deps.Simulator,
		ranker:         deps.Ranker,
		assessor:       deps.Assessor,
		health:         deps.Health,
		metrics:        deps.Metrics,
		tokens:         deps.Tokens,
		graphql:        deps.GraphQL,
		logger:         logging.NewNopLogger(),
		requestTimeout: DefaultRequestTimeout,
		maxBodyBytes:   DefaultMaxBodyBytes,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.simulator == nil {
		s.simulator = cascade.NewSimulator(
			cascade.WithLogger(s.logger),
			cascade.WithMetrics(s.metrics),
			cascade.WithMaxSnapshotAge(ranking.DefaultMaxSnapshotAge),
		)
	}
	if s.ranker == nil {
		s.ranker = ranking.NewRanker(ranking.WithMetrics(s.metrics))
	}
	if s.assessor == nil {
		s.assessor = risk.NewAssessor(nil, time.UTC, s.metrics)
	}
	s.logger = s.logger.With(logging.Component("api"))
	return s, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)

	// Metrics stays innermost so it sees the pattern ServeMux sets on the
	// request.
	var recorder middleware.MetricsRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}
	return middleware.Chain(mux,
		middleware.PanicRecovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.CORS(s.corsConfig),
		middleware.SecurityHeaders(),
		middleware.BodySizeLimit(s.maxBodyBytes),
		middleware.Metrics(recorder),
	)
}

func (s *Server) routes(mux *http.ServeMux) {
	viewer := func(h http.HandlerFunc) http.Handler { return s.requireRole(auth.RoleViewer, h) }
	operator := func(h http.HandlerFunc) http.Handler { return s.requireRole(auth.RoleOperator, h) }

	// Analysis
	mux.Handle("GET /api/v1/patient-zero-candidates", viewer(s.handleCandidates))
	mux.Handle("POST /api/v1/simulate", middleware.RateLimit(s.rateLimiter, middleware.RemoteIP, s.logger)(operator(s.handleSimulate)))
	mux.Handle("GET /api/v1/scenarios", viewer(s.handleScenarios))
	mux.Handle("POST /api/v1/economic-impact", viewer(s.handleEconomicImpact))
	mux.Handle("POST /api/v1/mitigation-actions", viewer(s.handleMitigationActions))
	mux.Handle("POST /api/v1/restoration-sequence", viewer(s.handleRestorationSequence))
	mux.Handle("GET /api/v1/realtime-risk", viewer(s.handleRealtimeRisk))

	// Operations support
	mux.Handle("GET /api/v1/centrality/status", viewer(s.handleCentralityStatus))
	mux.Handle("POST /api/v1/centrality/recompute", operator(s.handleRecompute))
	mux.Handle("GET /api/v1/nodes/{id...}", viewer(s.handleNode))

	if s.graphql != nil {
		mux.Handle("POST /graphql", s.requireRole(auth.RoleViewer, s.graphql))
	}

	if s.health != nil {
		mux.HandleFunc("GET /health", s.health.HTTPHandler())
		mux.HandleFunc("GET /health/live", s.health.LivenessHandler())
		mux.HandleFunc("GET /health/ready", s.health.ReadinessHandler())
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

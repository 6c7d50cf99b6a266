package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/gridcascade/pkg/api/middleware"
	"github.com/dd0wney/gridcascade/pkg/auth"
	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/health"
	"github.com/dd0wney/gridcascade/pkg/metrics"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type staticGraphs struct{ g *topology.Graph }

func (s staticGraphs) Current() *topology.Graph { return s.g }

type fakeBatch struct{ triggers atomic.Int32 }

func (f *fakeBatch) Trigger() { f.triggers.Add(1) }
func (f *fakeBatch) Status() centrality.Status {
	return centrality.Status{Runs: 3, SnapshotVersion: 1}
}

// hubFixture is SUB-HUB feeding ten transformers, with an exact snapshot
// that scores the hub highest.
func hubFixture() (*topology.Graph, *centrality.Store) {
	nodes := []topology.GridNode{{
		ID: "SUB-HUB", Type: topology.NodeTypeSubstation, Name: "Central",
		CapacityKW: 50000, Criticality: 0.9, DownstreamTransformers: 10,
		Latitude: 29.76, Longitude: -95.37,
	}}
	var edges []topology.GridEdge
	features := map[string]centrality.Features{
		"SUB-HUB": {NodeID: "SUB-HUB", BetweennessCentrality: 0.906, CascadeRiskScore: 0.95, TotalReach: 10, Exact: true, Method: centrality.MethodExact},
	}
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("TX-%04d", i)
		nodes = append(nodes, topology.GridNode{
			ID: id, Type: topology.NodeTypeTransformer, CapacityKW: 500, Criticality: 0.3,
			DownstreamTransformers: 1, ParentID: "SUB-HUB",
			Latitude: 29.76 + float64(i)/1000, Longitude: -95.37,
		})
		edges = append(edges, topology.GridEdge{FromNodeID: "SUB-HUB", ToNodeID: id, Type: topology.EdgeTypeHierarchical, DistanceKM: 0.5})
		features[id] = centrality.Features{NodeID: id, CascadeRiskScore: 0.1, Exact: true, Method: centrality.MethodExact}
	}

	store := centrality.NewStore()
	store.Publish(&centrality.Snapshot{TopologyVersion: 1, ComputedAt: time.Now(), Method: centrality.MethodExact, Features: features})
	return topology.Build(nodes, edges).Stamp(1, time.Now()), store
}

func newTestServer(t *testing.T, deps Deps, opts ...Option) http.Handler {
	t.Helper()
	if deps.Graphs == nil || deps.Snapshots == nil {
		g, store := hubFixture()
		deps.Graphs = staticGraphs{g}
		deps.Snapshots = store
	}
	s, err := NewServer(deps, opts...)
	require.NoError(t, err)
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func testCounter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.Counter.GetValue()
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestNewServerRequiresSources(t *testing.T) {
	_, err := NewServer(Deps{Snapshots: centrality.NewStore()})
	assert.Error(t, err)

	g, _ := hubFixture()
	_, err = NewServer(Deps{Graphs: staticGraphs{g}})
	assert.Error(t, err)
}

func TestCandidates(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodGet, "/api/v1/patient-zero-candidates?limit=3&only_exact=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[ranking.Ranking](t, rec)
	require.Len(t, got.Candidates, 3)
	assert.Equal(t, "SUB-HUB", got.Candidates[0].NodeID)
	assert.Equal(t, 1, got.Candidates[0].Rank)
	assert.Equal(t, "Central", got.Candidates[0].Name)
	assert.False(t, got.ProxyFallback)
	assert.Equal(t, uint64(1), got.SnapshotVersion)
}

func TestCandidatesRejectsBadQuery(t *testing.T) {
	h := newTestServer(t, Deps{})

	tests := []struct {
		name  string
		query string
	}{
		{"non-numeric limit", "limit=abc"},
		{"limit above maximum", "limit=5000"},
		{"negative limit", "limit=-1"},
		{"bad boolean", "only_exact=maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/v1/patient-zero-candidates?"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, http.StatusBadRequest, body.Code)
			assert.Equal(t, "Bad Request", body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestCandidatesWithoutTopology(t *testing.T) {
	h := newTestServer(t, Deps{Graphs: staticGraphs{}, Snapshots: centrality.NewStore()})

	rec := do(t, h, http.MethodGet, "/api/v1/patient-zero-candidates", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSimulate(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"patient_zero_id": "SUB-HUB",
		"scenario_name":   "extreme_cold",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decodeBody[cascade.Result](t, rec)
	assert.Equal(t, "SUB-HUB", res.PatientZero)
	assert.Equal(t, "extreme_cold", res.Scenario.Name)
	assert.Equal(t, 11, res.TotalAffectedNodes)
	assert.Equal(t, 1, res.MaxCascadeDepth)
	assert.Equal(t, 1000, res.EstimatedCustomersAffected)
	assert.False(t, res.Truncated)
	assert.NotEmpty(t, res.SimulationID)
	require.NotEmpty(t, res.CascadeOrder)
	assert.Equal(t, 1, res.CascadeOrder[0].SequenceOrder)
}

func TestSimulateTruncates(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"patient_zero_id": "SUB-HUB",
		"scenario_name":   "extreme_cold",
		"max_nodes":       4,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[cascade.Result](t, rec)
	assert.True(t, res.Truncated)
	assert.Equal(t, cascade.TruncatedMaxNodes, res.TruncationReason)
	assert.Equal(t, 4, res.TotalAffectedNodes)
}

func TestSimulateErrors(t *testing.T) {
	h := newTestServer(t, Deps{})

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"unknown node", map[string]any{"patient_zero_id": "SUB-NOPE"}, http.StatusNotFound},
		{"missing patient zero", map[string]any{"scenario_name": "baseline"}, http.StatusBadRequest},
		{"unknown scenario", map[string]any{"patient_zero_id": "SUB-HUB", "scenario_name": "meteor"}, http.StatusBadRequest},
		{"temperature out of range", map[string]any{"patient_zero_id": "SUB-HUB", "temperature_c": 100}, http.StatusBadRequest},
		{"threshold out of range", map[string]any{"patient_zero_id": "SUB-HUB", "failure_threshold": 1.5}, http.StatusBadRequest},
		{"invalid node id", map[string]any{"patient_zero_id": "bad id!"}, http.StatusBadRequest},
		{"malformed json", `{"patient_zero_id":`, http.StatusBadRequest},
		{"empty body", "", http.StatusBadRequest},
		{"trailing document", `{"patient_zero_id":"SUB-HUB"} {}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/simulate", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestSimulateBodyLimit(t *testing.T) {
	h := newTestServer(t, Deps{}, WithMaxBodyBytes(16))

	rec := do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{"patient_zero_id": "SUB-HUB"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSimulateRateLimit(t *testing.T) {
	h := newTestServer(t, Deps{}, WithRateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         1,
		ClientExpiration:  time.Minute,
		MaxClients:        10,
	}))

	body := map[string]any{"patient_zero_id": "SUB-HUB"}
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/simulate", body).Code)

	rec := do(t, h, http.MethodPost, "/api/v1/simulate", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Reads are not rate limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/scenarios", nil).Code)
}

func TestScenarios(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodGet, "/api/v1/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[ScenariosResponse](t, rec)
	require.Len(t, got.Scenarios, len(cascade.Scenarios()))
	for _, s := range got.Scenarios {
		assert.Equal(t, "SUB-HUB", s.RecommendedPatientZero, s.Name)
	}
	assert.Empty(t, got.Warnings)
}

func TestScenariosWithoutSnapshot(t *testing.T) {
	g, _ := hubFixture()
	h := newTestServer(t, Deps{Graphs: staticGraphs{g}, Snapshots: centrality.NewStore()})

	got := decodeBody[ScenariosResponse](t, do(t, h, http.MethodGet, "/api/v1/scenarios", nil))
	assert.NotEmpty(t, got.Warnings)
	for _, s := range got.Scenarios {
		assert.Empty(t, s.RecommendedPatientZero)
	}
}

func TestDecisionEndpoints(t *testing.T) {
	h := newTestServer(t, Deps{})

	sim := do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{
		"patient_zero_id": "SUB-HUB",
		"scenario_name":   "extreme_cold",
	})
	require.Equal(t, http.StatusOK, sim.Code)
	result := sim.Body.String()

	for _, path := range []string{
		"/api/v1/economic-impact",
		"/api/v1/mitigation-actions",
		"/api/v1/restoration-sequence",
	} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, path, result)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			wrapped := do(t, h, http.MethodPost, path, `{"simulation":`+result+`}`)
			assert.Equal(t, http.StatusOK, wrapped.Code, wrapped.Body.String())
			assert.JSONEq(t, rec.Body.String(), wrapped.Body.String())

			empty := do(t, h, http.MethodPost, path, `{}`)
			assert.Equal(t, http.StatusBadRequest, empty.Code)
		})
	}
}

func TestDecisionEndpointsRejectInconsistentResults(t *testing.T) {
	h := newTestServer(t, Deps{})

	sim := do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{"patient_zero_id": "SUB-HUB", "scenario_name": "extreme_cold"})
	require.Equal(t, http.StatusOK, sim.Code)
	require.GreaterOrEqual(t, len(decodeBody[cascade.Result](t, sim).CascadeOrder), 2)

	tests := []struct {
		name   string
		mutate func(*cascade.Result)
	}{
		{"patient zero not first", func(r *cascade.Result) {
			r.CascadeOrder[0], r.CascadeOrder[1] = r.CascadeOrder[1], r.CascadeOrder[0]
		}},
		{"duplicate node", func(r *cascade.Result) { r.CascadeOrder[1].NodeID = r.CascadeOrder[0].NodeID }},
		{"negative transformers", func(r *cascade.Result) { r.CascadeOrder[1].DownstreamTransformers = -4 }},
		{"negative capacity", func(r *cascade.Result) { r.CascadeOrder[1].CapacityKW = -500 }},
		{"customers disagree", func(r *cascade.Result) { r.EstimatedCustomersAffected = 999999 }},
		{"node count disagrees", func(r *cascade.Result) { r.TotalAffectedNodes++ }},
		{"capacity disagrees", func(r *cascade.Result) { r.AffectedCapacityMW += 100 }},
	}
	for _, path := range []string{
		"/api/v1/economic-impact",
		"/api/v1/mitigation-actions",
		"/api/v1/restoration-sequence",
	} {
		for _, tt := range tests {
			t.Run(path+"/"+tt.name, func(t *testing.T) {
				res := decodeBody[cascade.Result](t, sim)
				tt.mutate(&res)

				rec := do(t, h, http.MethodPost, path, res)
				require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
				got := decodeBody[ErrorResponse](t, rec)
				assert.Contains(t, got.Message, "invalid simulation result")
			})
		}
	}
}

func TestEconomicImpactBody(t *testing.T) {
	h := newTestServer(t, Deps{})

	sim := do(t, h, http.MethodPost, "/api/v1/simulate", map[string]any{"patient_zero_id": "SUB-HUB", "scenario_name": "extreme_cold"})
	require.Equal(t, http.StatusOK, sim.Code)

	rec := do(t, h, http.MethodPost, "/api/v1/economic-impact", sim.Body.String())
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 1000, got["customers_affected"])
	assert.Contains(t, got, "total_estimated_cost")
	assert.Contains(t, got, "severity")
}

func TestRealtimeRisk(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodGet, "/api/v1/realtime-risk", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[map[string]any](t, rec)
	assert.Contains(t, got, "score")
	assert.Contains(t, got, "level")
	assert.Contains(t, got, "recommended_action")
}

func TestCentralityStatusAndRecompute(t *testing.T) {
	batch := &fakeBatch{}
	h := newTestServer(t, Deps{Batch: batch})

	rec := do(t, h, http.MethodGet, "/api/v1/centrality/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[CentralityStatusResponse](t, rec)
	require.NotNil(t, status.Snapshot)
	assert.Equal(t, uint64(1), status.Snapshot.Version)
	assert.Equal(t, 11, status.Snapshot.Nodes)
	assert.Equal(t, 11, status.Snapshot.ExactNodes)
	assert.False(t, status.Snapshot.Stale)
	require.NotNil(t, status.Scheduler)
	assert.Equal(t, uint64(3), status.Scheduler.Runs)

	rec = do(t, h, http.MethodPost, "/api/v1/centrality/recompute", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int32(1), batch.triggers.Load())
	assert.Equal(t, "accepted", decodeBody[RecomputeResponse](t, rec).Status)
}

func TestRecomputeWithoutScheduler(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodPost, "/api/v1/centrality/recompute", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNode(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodGet, "/api/v1/nodes/SUB-HUB", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[NodeResponse](t, rec)
	assert.Equal(t, "Central", got.Node.Name)
	assert.Equal(t, 10, got.Degree)
	require.NotNil(t, got.Features)
	assert.InDelta(t, 0.906, got.Features.BetweennessCentrality, 1e-9)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/nodes/TX-9999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/nodes/%21bad", nil).Code)
}

func TestNodeWithSlashedID(t *testing.T) {
	g := topology.Build([]topology.GridNode{
		{ID: "feeder.3/pole:7", Type: topology.NodeTypePole, Name: "Pole 7", CapacityKW: 50, Criticality: 0.2},
		{ID: "feeder.3/tx:1", Type: topology.NodeTypeTransformer, CapacityKW: 500, Criticality: 0.4, DownstreamTransformers: 1},
	}, []topology.GridEdge{
		{FromNodeID: "feeder.3/tx:1", ToNodeID: "feeder.3/pole:7", Type: topology.EdgeTypeHierarchical, DistanceKM: 0.2},
	})
	h := newTestServer(t, Deps{Graphs: staticGraphs{g}, Snapshots: centrality.NewStore()})

	rec := do(t, h, http.MethodGet, "/api/v1/nodes/feeder.3/pole:7", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[NodeResponse](t, rec)
	assert.Equal(t, "feeder.3/pole:7", got.Node.ID)
	assert.Equal(t, 1, got.Degree)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/nodes/feeder.3/pole:8", nil).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodGet, "/api/v1/simulate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	g, store := hubFixture()
	hc := health.NewHealthChecker()
	hc.RegisterReadinessCheck("topology", health.TopologyCheck(staticGraphs{g}.Current))
	hc.RegisterReadinessCheck("snapshot", health.SnapshotCheck(store, time.Hour))

	h := newTestServer(t, Deps{Graphs: staticGraphs{g}, Snapshots: store, Health: hc})
	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, path, nil).Code, path)
	}
}

func TestMetricsEndpointAndRouteLabels(t *testing.T) {
	reg := metrics.NewRegistry()
	h := newTestServer(t, Deps{Metrics: reg})

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/nodes/SUB-HUB", nil).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/nodes/TX-0001", nil).Code)

	c, err := reg.HTTPRequestsTotal.GetMetricWithLabelValues("GET", "GET /api/v1/nodes/{id...}", "200")
	require.NoError(t, err)
	assert.Equal(t, 2.0, testCounter(t, c))

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gridcascade_http_requests_total")
}

func TestAuth(t *testing.T) {
	tokens, err := auth.NewJWTManager(testSecret, "gridcascade", time.Hour)
	require.NoError(t, err)
	h := newTestServer(t, Deps{Tokens: tokens, Batch: &fakeBatch{}})

	viewer, err := tokens.GenerateToken("dispatcher", auth.RoleViewer)
	require.NoError(t, err)
	operator, err := tokens.GenerateToken("control-room", auth.RoleOperator)
	require.NoError(t, err)

	sim := map[string]any{"patient_zero_id": "SUB-HUB"}
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		token  string
		status int
	}{
		{"read without token", http.MethodGet, "/api/v1/scenarios", nil, "", http.StatusUnauthorized},
		{"read with garbage token", http.MethodGet, "/api/v1/scenarios", nil, "not-a-jwt", http.StatusUnauthorized},
		{"read as viewer", http.MethodGet, "/api/v1/scenarios", nil, viewer, http.StatusOK},
		{"simulate as viewer", http.MethodPost, "/api/v1/simulate", sim, viewer, http.StatusForbidden},
		{"simulate as operator", http.MethodPost, "/api/v1/simulate", sim, operator, http.StatusOK},
		{"recompute as viewer", http.MethodPost, "/api/v1/centrality/recompute", nil, viewer, http.StatusForbidden},
		{"recompute as operator", http.MethodPost, "/api/v1/centrality/recompute", nil, operator, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var header []string
			if tt.token != "" {
				header = []string{"Authorization", "Bearer " + tt.token}
			}
			rec := do(t, h, tt.method, tt.path, tt.body, header...)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec := do(t, h, http.MethodGet, "/api/v1/scenarios", nil, "X-Request-ID", "trace-42")
	assert.Equal(t, "trace-42", rec.Header().Get("X-Request-ID"))
}

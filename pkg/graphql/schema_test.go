package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

type staticGraphs struct{ g *topology.Graph }

func (s staticGraphs) Current() *topology.Graph { return s.g }

// feeder is SUB-1 - TX-1 - POLE-1 - MTR-1 with SUB-1 the riskiest node.
func feeder(t *testing.T) Sources {
	t.Helper()
	g := topology.Build([]topology.GridNode{
		{ID: "SUB-1", Type: topology.NodeTypeSubstation, Name: "North", CapacityKW: 20000, DownstreamTransformers: 1},
		{ID: "TX-1", Type: topology.NodeTypeTransformer, CapacityKW: 500, DownstreamTransformers: 1, ParentID: "SUB-1"},
		{ID: "POLE-1", Type: topology.NodeTypePole, ParentID: "TX-1"},
		{ID: "MTR-1", Type: topology.NodeTypeMeter, ParentID: "POLE-1"},
	}, []topology.GridEdge{
		{FromNodeID: "SUB-1", ToNodeID: "TX-1", Type: topology.EdgeTypeHierarchical, DistanceKM: 1},
		{FromNodeID: "TX-1", ToNodeID: "POLE-1", Type: topology.EdgeTypeHierarchical, DistanceKM: 0.2},
		{FromNodeID: "POLE-1", ToNodeID: "MTR-1", Type: topology.EdgeTypeHierarchical, DistanceKM: 0.05},
	}).Stamp(1, time.Now())

	store := centrality.NewStore()
	store.Publish(&centrality.Snapshot{
		ComputedAt: time.Now(),
		Method:     centrality.MethodExact,
		Features: map[string]centrality.Features{
			"SUB-1":  {NodeID: "SUB-1", CascadeRiskScore: 0.9, PageRank: 0.4, Exact: true, Method: centrality.MethodExact},
			"TX-1":   {NodeID: "TX-1", CascadeRiskScore: 0.7, Exact: true, Method: centrality.MethodExact},
			"POLE-1": {NodeID: "POLE-1", CascadeRiskScore: 0.3, Exact: true, Method: centrality.MethodExact},
			"MTR-1":  {NodeID: "MTR-1", CascadeRiskScore: 0.1, Exact: true, Method: centrality.MethodExact},
		},
	})
	return Sources{Graphs: staticGraphs{g}, Snapshots: store}
}

func run(t *testing.T, src Sources, query string) (map[string]any, []string) {
	t.Helper()
	schema, err := GenerateSchema(src)
	if err != nil {
		t.Fatalf("GenerateSchema() error = %v", err)
	}
	res := ExecuteQuery(context.Background(), schema, query, nil, "", DefaultMaxDepth)
	var errs []string
	for _, e := range res.Errors {
		errs = append(errs, e.Message)
	}
	data, _ := res.Data.(map[string]any)
	return data, errs
}

func TestGenerateSchemaRequiresSources(t *testing.T) {
	if _, err := GenerateSchema(Sources{}); err == nil {
		t.Error("expected error for empty sources")
	}
	src := feeder(t)
	src.Limits = &LimitConfig{DefaultLimit: 50, MaxLimit: 10, MaxDepth: 3}
	if _, err := GenerateSchema(src); err == nil {
		t.Error("expected error for default limit above max")
	}
}

func TestCandidatesQuery(t *testing.T) {
	data, errs := run(t, feeder(t), `{ candidates(limit: 2) { snapshotVersion proxyFallback candidates { rank nodeId name exact } } }`)
	if len(errs) > 0 {
		t.Fatalf("errors = %v", errs)
	}

	ranking := data["candidates"].(map[string]any)
	if ranking["proxyFallback"] != false {
		t.Errorf("proxyFallback = %v, want false", ranking["proxyFallback"])
	}
	list := ranking["candidates"].([]any)
	if len(list) != 2 {
		t.Fatalf("got %d candidates, want 2", len(list))
	}
	first := list[0].(map[string]any)
	if first["nodeId"] != "SUB-1" || first["name"] != "North" || first["rank"] != 1 {
		t.Errorf("first candidate = %v", first)
	}
}

func TestCandidatesLimitZero(t *testing.T) {
	data, errs := run(t, feeder(t), `{ candidates(limit: 0) { candidates { nodeId } } }`)
	if len(errs) > 0 {
		t.Fatalf("errors = %v", errs)
	}
	if list := data["candidates"].(map[string]any)["candidates"].([]any); len(list) != 0 {
		t.Errorf("limit 0 returned %d candidates", len(list))
	}
}

func TestScenariosQuery(t *testing.T) {
	data, errs := run(t, feeder(t), `{ scenarios { name failureThreshold recommendedPatientZero } }`)
	if len(errs) > 0 {
		t.Fatalf("errors = %v", errs)
	}
	list := data["scenarios"].([]any)
	if len(list) != len(cascade.Scenarios()) {
		t.Fatalf("got %d scenarios, want %d", len(list), len(cascade.Scenarios()))
	}
	for _, s := range list {
		if rec := s.(map[string]any)["recommendedPatientZero"]; rec != "SUB-1" {
			t.Errorf("recommendedPatientZero = %v, want SUB-1", rec)
		}
	}
}

func TestNodeQueryWithNeighbors(t *testing.T) {
	data, errs := run(t, feeder(t), `{
		node(id: "TX-1") {
			id type degree
			features { cascadeRiskScore method }
			neighbors { id }
		}
	}`)
	if len(errs) > 0 {
		t.Fatalf("errors = %v", errs)
	}

	node := data["node"].(map[string]any)
	if node["type"] != "TRANSFORMER" || node["degree"] != 2 {
		t.Errorf("node = %v", node)
	}
	feat := node["features"].(map[string]any)
	if feat["cascadeRiskScore"] != 0.7 || feat["method"] != "exact" {
		t.Errorf("features = %v", feat)
	}

	var ids []string
	for _, nb := range node["neighbors"].([]any) {
		ids = append(ids, nb.(map[string]any)["id"].(string))
	}
	if strings.Join(ids, ",") != "SUB-1,POLE-1" && strings.Join(ids, ",") != "POLE-1,SUB-1" {
		t.Errorf("neighbors = %v", ids)
	}
}

func TestNodeQueryUnknownNode(t *testing.T) {
	_, errs := run(t, feeder(t), `{ node(id: "NOPE") { id } }`)
	if len(errs) == 0 || !strings.Contains(errs[0], "not found") {
		t.Errorf("errors = %v, want not found", errs)
	}
}

func TestNodeQueryWithoutTopology(t *testing.T) {
	src := Sources{Graphs: staticGraphs{}, Snapshots: centrality.NewStore()}
	_, errs := run(t, src, `{ node(id: "SUB-1") { id } }`)
	if len(errs) == 0 || !strings.Contains(errs[0], topology.ErrNoTopology.Error()) {
		t.Errorf("errors = %v, want %q", errs, topology.ErrNoTopology)
	}
}

func TestSnapshotQuery(t *testing.T) {
	data, errs := run(t, feeder(t), `{ snapshot { version method nodes exactNodes } }`)
	if len(errs) > 0 {
		t.Fatalf("errors = %v", errs)
	}
	snap := data["snapshot"].(map[string]any)
	if snap["version"] != 1 || snap["method"] != "exact" || snap["nodes"] != 4 || snap["exactNodes"] != 4 {
		t.Errorf("snapshot = %v", snap)
	}

	empty, errs := run(t, Sources{Graphs: staticGraphs{}, Snapshots: centrality.NewStore()}, `{ snapshot { version } }`)
	if len(errs) > 0 || empty["snapshot"] != nil {
		t.Errorf("empty store snapshot = %v, errors = %v", empty["snapshot"], errs)
	}
}

func TestQueryDepth(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"flat", `{ health }`, false},
		{"at limit", `{ node(id: "SUB-1") { neighbors { neighbors { features { pagerank } } } } }`, false},
		{"beyond limit", `{ node(id: "SUB-1") { neighbors { neighbors { neighbors { features { pagerank } } } } } }`, true},
		{"fragment counted", `{ node(id: "SUB-1") { ...deep } } fragment deep on GridNode { neighbors { neighbors { neighbors { features { pagerank } } } } }`, true},
		{"introspection ignored", `{ __schema { types { name fields { name type { name } } } } }`, false},
		{"unparseable", `{ node(`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQueryDepth(tt.query, DefaultMaxDepth)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQueryDepth() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyLimit(t *testing.T) {
	cfg := &LimitConfig{DefaultLimit: 20, MaxLimit: 100, MaxDepth: 5}
	tests := []struct {
		in, want int
	}{
		{-1, 20},
		{0, 0},
		{50, 50},
		{500, 100},
	}
	for _, tt := range tests {
		if got := applyLimit(tt.in, cfg); got != tt.want {
			t.Errorf("applyLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGraphQLHTTPHandler(t *testing.T) {
	schema, err := GenerateSchema(feeder(t))
	if err != nil {
		t.Fatalf("GenerateSchema() error = %v", err)
	}
	handler := NewGraphQLHandler(schema, 0, nil)

	body, _ := json.Marshal(GraphQLRequest{
		Query:     `query One($id: ID!) { node(id: $id) { id name } }`,
		Variables: map[string]any{"id": "SUB-1"},
	})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var response GraphQLResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(response.Errors) > 0 {
		t.Fatalf("Response has errors: %v", response.Errors)
	}
	node := response.Data.(map[string]any)["node"].(map[string]any)
	if node["name"] != "North" {
		t.Errorf("node = %v", node)
	}
}

func TestGraphQLHTTPHandlerErrors(t *testing.T) {
	schema, err := GenerateSchema(feeder(t))
	if err != nil {
		t.Fatalf("GenerateSchema() error = %v", err)
	}
	handler := NewGraphQLHandler(schema, 2, nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`not json`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rr.Code)
	}

	body, _ := json.Marshal(GraphQLRequest{Query: `{ node(id: "SUB-1") { neighbors { id } } }`})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body)))

	var response GraphQLResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if rr.Code != http.StatusOK || len(response.Errors) != 1 || !strings.Contains(response.Errors[0].Message, "depth") {
		t.Errorf("status = %d, errors = %v, want depth error", rr.Code, response.Errors)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/gridcascade/pkg/api"
	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/ranking"
	"github.com/dd0wney/gridcascade/pkg/validation"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/patient-zero-candidates", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(ranking.Ranking{
			SnapshotVersion: 3,
			Candidates:      []ranking.Candidate{{Rank: 1, NodeID: "SUB-1"}},
		})
	}))
	defer srv.Close()

	c := newClient(srv.URL, "secret", time.Second)
	got, err := c.candidates(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.SnapshotVersion)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "SUB-1", got.Candidates[0].NodeID)
}

func TestClientSimulatePostsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req validation.SimulateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "TX-9", req.PatientZeroID)
		assert.Equal(t, cascade.ScenarioBaseline, req.ScenarioName)
		_ = json.NewEncoder(w).Encode(cascade.Result{PatientZero: req.PatientZeroID, TotalAffectedNodes: 4})
	}))
	defer srv.Close()

	c := newClient(srv.URL, "", time.Second)
	res, err := c.simulate(context.Background(), validation.SimulateRequest{
		PatientZeroID: "TX-9",
		ScenarioName:  cascade.ScenarioBaseline,
	})
	require.NoError(t, err)
	assert.Equal(t, "TX-9", res.PatientZero)
	assert.Equal(t, 4, res.TotalAffectedNodes)
}

func TestClientDecodesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Not Found", Message: "patient zero not found", Code: 404})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "", time.Second).realtimeRisk(context.Background())
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, err.Error(), "patient zero not found")
}

func TestClientFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newClient(srv.URL, "", time.Second).recompute(context.Background())
	require.Error(t, err)
	assert.Equal(t, "502 Bad Gateway", err.Error())
}

func TestNewClientAddsScheme(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", newClient("localhost:8080/", "", time.Second).base)
	assert.Equal(t, "https://grid.example", newClient("https://grid.example", "", time.Second).base)
}

func TestRowsFromResponses(t *testing.T) {
	rows := cascadeRows(&cascade.Result{CascadeOrder: []cascade.FailedNode{
		{NodeID: "SUB-1", SequenceOrder: 1},
		{NodeID: "TX-1", SequenceOrder: 2, WaveDepth: 1, CausedBy: "SUB-1", FailureProbability: 0.5},
	}})
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2", "1", "TX-1", "", "0.50", "SUB-1"}, []string(rows[1]))

	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
	assert.Equal(t, "abc", shortID("abc"))
}

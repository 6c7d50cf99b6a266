package api

import (
	"net/http"

	"github.com/dd0wney/gridcascade/pkg/centrality"
	"github.com/dd0wney/gridcascade/pkg/topology"
	"github.com/dd0wney/gridcascade/pkg/validation"
)

// handleRealtimeRisk serves GET /api/v1/realtime-risk.
func (s *Server) handleRealtimeRisk(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.assessor.Assess(r.Context(), s.snapshots.Current(), s.now()))
}

// handleCentralityStatus serves GET /api/v1/centrality/status.
func (s *Server) handleCentralityStatus(w http.ResponseWriter, _ *http.Request) {
	resp := CentralityStatusResponse{Snapshot: s.snapshotInfo(s.snapshots.Current())}
	if s.batch != nil {
		st := s.batch.Status()
		resp.Scheduler = &st
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleRecompute serves POST /api/v1/centrality/recompute. The batch runs
// asynchronously; the response carries the version current at trigger time.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if s.batch == nil {
		s.writeDomainError(w, r, errBatchUnavailable)
		return
	}
	s.batch.Trigger()

	resp := RecomputeResponse{Status: "accepted"}
	if snap := s.snapshots.Current(); snap != nil {
		resp.SnapshotVersion = snap.Version
	}
	s.respondJSON(w, http.StatusAccepted, resp)
}

// handleNode serves GET /api/v1/nodes/{id...}. Node IDs may contain slashes.
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ValidateNodeID(id); err != nil {
		s.writeDomainError(w, r, badRequest("%v", err))
		return
	}

	g := s.graphs.Current()
	if g == nil {
		s.writeDomainError(w, r, topology.ErrNoTopology)
		return
	}
	idx, ok := g.Index(id)
	if !ok {
		s.writeDomainError(w, r, errNodeNotFound)
		return
	}

	resp := NodeResponse{
		Node:            g.Node(idx),
		Degree:          g.Degree(idx),
		TopologyVersion: g.Version(),
	}
	snap := s.snapshots.Current()
	if f, ok := snap.Get(id); ok {
		resp.Features = &f
		resp.SnapshotVersion = snap.Version
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) snapshotInfo(snap *centrality.Snapshot) *SnapshotInfo {
	if snap == nil {
		return nil
	}
	now := s.now()
	return &SnapshotInfo{
		Version:         snap.Version,
		TopologyVersion: snap.TopologyVersion,
		ComputedAt:      snap.ComputedAt,
		AgeSeconds:      snap.Age(now).Seconds(),
		Stale:           s.ranker.IsStale(snap, now),
		Method:          snap.Method,
		Nodes:           snap.Len(),
		ExactNodes:      snap.ExactCount(),
		ComponentSize:   snap.ComponentSize,
		SampledSources:  snap.SampledSources,
		DurationMS:      float64(snap.Duration.Microseconds()) / 1000,
	}
}

package api

import (
	"context"
	"net/http"

	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/decision"
	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/validation"
)

// handleCandidates serves GET /api/v1/patient-zero-candidates.
func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	onlyExact, err := queryBool(r, "only_exact")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	q := validation.CandidatesQuery{Limit: limit, OnlyExact: onlyExact}
	if err := validation.ValidateCandidatesQuery(&q); err != nil {
		s.writeDomainError(w, r, badRequest("%v", err))
		return
	}

	ranked, err := s.ranker.RankPatientZeroCandidates(s.graphs.Current(), s.snapshots.Current(), q.Limit, q.OnlyExact)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ranked)
}

// handleSimulate serves POST /api/v1/simulate.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req validation.SimulateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := validation.ValidateSimulateRequest(&req); err != nil {
		s.writeDomainError(w, r, badRequest("%v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	// Graph and snapshot are read once; a concurrent refresh does not affect
	// this run.
	result, err := s.simulator.Simulate(ctx, s.graphs.Current(), s.snapshots.Current(), req.CascadeRequest())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("simulation completed",
		logging.SimulationID(result.SimulationID),
		logging.NodeID(result.PatientZero),
		logging.String("scenario", result.Scenario.Name),
		logging.Int("affected_nodes", result.TotalAffectedNodes),
		logging.Bool("truncated", result.Truncated),
	)
	s.respondJSON(w, http.StatusOK, result)
}

// handleScenarios serves GET /api/v1/scenarios.
func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshots.Current()
	resp := ScenariosResponse{Scenarios: s.ranker.ListScenarios(snap)}
	if snap == nil {
		resp.Warnings = append(resp.Warnings, "no centrality snapshot available; recommended patient zero is empty")
	} else {
		resp.SnapshotVersion = snap.Version
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleEconomicImpact serves POST /api/v1/economic-impact.
func (s *Server) handleEconomicImpact(w http.ResponseWriter, r *http.Request) {
	s.serveDecision(w, r, func(res *cascade.Result) (any, error) {
		return decision.EstimateEconomicImpact(res)
	})
}

// handleMitigationActions serves POST /api/v1/mitigation-actions.
func (s *Server) handleMitigationActions(w http.ResponseWriter, r *http.Request) {
	s.serveDecision(w, r, func(res *cascade.Result) (any, error) {
		return decision.GeneratePlaybook(res)
	})
}

// handleRestorationSequence serves POST /api/v1/restoration-sequence.
func (s *Server) handleRestorationSequence(w http.ResponseWriter, r *http.Request) {
	s.serveDecision(w, r, func(res *cascade.Result) (any, error) {
		return decision.SequenceRestoration(res)
	})
}

// serveDecision decodes a posted simulation result and answers with fn's
// output.
func (s *Server) serveDecision(w http.ResponseWriter, r *http.Request, fn func(*cascade.Result) (any, error)) {
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out, err := fn(req.result())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

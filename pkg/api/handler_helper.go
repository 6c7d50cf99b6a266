package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dd0wney/gridcascade/pkg/api/middleware"
	"github.com/dd0wney/gridcascade/pkg/cascade"
	"github.com/dd0wney/gridcascade/pkg/decision"
	"github.com/dd0wney/gridcascade/pkg/logging"
	"github.com/dd0wney/gridcascade/pkg/topology"
)

var (
	// errBadRequest marks request decoding and validation failures.
	errBadRequest = errors.New("bad request")
	// errNodeNotFound is returned by the node lookup endpoint.
	errNodeNotFound = errors.New("node not found")
	// errBatchUnavailable is returned when no scheduler is attached.
	errBatchUnavailable = errors.New("centrality scheduler not running")
	errBodyTooLarge     = errors.New("request body too large")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encoding JSON response failed", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// writeDomainError maps package sentinel errors to HTTP status codes. Only
// 5xx errors are logged; their detail stays out of the response body.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, cascade.ErrInvalidParameters),
		errors.Is(err, cascade.ErrUnknownScenario),
		errors.Is(err, decision.ErrEmptyResult),
		errors.Is(err, decision.ErrInvalidResult):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, errBodyTooLarge):
		status, message = http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, cascade.ErrPatientZeroNotFound),
		errors.Is(err, errNodeNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, topology.ErrNoTopology),
		errors.Is(err, errBatchUnavailable):
		status, message = http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		status, message = http.StatusServiceUnavailable, "request cancelled"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			logging.Error(err),
			logging.String("request_id", middleware.GetRequestID(r.Context())),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
		)
	}
	s.respondError(w, status, message)
}

// decodeJSON decodes one JSON document from the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		default:
			return badRequest("invalid request body: %v", err)
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON document")
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return v, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("%s must be a boolean", name)
	}
	return v, nil
}

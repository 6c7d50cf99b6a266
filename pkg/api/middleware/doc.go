// Package middleware provides the HTTP middleware used by the API server.
//
// Every middleware has the shape func(http.Handler) http.Handler. The server
// chains them outermost first:
//
//	handler := middleware.Chain(mux,
//		middleware.PanicRecovery(logger),
//		middleware.RequestID(),
//		middleware.Logging(logger),
//		middleware.CORS(corsConfig),
//		middleware.SecurityHeaders(),
//		middleware.BodySizeLimit(maxBytes),
//		middleware.Metrics(registry),
//	)
//
// Metrics must be innermost so that it sees the route pattern the ServeMux
// stores on the request.
package middleware

import (
	"encoding/json"
	"net/http"
)

// Chain wraps h with mws so that mws[0] is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// errorBody mirrors the API error response shape.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: http.StatusText(status), Message: message, Code: status})
}

// statusWriter records the status code and bytes written.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

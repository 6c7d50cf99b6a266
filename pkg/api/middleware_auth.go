package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dd0wney/gridcascade/pkg/auth"
	"github.com/dd0wney/gridcascade/pkg/logging"
)

const bearerPrefix = "Bearer "

// requireRole validates the bearer token and requires at least role. It is
// a pass-through when no token manager is configured.
func (s *Server) requireRole(role string, next http.Handler) http.Handler {
	if s.tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) || len(header) == len(bearerPrefix) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gridcascade"`)
			s.respondError(w, http.StatusUnauthorized, "Missing authentication (Bearer token required)")
			return
		}

		claims, err := s.tokens.ValidateToken(r.Context(), header[len(bearerPrefix):])
		if err != nil {
			s.logger.Debug("token validation failed", logging.Error(err), logging.String("path", r.URL.Path))
			msg := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "Token has expired"
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="gridcascade", error="invalid_token"`)
			s.respondError(w, http.StatusUnauthorized, msg)
			return
		}

		if !claims.Allows(role) {
			s.logger.Warn("insufficient role",
				logging.String("subject", claims.Subject),
				logging.String("role", claims.Role),
				logging.String("required", role),
				logging.String("path", r.URL.Path),
			)
			s.respondError(w, http.StatusForbidden, role+" role required")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

package server

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// adminToken reads the token from "Authorization: Bearer <token>" or X-Admin-Token.
func adminToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-Admin-Token"))
}

// requireAdmin checks the request token against the configured bcrypt hash.
// With no hash configured every request is allowed. On failure a 401 is
// written and false returned.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	hash := s.app.Config.Server.AdminTokenHash
	if hash == "" {
		return true
	}

	token := adminToken(r)
	if token == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		WriteError(w, http.StatusUnauthorized, "admin token required")
		return false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		s.logger.Warn().Str("path", r.URL.Path).Msg("Rejected admin request: invalid token")
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		WriteError(w, http.StatusUnauthorized, "invalid admin token")
		return false
	}
	return true
}

package api

import (
	"net/http"
	"strings"
)

const headerUserID = "X-User-Id"

// authMiddleware extracts the user ID from the X-User-Id header
// and adds it to the request context. Blank IDs are rejected.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(headerUserID))
		if userID == "" {
			http.Error(w, "missing X-User-Id header", http.StatusUnauthorized)

			return
		}

		ctx := withUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mcoot/linkguard/internal/api/apierr"
)

// BearerToken rejects requests that do not present token. An empty
// configured token rejects everything.
func BearerToken(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := extractToken(r)
			if len(want) == 0 || got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the bearer token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Package middleware holds HTTP middleware shared by the API surfaces.
package middleware

import (
	"net/http"
	"strings"
)

// APIKeyAuth validates the configured API key. An empty key disables the
// check so a fresh install works out of the box.
func APIKeyAuth(expectedKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Authorization: Bearer <key>
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				if strings.TrimPrefix(auth, "Bearer ") == expectedKey {
					next.ServeHTTP(w, r)
					return
				}
			}

			// x-api-key header (alternative)
			if r.Header.Get("x-api-key") == expectedKey {
				next.ServeHTTP(w, r)
				return
			}

			// x-goog-api-key header (GenAI SDK)
			if r.Header.Get("x-goog-api-key") == expectedKey {
				next.ServeHTTP(w, r)
				return
			}

			// 'key' query parameter (std Google API style)
			if r.URL.Query().Get("key") == expectedKey && r.URL.Query().Get("key") != "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"message": "Invalid API key", "type": "authentication_error"}}`))
		})
	}
}

package middleware

import (
	"net/http"
	"slices"
	"strings"
)

var corsAllowHeaders = strings.Join([]string{"Content-Type", "Authorization", APIKeyHeader, "X-Request-ID"}, ", ")

// CORS allows browser clients from the listed origins. "*" allows any origin.
// An empty list disables CORS headers entirely.
func CORS(allowOrigins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(allowOrigins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowOrigins) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if !wildcard && !slices.Contains(allowOrigins, origin) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

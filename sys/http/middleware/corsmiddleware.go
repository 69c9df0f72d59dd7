package middleware

import (
	"net/http"
	"strings"
)

// CORSMiddleware restricts origins to frontendURL in production. Other environments echo
// the requesting origin for local development.
func CORSMiddleware(production bool, frontendURL string) func(http.Handler) http.Handler {
	allowedOrigin := frontendURL
	if allowedOrigin == "" {
		allowedOrigin = "https://dispatch.cleanbuddy.app"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if production {
				// Allow exact match or subdomain match
				isAllowed := origin == allowedOrigin
				if !isAllowed && strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, "."+strings.TrimPrefix(allowedOrigin, "https://")) {
					isAllowed = true
				}

				if isAllowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Add("Vary", "Origin")
				}
			} else {
				if origin != "" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				} else {
					w.Header().Set("Access-Control-Allow-Origin", "http://localhost:3000")
				}
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Preflight requests stop here
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Sec-WebSocket-Protocol, Sec-WebSocket-Extensions, Sec-WebSocket-Version, Sec-WebSocket-Key")
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

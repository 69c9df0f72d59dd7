package middleware

import (
	"net/http"
	"strings"
)

// The API only serves JSON and the live websocket, so everything except
// same-origin and websocket connections is locked down.
var contentSecurityPolicy = strings.Join([]string{
	"default-src 'none'",
	"connect-src 'self' ws: wss:",
	"object-src 'none'",
	"frame-src 'none'",
	"frame-ancestors 'none'",
	"form-action 'none'",
	"base-uri 'none'",
	"upgrade-insecure-requests",
	"block-all-mixed-content",
}, "; ")

var securityHeaders = map[string]string{
	"Content-Security-Policy": contentSecurityPolicy,
	"Cache-Control":           "no-store",
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Permissions-Policy":      "geolocation=(), microphone=(), camera=()",
}

// CSPMiddleware sets the Content Security Policy and the other security headers on every response
func CSPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for name, value := range securityHeaders {
				w.Header().Set(name, value)
			}

			// HSTS only makes sense over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Package api implements the Inkwell REST API using chi.
package api

import (
	"net"
	"net/http"

	"github.com/starford/inkwell/internal/auth"
)

// Authenticator resolves an Authorization header to a caller identity.
type Authenticator interface {
	FromHeader(value string) (auth.Identity, error)
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(key string) bool
}

// RequireIdentity rejects requests without a valid bearer credential and
// stores the caller identity in the request context.
func RequireIdentity(gate Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := gate.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="inkwell"`)
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RateLimit refuses requests once the client address has used up its bucket.
// Put it after middleware.RealIP so proxied clients are told apart.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientKey(r)) {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, errorBody("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

package server

import (
	"errors"
	"net/http"

	"github.com/viant/mcpb/internal/credential"
)

// Middleware is a function that takes an http.Handler and returns an http.Handler
type Middleware func(next http.Handler) http.Handler

// originValidationMiddleware rejects browser requests from origins that are not allowed.
// Requests without an Origin header pass.
func originValidationMiddleware(cors *Cors) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && !cors.AllowsOrigin(origin) {
				http.Error(w, "origin not allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerMiddleware checks the Authorization header; an empty token leaves the routes open
func bearerMiddleware(token string) Middleware {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := credential.Verify(r.Header.Get("Authorization"), token)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, credential.ErrInvalid):
				http.Error(w, err.Error(), http.StatusForbidden)
			default:
				w.Header().Set("WWW-Authenticate", `Bearer realm="mcpr"`)
				http.Error(w, err.Error(), http.StatusUnauthorized)
			}
		})
	}
}

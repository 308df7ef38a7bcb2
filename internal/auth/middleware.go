package auth

import (
	"errors"
	"net/http"
	"strings"
)

// RequireAuth enforces authentication on protected routes.
//
// The session JWT is read from the "token" HttpOnly cookie or, for API
// clients, from an "Authorization: Bearer" header. On success the caller's
// Identity is stored in the request context; otherwise 401 is returned and
// the chain stops.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthenticated","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		})
	}
}

// OptionalAuth attaches the identity when a valid token is present but lets
// anonymous requests through. Services decide what anonymous callers may do.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := extractIdentity(r, tokens); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), *id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errNoToken = errors.New("auth: no token")

func extractIdentity(r *http.Request, tokens *TokenService) (*Identity, error) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return tokens.Validate(strings.TrimPrefix(header, "Bearer "))
	}

	cookie, err := r.Cookie("token")
	if err != nil || cookie.Value == "" {
		return nil, errNoToken
	}
	return tokens.Validate(cookie.Value)
}

package auth

import "context"

// Identity is the verified caller attached to a request. It is the
// request-scoped answer to "who is calling?"; services read it from the
// context instead of a process-wide session.
type Identity struct {
	UserID          string `json:"userId"`
	TokenIdentifier string `json:"tokenIdentifier"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	PictureURL      string `json:"pictureUrl"`
}

// contextKey is unexported so only this package can read or write the
// identity stored in a context.
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id. Middleware uses it for real
// requests; tests use it to fabricate callers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller, or (nil, false) for anonymous
// requests.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.UserID == "" {
		return nil, false
	}
	return &id, true
}

// UserIDFromContext is a shorthand for handlers that only need the ID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	return id.UserID, true
}

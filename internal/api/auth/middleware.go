package auth

import "context"

// Context key for the caller identity
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches an Identity to a context
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the Identity from a context
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// MustFromContext extracts the Identity from a context, panics if not found
func MustFromContext(ctx context.Context) *Identity {
	id, ok := FromContext(ctx)
	if !ok {
		panic("identity not found in context")
	}
	return id
}

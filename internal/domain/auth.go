package domain

import "context"

type callerKey struct{}

// Caller is the identity and role of whoever issued a request. It is opaque
// to the user service, which only records it on audit events.
type Caller struct {
	ID   string
	Role Role
}

// WithCaller attaches the caller to ctx.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext retrieves the caller, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok
}

package auth

import "context"

// Context is the per-request resolved identity. It lives only for the
// request's lifetime; the gateway never persists it.
type Context struct {
	UserID          string
	Email           string
	IsAdmin         bool
	IsModerator     bool
	EmailVerified   bool
	IsAuthenticated bool
}

// Anonymous is the context attached when no valid token was presented.
func Anonymous() Context {
	return Context{}
}

type ctxKey struct{}

// WithContext attaches the auth context to a request context.
func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext returns the request's auth context, or the anonymous
// context when none was attached.
func FromContext(ctx context.Context) Context {
	if ac, ok := ctx.Value(ctxKey{}).(Context); ok {
		return ac
	}
	return Anonymous()
}

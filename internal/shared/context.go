package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the request session. The session middleware
// installs it before any handler runs.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the request session, or nil outside the
// middleware stack (background jobs, tests that skip the session layer).
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

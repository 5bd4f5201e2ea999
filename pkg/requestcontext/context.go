// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets values, services read them. Keeping this package free of
// net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithSubject(ctx, "conn-42", "a@b.com")
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	requestIDKey    struct{}
	requestTimeKey  struct{}
	sessionKeyKey   struct{}
	connectionIDKey struct{}
	subjectEmailKey struct{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// SessionKey retrieves the caller's session key from the context.
func SessionKey(ctx context.Context) string {
	if key, ok := ctx.Value(sessionKeyKey{}).(string); ok {
		return key
	}
	return ""
}

// WithSessionKey injects a session key into the context.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyKey{}, key)
}

// ConnectionID retrieves the authenticated subject's connection id.
// Returns "" when no subject is authenticated.
func ConnectionID(ctx context.Context) string {
	if id, ok := ctx.Value(connectionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SubjectEmail retrieves the authenticated subject's email.
func SubjectEmail(ctx context.Context) string {
	if email, ok := ctx.Value(subjectEmailKey{}).(string); ok {
		return email
	}
	return ""
}

// WithSubject injects the authenticated subject into the context.
func WithSubject(ctx context.Context, connectionID, email string) context.Context {
	ctx = context.WithValue(ctx, connectionIDKey{}, connectionID)
	return context.WithValue(ctx, subjectEmailKey{}, email)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts like workers and tests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

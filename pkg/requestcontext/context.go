// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Context keys and getter/setter functions live here for values set by
// middleware but consumed by services. The package stays free of net/http
// so services can import it without pulling in transport code.
//
// Usage in services (read values):
//
//	userID := requestcontext.UserID(ctx)
//	scopes := requestcontext.Scopes(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithUserID(ctx, userID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "registrar/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	officeIDKey    struct{}
	scopesKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyOfficeID    = officeIDKey{}
	ContextKeyScopes      = scopesKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns the zero value (nil UUID) if not set.
func UserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(ContextKeyUserID).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// OfficeID retrieves the caller's registration office from the context.
func OfficeID(ctx context.Context) id.OfficeID {
	if officeID, ok := ctx.Value(ContextKeyOfficeID).(id.OfficeID); ok {
		return officeID
	}
	return id.OfficeID{}
}

// WithOfficeID injects a registration office ID into the context.
func WithOfficeID(ctx context.Context, officeID id.OfficeID) context.Context {
	return context.WithValue(ctx, ContextKeyOfficeID, officeID)
}

// Scopes retrieves the caller's granted scopes from the context.
// Returns an empty set if not set.
func Scopes(ctx context.Context) id.ScopeSet {
	if scopes, ok := ctx.Value(ContextKeyScopes).(id.ScopeSet); ok {
		return scopes
	}
	return id.ScopeSet{}
}

// WithScopes injects the caller's scope set into the context.
func WithScopes(ctx context.Context, scopes id.ScopeSet) context.Context {
	return context.WithValue(ctx, ContextKeyScopes, scopes)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service
// unit tests that don't run the full HTTP middleware chain, and for
// workers that need consistent time within one batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

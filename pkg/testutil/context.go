package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "registrar/pkg/domain"
	"registrar/pkg/requestcontext"
)

// Caller bundles the identity an authenticated request carries.
type Caller struct {
	UserID   id.UserID
	OfficeID id.OfficeID
	Scopes   []id.Scope
}

// NewCaller creates a caller with fresh ids and the given scopes.
func NewCaller(scopes ...id.Scope) Caller {
	return Caller{
		UserID:   id.UserID(uuid.New()),
		OfficeID: id.OfficeID(uuid.New()),
		Scopes:   scopes,
	}
}

// AuthContext returns a context carrying the caller's identity, the way
// the auth middleware would populate it.
func AuthContext(caller Caller) context.Context {
	ctx := context.Background()
	ctx = requestcontext.WithUserID(ctx, caller.UserID)
	ctx = requestcontext.WithOfficeID(ctx, caller.OfficeID)
	ctx = requestcontext.WithScopes(ctx, id.NewScopeSet(caller.Scopes...))
	return ctx
}

// AuthContextAt is AuthContext with a pinned clock.
func AuthContextAt(caller Caller, now time.Time) context.Context {
	return requestcontext.WithTime(AuthContext(caller), now)
}

// Package actor carries the identity behind a request through its context.
// Ledger entries record the acting user as dispensed_by.
package actor

import "context"

// systemID marks work the service does on its own behalf, such as consuming
// catalog events.
const systemID = "00000000-0000-0000-0000-000000000000"

// Actor is the authenticated user, as forwarded by the gateway.
type Actor struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	RoleName string `json:"role_name,omitempty"`
}

// SystemActor returns the actor used when no user is involved.
func SystemActor() *Actor {
	return &Actor{ID: systemID, Email: "system@medflow.local"}
}

// IsSystem reports whether a is the system actor. A nil actor counts as system.
func (a *Actor) IsSystem() bool {
	return a == nil || a.ID == systemID
}

func (a *Actor) String() string {
	switch {
	case a.IsSystem():
		return "system"
	case a.Email == "":
		return a.ID
	default:
		return a.ID + " (" + a.Email + ")"
	}
}

type ctxKey struct{}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor in ctx, or nil.
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(ctxKey{}).(*Actor)
	return a
}

// UserID returns the acting user's ID, or "" when the system is acting.
func UserID(ctx context.Context) string {
	if a := FromContext(ctx); !a.IsSystem() {
		return a.ID
	}
	return ""
}

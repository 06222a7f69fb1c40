// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// SystemActor attributes movements made by scheduled jobs rather than a user.
const SystemActor = "system"

// ActorContext identifies who performs a warehouse operation.
// Movements record the actor for traceability.
type ActorContext struct {
	ActorID   string
	Email     string
	Roles     []string
	SessionID string
}

type actorContextKey struct{}

// WithActor adds ActorContext to context.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns ActorContext from context.
func GetActor(ctx context.Context) *ActorContext {
	if v, ok := ctx.Value(actorContextKey{}).(*ActorContext); ok {
		return v
	}
	return nil
}

// GetActorID returns the acting principal from context, or SystemActor when
// the operation runs outside a request (sweeps, reconciliation).
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil && a.ActorID != "" {
		return a.ActorID
	}
	return SystemActor
}

// HasRole checks if the actor has a specific role.
func HasRole(ctx context.Context, role string) bool {
	a := GetActor(ctx)
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Package auth carries the identity of the currently authenticated actor
// through the request context. Authentication itself is performed upstream
// (the hosting application's session layer); this service trusts the
// identity headers set by that collaborator.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Trusted headers set by the upstream authentication layer.
const (
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"
)

// RoleModerator grants access to the moderator surfaces.
const RoleModerator = "moderator"

type contextKey string

const (
	contextKeyActorID   contextKey = "actorID"
	contextKeyActorRole contextKey = "actorRole"
)

// Middleware extracts the actor identity headers and adds them to the
// request context. Requests without an identity continue unauthenticated;
// handlers that require an actor reject them.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := strings.TrimSpace(r.Header.Get(ActorIDHeader))
		if actorID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyActorID, actorID)
		if role := strings.TrimSpace(r.Header.Get(ActorRoleHeader)); role != "" {
			ctx = context.WithValue(ctx, contextKeyActorRole, role)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorID retrieves the authenticated actor's ID from the request context.
func ActorID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(contextKeyActorID).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("no authenticated actor")
	}
	return id, nil
}

// IsModerator reports whether the context's actor carries the moderator role.
func IsModerator(ctx context.Context) bool {
	role, ok := ctx.Value(contextKeyActorRole).(string)
	return ok && role == RoleModerator
}

// WithActor returns a context carrying the given actor identity. Intended
// for tests and internal calls.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	ctx = context.WithValue(ctx, contextKeyActorID, actorID)
	if role != "" {
		ctx = context.WithValue(ctx, contextKeyActorRole, role)
	}
	return ctx
}

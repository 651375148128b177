package middleware

import (
	"context"
	"net/http"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/observability"
	"github.com/fleetconsole/console/internal/utils"
)

// ActorResolver reads the caller's identity from a request, typically from a
// bearer token.
type ActorResolver interface {
	ActorFromRequest(r *http.Request) (*access.Actor, error)
}

// ActorLookup reloads the caller's current role and client.
type ActorLookup interface {
	FindActor(ctx context.Context, userID string) (*access.Actor, error)
}

// ActorMiddleware stores the resolved actor in the request context. When a
// lookup is given the stored role and client come from it, so a token
// outlives neither a role change nor a removed user.
func ActorMiddleware(resolver ActorResolver, lookup ActorLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := resolver.ActorFromRequest(r)
			if err != nil || actor == nil {
				http.Error(w, "Unauthorized: missing or invalid token", http.StatusUnauthorized)
				return
			}

			if lookup != nil {
				current, err := lookup.FindActor(r.Context(), actor.UserID)
				if err != nil {
					http.Error(w, "Unauthorized: user not found", http.StatusUnauthorized)
					return
				}
				actor = current
			}

			ctx := utils.WithActor(r.Context(), *actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles gates a screen's endpoints on its allow-list. Missing identity
// is 401, a role outside the list is 403.
func RequireRoles(routes *access.Routes, screen string, metrics *observability.Collector) func(http.Handler) http.Handler {
	allowed := routes.Allowed(screen)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var actor *access.Actor
			if a, ok := utils.GetActorFromContext(r.Context()); ok {
				actor = &a
			}

			state := access.Decide(allowed, actor)
			metrics.GuardDecision(screen, state.String())

			switch state {
			case access.StateAuthorized:
				next.ServeHTTP(w, r)
			case access.StateForbidden:
				http.Error(w, "Forbidden: role not allowed for "+screen, http.StatusForbidden)
			default:
				http.Error(w, "Unauthorized: missing user in context", http.StatusUnauthorized)
			}
		})
	}
}

// CORSMiddleware echoes the origin back only if it is on the allow-list.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin") // important for caches
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, Authorization")
			}

			w.Header().Set("Access-Control-Expose-Headers", "X-Data-Status, Retry-After")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

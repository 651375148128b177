package utils

import (
	"context"

	"github.com/fleetconsole/console/internal/access"
)

type contextKey string

const ContextActorKey contextKey = "actor"

func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, ContextActorKey, actor)
}

func GetActorFromContext(ctx context.Context) (access.Actor, bool) {
	actor, ok := ctx.Value(ContextActorKey).(access.Actor)
	return actor, ok
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	actor, ok := GetActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return "", false
	}
	return actor.UserID, true
}

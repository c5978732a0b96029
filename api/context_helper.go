package api

import (
	"context"
	"time"

	"github.com/linesmerrill/advisory-chat-api/models"
)

// QueryTimeout is the default timeout for database queries
const QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a copy of ctx carrying the authenticated actor
func WithActor(ctx context.Context, actor models.ActorIdentity) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor stored by Middleware
func ActorFromContext(ctx context.Context) (models.ActorIdentity, bool) {
	actor, ok := ctx.Value(actorKey).(models.ActorIdentity)
	return actor, ok
}

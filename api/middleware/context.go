package middleware

import "context"

type contextKey string

const (
	ctxActorID   contextKey = "actor_id"
	ctxActorName contextKey = "actor_name"
	ctxClientIP  contextKey = "client_ip"
)

func ActorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxActorID)
}

func ActorNameFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxActorName)
}

// ClientIPFromContext returns the caller address recorded by the Actor middleware.
func ClientIPFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxClientIP)
}

// WithActor injects the caller identity into the context.
func WithActor(ctx context.Context, id, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, id)
	return context.WithValue(ctx, ctxActorName, name)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

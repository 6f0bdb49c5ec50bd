package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/angelmondragon/commission-engine/pkg/logger"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorNameHeader = "X-Actor-Name"
)

// Actor copies the optional caller identity headers into the request context.
// The values are opaque labels for the audit trail; nothing here verifies them.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(actorIDHeader))
			name := strings.TrimSpace(r.Header.Get(actorNameHeader))

			ctx := WithActor(r.Context(), id, name)
			ctx = context.WithValue(ctx, ctxClientIP, clientIP(r))
			if logg != nil && id != "" {
				ctx = logg.WithActorID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

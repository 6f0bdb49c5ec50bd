package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/commission-engine/api/middleware"
	"github.com/angelmondragon/commission-engine/internal/audit"
)

// actorFields lets a body name the acting user; headers fill in what it omits.
type actorFields struct {
	UserID   string `json:"user_id,omitempty" validate:"omitempty,max=128"`
	UserName string `json:"user_name,omitempty" validate:"omitempty,max=256"`
}

func (a actorFields) resolve(r *http.Request) audit.Actor {
	ctx := r.Context()
	actor := audit.Actor{
		ID:        strings.TrimSpace(a.UserID),
		Name:      strings.TrimSpace(a.UserName),
		IPAddress: middleware.ClientIPFromContext(ctx),
	}
	if actor.ID == "" {
		actor.ID = middleware.ActorIDFromContext(ctx)
		if actor.Name == "" {
			actor.Name = middleware.ActorNameFromContext(ctx)
		}
	}
	return actor
}

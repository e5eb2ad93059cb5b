package utils

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
)

type contextKey string

const (
	ContextUserIDKey contextKey = "userID"
	ContextRoleKey   contextKey = "role"
)

// SessionData is what a session lookup yields for the middleware.
type SessionData struct {
	UserID    string
	Role      models.Role
	ExpiresAt time.Time
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID := ctx.Value(ContextUserIDKey)
	userIDStr, ok := userID.(string)
	return userIDStr, ok && userIDStr != ""
}

func GetRoleFromContext(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(ContextRoleKey).(models.Role)
	return role, ok
}

func WithSession(ctx context.Context, s SessionData) context.Context {
	ctx = context.WithValue(ctx, ContextUserIDKey, s.UserID)
	return context.WithValue(ctx, ContextRoleKey, s.Role)
}

// ActorFromContext returns the caller resolved by the session middleware; zero Actor if none.
func ActorFromContext(ctx context.Context) models.Actor {
	id, ok := GetUserIDFromContext(ctx)
	if !ok {
		return models.Actor{}
	}
	role, _ := GetRoleFromContext(ctx)
	return models.Actor{UserID: id, Role: role}
}

func GenerateUUID() string {
	return uuid.NewString()
}

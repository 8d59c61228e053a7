package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
)

type actorKey int

const (
	actorUserIDKey actorKey = iota
	actorRoleKey
)

func stringValue(ctx context.Context, key actorKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withValue(ctx context.Context, key actorKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// UserIDFromContext returns the raw user id set by Auth, or "".
func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, actorUserIDKey) }

// RoleFromContext returns the raw role set by Auth, or "".
func RoleFromContext(ctx context.Context) string { return stringValue(ctx, actorRoleKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, actorUserIDKey, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withValue(ctx, actorRoleKey, role)
}

// ActorFromContext returns the authenticated caller. ok is false when the
// context carries no valid identity.
func ActorFromContext(ctx context.Context) (uuid.UUID, enums.UserRole, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, "", false
	}
	role := enums.UserRole(RoleFromContext(ctx))
	if !role.IsValid() {
		return uuid.Nil, "", false
	}
	return userID, role, true
}

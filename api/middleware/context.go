package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/tixmarket-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

// Identity is the authenticated caller attached by Auth.
type Identity struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	userID, ok := ctx.Value(ctxUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return Identity{}, false
	}
	role, _ := ctx.Value(ctxRole).(enums.UserRole)
	return Identity{UserID: userID, Role: role}, true
}

func UserIDFromContext(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok {
		return id.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	if ctx == nil {
		return ""
	}
	role, _ := ctx.Value(ctxRole).(enums.UserRole)
	return role
}

// WithIdentity injects the caller into ctx. Tests use it to skip token minting.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, id.UserID)
	return context.WithValue(ctx, ctxRole, id.Role)
}

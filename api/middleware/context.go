package middleware

import (
	"context"

	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
	ctxToken  contextKey = "access_token"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxToken).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext returns the authenticated caller in the shape the order-service expects.
func ActorFromContext(ctx context.Context) (orderservice.Actor, bool) {
	userID := UserIDFromContext(ctx)
	role := enums.Role(RoleFromContext(ctx))
	if userID == "" || !role.IsValid() {
		return orderservice.Actor{}, false
	}
	return orderservice.Actor{UserID: userID, Role: role, Token: TokenFromContext(ctx)}, true
}

// WithActor injects an authenticated caller into the context.
func WithActor(ctx context.Context, actor orderservice.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID)
	ctx = context.WithValue(ctx, ctxRole, string(actor.Role))
	return context.WithValue(ctx, ctxToken, actor.Token)
}

// AuthenticatedActor is ActorFromContext returning an UNAUTHORIZED error when absent.
func AuthenticatedActor(ctx context.Context) (orderservice.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return orderservice.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/dataspace-control-plane/backend/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// PrincipalKey is the context key for the authenticated principal
	PrincipalKey contextKey = "principal"
)

// GetRequestIDFromContext retrieves the request ID set by the router's
// RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// GetPrincipalFromContext retrieves the authenticated principal from context
func GetPrincipalFromContext(ctx context.Context) *models.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if principal, ok := val.(*models.Principal); ok {
			return principal
		}
	}
	return nil
}

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

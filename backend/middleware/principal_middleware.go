package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/utils"
	"go.uber.org/zap"
)

// Identity headers set by the upstream authentication layer. Token issuance
// and verification happen there; this service trusts the forwarded identity.
const (
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"
	headerUserEmail = "X-User-Email"
)

// PrincipalMiddleware resolves the authenticated principal from trusted
// identity headers
type PrincipalMiddleware struct {
	logger *zap.Logger
}

// NewPrincipalMiddleware creates a new PrincipalMiddleware
func NewPrincipalMiddleware(logger *zap.Logger) *PrincipalMiddleware {
	return &PrincipalMiddleware{logger: logger}
}

// RequirePrincipal rejects requests without a valid forwarded identity and
// attaches the principal to the request context
func (m *PrincipalMiddleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		rawID := r.Header.Get(headerUserID)
		if rawID == "" {
			m.logger.Warn("missing identity header",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing authenticated identity")
			return
		}

		userID, err := uuid.Parse(rawID)
		if err != nil {
			m.logger.Warn("invalid user ID in identity header",
				zap.String("request_id", requestID),
				zap.String("user_id", rawID))
			_ = utils.WriteUnauthorized(w, "Invalid authenticated identity")
			return
		}

		role := models.Role(r.Header.Get(headerUserRole))
		switch role {
		case models.RoleConsumer, models.RoleProvider, models.RoleOperator:
		default:
			m.logger.Warn("invalid role in identity header",
				zap.String("request_id", requestID),
				zap.String("role", string(role)))
			_ = utils.WriteUnauthorized(w, "Invalid authenticated identity")
			return
		}

		principal := &models.Principal{
			ID:    userID,
			Role:  role,
			Email: r.Header.Get(headerUserEmail),
		}

		ctx = WithPrincipal(ctx, principal)

		m.logger.Debug("principal resolved",
			zap.String("request_id", requestID),
			zap.String("user_id", userID.String()),
			zap.String("role", string(role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose principal lacks one of the allowed
// roles. Chain after RequirePrincipal.
func (m *PrincipalMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipalFromContext(r.Context())
			if principal == nil {
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			_ = utils.WriteForbidden(w, "Insufficient role")
		})
	}
}

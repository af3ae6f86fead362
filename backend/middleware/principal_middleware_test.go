package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/dataspace-control-plane/backend/models"
)

func identityRequest(userID, role, email string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	if email != "" {
		req.Header.Set("X-User-Email", email)
	}
	return req
}

func TestRequirePrincipal_AttachesPrincipal(t *testing.T) {
	m := NewPrincipalMiddleware(zap.NewNop())
	userID := uuid.New()

	var captured *models.Principal
	handler := m.RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetPrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest(userID.String(), "CONSUMER", "alice@example.com"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, userID, captured.ID)
	assert.Equal(t, models.RoleConsumer, captured.Role)
	assert.Equal(t, "alice@example.com", captured.Email)
}

func TestRequirePrincipal_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"missing user id", identityRequest("", "CONSUMER", "")},
		{"malformed user id", identityRequest("not-a-uuid", "CONSUMER", "")},
		{"missing role", identityRequest(uuid.NewString(), "", "")},
		{"unknown role", identityRequest(uuid.NewString(), "ADMIN", "")},
	}

	m := NewPrincipalMiddleware(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := m.RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, tt.req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called)
		})
	}
}

func TestRequirePrincipal_EmailOptional(t *testing.T) {
	m := NewPrincipalMiddleware(zap.NewNop())

	var captured *models.Principal
	handler := m.RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetPrincipalFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest(uuid.NewString(), "PROVIDER", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Empty(t, captured.Email)
}

func TestRequireRole(t *testing.T) {
	m := NewPrincipalMiddleware(zap.NewNop())

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guard := m.RequireRole(models.RoleProvider, models.RoleOperator)(okHandler)

	t.Run("allowed role passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/access-logs", nil)
		req = req.WithContext(WithPrincipal(req.Context(), &models.Principal{
			ID:   uuid.New(),
			Role: models.RoleOperator,
		}))

		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong role is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/access-logs", nil)
		req = req.WithContext(WithPrincipal(req.Context(), &models.Principal{
			ID:   uuid.New(),
			Role: models.RoleConsumer,
		}))

		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no principal is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/access-logs", nil)

		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

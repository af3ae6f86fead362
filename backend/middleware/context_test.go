package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetRequestIDFromContext(t *testing.T) {
	var captured string
	handler := chimiddleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, captured)
}

func TestGetRequestIDFromContext_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Empty(t, GetRequestIDFromContext(req.Context()))
}

// The identity middleware logs under the router's request ID, so rejected
// requests can be correlated with the access log.
func TestRequirePrincipal_LogsRouterRequestID(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := NewPrincipalMiddleware(zap.New(core))

	handler := chimiddleware.RequestID(m.RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/contracts", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.NotEmpty(t, fields["request_id"])
}

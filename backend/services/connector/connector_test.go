package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/dataspace-control-plane/backend/config"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/services"
	"go.uber.org/zap"
)

func testContract() *models.Contract {
	return &models.Contract{
		ID:            uuid.New(),
		DatasetID:     uuid.New(),
		ProviderID:    uuid.New(),
		ConsumerID:    uuid.New(),
		Status:        models.ContractStatusActive,
		EffectiveFrom: time.Now(),
	}
}

func testDataPlaneRequest() DataPlaneRequest {
	return DataPlaneRequest{
		Contract:   testContract(),
		Dataset:    &models.Dataset{ID: uuid.New(), StorageURI: "https://api.example.org/data"},
		ConsumerID: uuid.New(),
		Action:     "use",
	}
}

func TestNew_SelectsImplementationByMode(t *testing.T) {
	local := New(config.ConnectorConfig{Mode: "LOCAL_ENFORCEMENT"}, zap.NewNop())
	assert.IsType(t, &LocalConnector{}, local)

	remote := New(config.ConnectorConfig{Mode: "DSSC_HTTP", BaseURL: "https://connector.example.org"}, zap.NewNop())
	assert.IsType(t, &HTTPConnector{}, remote)

	// Unknown modes fall back to local enforcement
	fallback := New(config.ConnectorConfig{Mode: "SOMETHING_ELSE"}, zap.NewNop())
	assert.IsType(t, &LocalConnector{}, fallback)
}

func TestLocalConnector_SyncIsNoOp(t *testing.T) {
	c := NewLocalConnector(zap.NewNop())

	result, err := c.SyncContract(context.Background(), testContract())

	require.NoError(t, err)
	assert.Equal(t, ModeLocal, result.Mode)
	assert.False(t, result.Synced)
	assert.Contains(t, result.Message, "local enforcement")
}

func TestLocalConnector_RevokeIsNoOp(t *testing.T) {
	c := NewLocalConnector(zap.NewNop())

	result, err := c.RevokeContract(context.Background(), testContract())

	require.NoError(t, err)
	assert.Equal(t, ModeLocal, result.Mode)
	assert.False(t, result.Revoked)
}

func TestLocalConnector_GrantPointsAtStorageURI(t *testing.T) {
	c := NewLocalConnector(zap.NewNop())
	req := testDataPlaneRequest()

	grant, err := c.RequestDataPlaneAccess(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, ModeLocal, grant.Mode)
	assert.Equal(t, "DIRECT", grant.Transport)
	assert.Equal(t, req.Dataset.StorageURI, grant.Endpoint)
}

func TestLocalConnector_StatusAlwaysHealthy(t *testing.T) {
	c := NewLocalConnector(zap.NewNop())

	status, err := c.Status(context.Background())

	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, ModeLocal, status.Mode)
}

func httpConnectorFor(serverURL string) *HTTPConnector {
	return NewHTTPConnector(config.ConnectorConfig{
		Mode:    "DSSC_HTTP",
		BaseURL: serverURL,
		APIKey:  "secret-key",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestHTTPConnector_SyncContract(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"accepted": true}`))
	}))
	defer server.Close()

	c := httpConnectorFor(server.URL)
	result, err := c.SyncContract(context.Background(), testContract())

	require.NoError(t, err)
	assert.Equal(t, "/control-plane/contracts/sync", gotPath)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, ModeDSSCHTTP, result.Mode)
	assert.True(t, result.Synced)
	assert.JSONEq(t, `{"accepted": true}`, string(result.Detail))
}

func TestHTTPConnector_RevokeContract(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := httpConnectorFor(server.URL)
	result, err := c.RevokeContract(context.Background(), testContract())

	require.NoError(t, err)
	assert.Equal(t, "/control-plane/contracts/revoke", gotPath)
	assert.True(t, result.Revoked)
}

func TestHTTPConnector_RequestDataPlaneAccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data-plane/access/request", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"transport": "CONNECTOR_PROXY", "endpoint": "https://proxy.example.org/d/1", "token": "tok"}`))
	}))
	defer server.Close()

	c := httpConnectorFor(server.URL)
	grant, err := c.RequestDataPlaneAccess(context.Background(), testDataPlaneRequest())

	require.NoError(t, err)
	assert.Equal(t, ModeDSSCHTTP, grant.Mode)
	assert.Equal(t, "CONNECTOR_PROXY", grant.Transport)
	assert.Equal(t, "https://proxy.example.org/d/1", grant.Endpoint)
	require.NotNil(t, grant.Token)
	assert.Equal(t, "tok", *grant.Token)
}

func TestHTTPConnector_DefaultTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"endpoint": "https://proxy.example.org/d/1"}`))
	}))
	defer server.Close()

	c := httpConnectorFor(server.URL)
	grant, err := c.RequestDataPlaneAccess(context.Background(), testDataPlaneRequest())

	require.NoError(t, err)
	assert.Equal(t, "CONNECTOR_PROXY", grant.Transport)
}

func TestHTTPConnector_NonSuccessStatusIsExternalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := httpConnectorFor(server.URL)
	_, err := c.SyncContract(context.Background(), testContract())

	require.Error(t, err)
	assert.True(t, services.IsExternalError(err))
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPConnector_UnreachableServerIsExternalError(t *testing.T) {
	c := httpConnectorFor("http://127.0.0.1:1")

	_, err := c.SyncContract(context.Background(), testContract())

	require.Error(t, err)
	assert.True(t, services.IsExternalError(err))
}

func TestHTTPConnector_StatusProbesHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := httpConnectorFor(server.URL)
	status, err := c.Status(context.Background())

	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, http.StatusOK, status.StatusCode)
}

func TestHTTPConnector_StatusUnhealthyOnError(t *testing.T) {
	c := httpConnectorFor("http://127.0.0.1:1")

	status, err := c.Status(context.Background())

	require.NoError(t, err)
	assert.False(t, status.Healthy)
}

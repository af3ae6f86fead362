package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/config"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/services"
	"go.uber.org/zap"
)

// HTTPConnector is the remote-enforcement strategy: it forwards contract
// lifecycle events to a DSSC-style connector's control plane API. Timeouts
// are handled by the embedded http.Client.
type HTTPConnector struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPConnector creates the remote enforcement connector
func NewHTTPConnector(cfg config.ConnectorConfig, logger *zap.Logger) *HTTPConnector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPConnector{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// contractPayload is the wire form of a contract sent to the connector
type contractPayload struct {
	ContractID    uuid.UUID          `json:"contractId"`
	ProviderID    uuid.UUID          `json:"providerId"`
	ConsumerID    uuid.UUID          `json:"consumerId"`
	DatasetID     uuid.UUID          `json:"datasetId"`
	Status        string             `json:"status"`
	EffectiveFrom time.Time          `json:"effectiveFrom"`
	EffectiveTo   *time.Time         `json:"effectiveTo,omitempty"`
	Policy        *models.ODRLPolicy `json:"odrlPolicy,omitempty"`
}

func buildContractPayload(contract *models.Contract) contractPayload {
	return contractPayload{
		ContractID:    contract.ID,
		ProviderID:    contract.ProviderID,
		ConsumerID:    contract.ConsumerID,
		DatasetID:     contract.DatasetID,
		Status:        string(contract.Status),
		EffectiveFrom: contract.EffectiveFrom,
		EffectiveTo:   contract.EffectiveTo,
		Policy:        contract.Policy,
	}
}

// SyncContract pushes the contract's current state to the connector
func (c *HTTPConnector) SyncContract(ctx context.Context, contract *models.Contract) (*SyncResult, error) {
	detail, err := c.post(ctx, "/control-plane/contracts/sync", buildContractPayload(contract))
	if err != nil {
		return nil, err
	}

	c.logger.Info("contract synced to connector",
		zap.String("contract_id", contract.ID.String()))

	return &SyncResult{
		Mode:   ModeDSSCHTTP,
		Synced: true,
		Detail: detail,
	}, nil
}

// RevokeContract forwards the revocation to the connector
func (c *HTTPConnector) RevokeContract(ctx context.Context, contract *models.Contract) (*RevokeResult, error) {
	payload := map[string]interface{}{
		"contractId": contract.ID,
		"datasetId":  contract.DatasetID,
		"consumerId": contract.ConsumerID,
	}

	detail, err := c.post(ctx, "/control-plane/contracts/revoke", payload)
	if err != nil {
		return nil, err
	}

	c.logger.Info("contract revocation forwarded to connector",
		zap.String("contract_id", contract.ID.String()))

	return &RevokeResult{
		Mode:    ModeDSSCHTTP,
		Revoked: true,
		Detail:  detail,
	}, nil
}

// dataPlaneResponse is the connector's answer to a data-plane access request
type dataPlaneResponse struct {
	Transport string     `json:"transport"`
	Endpoint  string     `json:"endpoint"`
	Token     *string    `json:"token"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// RequestDataPlaneAccess asks the connector for a delivery grant
func (c *HTTPConnector) RequestDataPlaneAccess(ctx context.Context, req DataPlaneRequest) (*DataPlaneGrant, error) {
	payload := map[string]interface{}{
		"contractId": req.Contract.ID,
		"datasetId":  req.Dataset.ID,
		"consumerId": req.ConsumerID,
		"purpose":    req.Purpose,
		"action":     req.Action,
	}

	detail, err := c.post(ctx, "/data-plane/access/request", payload)
	if err != nil {
		return nil, err
	}

	var resp dataPlaneResponse
	if err := json.Unmarshal(detail, &resp); err != nil {
		return nil, services.WrapExternal("invalid data-plane response from connector", err)
	}

	transport := resp.Transport
	if transport == "" {
		transport = "CONNECTOR_PROXY"
	}

	return &DataPlaneGrant{
		Mode:      ModeDSSCHTTP,
		Transport: transport,
		Endpoint:  resp.Endpoint,
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}

// Status probes the connector's health endpoint
func (c *HTTPConnector) Status(ctx context.Context) (*Status, error) {
	if c.baseURL == "" {
		return &Status{
			Mode:    ModeDSSCHTTP,
			Healthy: false,
			Details: "connector base URL not configured",
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return &Status{
			Mode:    ModeDSSCHTTP,
			Healthy: false,
			Details: err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	return &Status{
		Mode:       ModeDSSCHTTP,
		Healthy:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}, nil
}

func (c *HTTPConnector) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// post sends a JSON payload and returns the raw response body. Non-2xx
// responses become external errors so callers surface them as 502.
func (c *HTTPConnector) post(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, services.NewDomainError(services.ErrorTypeInternal,
			"connector base URL not configured for DSSC_HTTP mode", nil)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal connector payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build connector request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.WrapExternal("connector request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.WrapExternal("failed to read connector response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("connector returned error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return nil, services.NewDomainError(services.ErrorTypeExternal,
			fmt.Sprintf("connector error (%d)", resp.StatusCode), nil).
			WithDetail("path", path).
			WithDetail("status", resp.StatusCode)
	}

	return data, nil
}

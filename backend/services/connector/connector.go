// Package connector synchronizes contract lifecycle events with an external
// dataspace connector. Deployments choose an enforcement mode once at startup:
// local enforcement keeps every effect inside this control plane, while remote
// enforcement forwards contract sync, revocation and data-plane access
// requests to a DSSC-style connector over HTTP.
package connector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/config"
	"github.com/upb/dataspace-control-plane/backend/models"
	"go.uber.org/zap"
)

// Mode identifies the enforcement strategy in effect
type Mode string

const (
	ModeLocal    Mode = "LOCAL_ENFORCEMENT"
	ModeDSSCHTTP Mode = "DSSC_HTTP"
)

// SyncResult reports the outcome of a contract synchronization
type SyncResult struct {
	Mode    Mode            `json:"mode"`
	Synced  bool            `json:"synced"`
	Message string          `json:"message,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// RevokeResult reports the outcome of a contract revocation forward
type RevokeResult struct {
	Mode    Mode            `json:"mode"`
	Revoked bool            `json:"revoked"`
	Message string          `json:"message,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// DataPlaneRequest describes a consumption attempt that needs a data-plane grant
type DataPlaneRequest struct {
	Contract   *models.Contract
	Dataset    *models.Dataset
	ConsumerID uuid.UUID
	Purpose    *string
	Action     string
}

// DataPlaneGrant is the connector's answer to a data-plane access request.
// In local mode the grant points directly at the dataset's storage URI.
type DataPlaneGrant struct {
	Mode      Mode       `json:"mode"`
	Transport string     `json:"transport"`
	Endpoint  string     `json:"endpoint,omitempty"`
	Token     *string    `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Status reports connector health
type Status struct {
	Mode       Mode   `json:"mode"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	Details    string `json:"details,omitempty"`
}

// Connector is the enforcement mode strategy. Implementations must be safe
// for concurrent use.
type Connector interface {
	// SyncContract pushes a contract's current state to the enforcement plane
	SyncContract(ctx context.Context, contract *models.Contract) (*SyncResult, error)

	// RevokeContract tells the enforcement plane a contract was revoked
	RevokeContract(ctx context.Context, contract *models.Contract) (*RevokeResult, error)

	// RequestDataPlaneAccess obtains a grant for delivering dataset content
	RequestDataPlaneAccess(ctx context.Context, req DataPlaneRequest) (*DataPlaneGrant, error)

	// Status reports connector health
	Status(ctx context.Context) (*Status, error)
}

// New selects the connector implementation for the configured enforcement
// mode. Unknown modes fall back to local enforcement.
func New(cfg config.ConnectorConfig, logger *zap.Logger) Connector {
	if Mode(cfg.Mode) == ModeDSSCHTTP {
		return NewHTTPConnector(cfg, logger)
	}
	return NewLocalConnector(logger)
}

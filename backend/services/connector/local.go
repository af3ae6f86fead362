package connector

import (
	"context"

	"github.com/upb/dataspace-control-plane/backend/models"
	"go.uber.org/zap"
)

// LocalConnector is the local-enforcement strategy: contract effects apply
// only inside this control plane, and every call records intent without
// touching an external system.
type LocalConnector struct {
	logger *zap.Logger
}

// NewLocalConnector creates the local enforcement connector
func NewLocalConnector(logger *zap.Logger) *LocalConnector {
	return &LocalConnector{logger: logger}
}

// SyncContract records the sync intent and returns a descriptive no-op result
func (c *LocalConnector) SyncContract(ctx context.Context, contract *models.Contract) (*SyncResult, error) {
	c.logger.Debug("local enforcement: contract sync skipped",
		zap.String("contract_id", contract.ID.String()))

	return &SyncResult{
		Mode:    ModeLocal,
		Synced:  false,
		Message: "local enforcement; external connector not invoked",
	}, nil
}

// RevokeContract records the revocation intent and returns a descriptive no-op result
func (c *LocalConnector) RevokeContract(ctx context.Context, contract *models.Contract) (*RevokeResult, error) {
	c.logger.Debug("local enforcement: contract revocation not forwarded",
		zap.String("contract_id", contract.ID.String()))

	return &RevokeResult{
		Mode:    ModeLocal,
		Revoked: false,
		Message: "local enforcement; external connector not invoked",
	}, nil
}

// RequestDataPlaneAccess grants direct access to the dataset's own storage URI
func (c *LocalConnector) RequestDataPlaneAccess(ctx context.Context, req DataPlaneRequest) (*DataPlaneGrant, error) {
	return &DataPlaneGrant{
		Mode:      ModeLocal,
		Transport: "DIRECT",
		Endpoint:  req.Dataset.StorageURI,
	}, nil
}

// Status always reports healthy; local mode has no external dependency
func (c *LocalConnector) Status(ctx context.Context) (*Status, error) {
	return &Status{
		Mode:    ModeLocal,
		Healthy: true,
		Details: "local enforcement without external connector dependency",
	}, nil
}

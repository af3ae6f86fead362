package handlers

import (
	"net/http"

	"github.com/upb/dataspace-control-plane/backend/services/connector"
	"github.com/upb/dataspace-control-plane/backend/utils"
	"go.uber.org/zap"
)

// ConnectorHandler exposes the enforcement connector's status
type ConnectorHandler struct {
	connector connector.Connector
	logger    *zap.Logger
}

// NewConnectorHandler creates a new ConnectorHandler
func NewConnectorHandler(conn connector.Connector, logger *zap.Logger) *ConnectorHandler {
	return &ConnectorHandler{
		connector: conn,
		logger:    logger,
	}
}

// HandleStatus handles GET /api/v1/connector/status
func (h *ConnectorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.connector.Status(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, status)
}

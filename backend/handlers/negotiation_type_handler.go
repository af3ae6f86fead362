package handlers

import (
	"net/http"

	"github.com/upb/dataspace-control-plane/backend/repositories"
	"github.com/upb/dataspace-control-plane/backend/utils"
	"go.uber.org/zap"
)

// NegotiationTypeHandler exposes the negotiation type catalog
type NegotiationTypeHandler struct {
	negotiationTypes repositories.NegotiationTypeRepository
	logger           *zap.Logger
}

// NewNegotiationTypeHandler creates a new NegotiationTypeHandler
func NewNegotiationTypeHandler(negotiationTypes repositories.NegotiationTypeRepository, logger *zap.Logger) *NegotiationTypeHandler {
	return &NegotiationTypeHandler{
		negotiationTypes: negotiationTypes,
		logger:           logger,
	}
}

// HandleList handles GET /api/v1/negotiation-types
func (h *NegotiationTypeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	types, err := h.negotiationTypes.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list negotiation types", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, types)
}

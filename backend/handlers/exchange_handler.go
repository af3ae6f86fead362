package handlers

import (
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/dataspace-control-plane/backend/middleware"
	"github.com/upb/dataspace-control-plane/backend/services/exchange"
	"github.com/upb/dataspace-control-plane/backend/utils"
	"go.uber.org/zap"
)

// ExternalAccessResponse is returned for externally hosted datasets: the
// consumer follows the grant instead of receiving bytes from this service.
type ExternalAccessResponse struct {
	Mode      string      `json:"mode"`
	URL       string      `json:"url"`
	DataPlane interface{} `json:"data_plane,omitempty"`
}

// ExchangeHandler handles dataset consumption HTTP requests
type ExchangeHandler struct {
	gateway *exchange.Gateway
	logger  *zap.Logger
}

// NewExchangeHandler creates a new ExchangeHandler
func NewExchangeHandler(gateway *exchange.Gateway, logger *zap.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// HandleAccess handles GET /api/v1/datasets/{id}/access. File-backed datasets
// stream the file; externally hosted ones return delivery instructions.
func (h *ExchangeHandler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	datasetID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid dataset ID", nil)
		return
	}

	access := exchange.AccessContext{
		Action: r.URL.Query().Get("action"),
	}
	if purpose := r.URL.Query().Get("purpose"); purpose != "" {
		access.Purpose = &purpose
	}

	descriptor, err := h.gateway.PrepareDatasetAccess(r.Context(), principal.ID, datasetID, clientInfo(r), access)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	switch descriptor.Mode {
	case exchange.AccessModeFile:
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", descriptor.SuggestedFilename))
		http.ServeFile(w, r, descriptor.FilePath)

	case exchange.AccessModeExternalAPI:
		_ = utils.WriteOK(w, ExternalAccessResponse{
			Mode:      string(descriptor.Mode),
			URL:       descriptor.ExternalURL,
			DataPlane: descriptor.DataPlane,
		})

	default:
		h.logger.Error("unknown access mode",
			zap.String("mode", string(descriptor.Mode)))
		_ = utils.WriteInternalServerError(w, "")
	}
}

// clientInfo extracts the requesting client's network details for auditing
func clientInfo(r *http.Request) exchange.ClientInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return exchange.ClientInfo{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

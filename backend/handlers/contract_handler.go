package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/middleware"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/services/contracts"
	"github.com/upb/dataspace-control-plane/backend/utils"
	"go.uber.org/zap"
)

// SetPolicyRequest carries the ODRL policy to attach to a contract. A null
// policy detaches the current one.
type SetPolicyRequest struct {
	Policy *models.ODRLPolicy `json:"odrl_policy"`
}

// ContractHandler handles contract lifecycle HTTP requests
type ContractHandler struct {
	contracts *contracts.Service
	logger    *zap.Logger
}

// NewContractHandler creates a new ContractHandler
func NewContractHandler(contracts *contracts.Service, logger *zap.Logger) *ContractHandler {
	return &ContractHandler{
		contracts: contracts,
		logger:    logger,
	}
}

// HandleList handles GET /api/v1/contracts. Consumers see their own
// contracts, providers those covering their datasets.
func (h *ContractHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var (
		list []*models.Contract
		err  error
	)
	if principal.Role == models.RoleProvider {
		list, err = h.contracts.ListForProvider(r.Context(), principal.ID)
	} else {
		list, err = h.contracts.ListForConsumer(r.Context(), principal.ID)
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, list)
}

// HandleGet handles GET /api/v1/contracts/{id}
func (h *ContractHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal, contractID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	contract, err := h.contracts.GetByID(r.Context(), *principal, contractID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, contract)
}

// HandleRevoke handles POST /api/v1/contracts/{id}/revoke
func (h *ContractHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	principal, contractID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	contract, err := h.contracts.Revoke(r.Context(), *principal, contractID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, contract)
}

// HandleSetPolicy handles PUT /api/v1/contracts/{id}/policy
func (h *ContractHandler) HandleSetPolicy(w http.ResponseWriter, r *http.Request) {
	principal, contractID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req SetPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	contract, err := h.contracts.SetPolicy(r.Context(), *principal, contractID, req.Policy)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, contract)
}

func (h *ContractHandler) principalAndID(w http.ResponseWriter, r *http.Request) (*models.Principal, uuid.UUID, bool) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return nil, uuid.Nil, false
	}

	contractID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid contract ID", nil)
		return nil, uuid.Nil, false
	}

	return principal, contractID, true
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/middleware"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/services/negotiation"
	"github.com/upb/dataspace-control-plane/backend/utils"
	"go.uber.org/zap"
)

// CreateAccessRequestRequest represents a consumer's request to open a negotiation
type CreateAccessRequestRequest struct {
	DatasetID         uuid.UUID  `json:"dataset_id" validate:"required"`
	NegotiationTypeID *uuid.UUID `json:"negotiation_type_id,omitempty"`
	Purpose           *string    `json:"purpose,omitempty"`
	Duration          *string    `json:"duration,omitempty"`
	Scope             *string    `json:"scope,omitempty"`
	Comment           *string    `json:"comment,omitempty"`
}

// CounterOfferRequest represents a counter-offer from either party
type CounterOfferRequest struct {
	Purpose  *string `json:"purpose,omitempty"`
	Duration *string `json:"duration,omitempty"`
	Scope    *string `json:"scope,omitempty"`
	Comment  *string `json:"comment,omitempty"`
}

// ApproveRequest represents a provider's approval payload
type ApproveRequest struct {
	Purpose      *string `json:"purpose,omitempty"`
	Duration     *string `json:"duration,omitempty"`
	Scope        *string `json:"scope,omitempty"`
	Comment      *string `json:"comment,omitempty"`
	ContractText *string `json:"contract_text,omitempty"`
}

// RejectRequest represents a provider's rejection payload
type RejectRequest struct {
	Comment *string `json:"comment,omitempty"`
}

// AccessRequestHandler handles access request negotiation HTTP requests
type AccessRequestHandler struct {
	negotiations *negotiation.Service
	logger       *zap.Logger
}

// NewAccessRequestHandler creates a new AccessRequestHandler
func NewAccessRequestHandler(negotiations *negotiation.Service, logger *zap.Logger) *AccessRequestHandler {
	return &AccessRequestHandler{
		negotiations: negotiations,
		logger:       logger,
	}
}

// HandleCreate handles POST /api/v1/access-requests
func (h *AccessRequestHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateAccessRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	request, err := h.negotiations.Create(r.Context(), principal.ID, negotiation.CreateInput{
		DatasetID:         req.DatasetID,
		NegotiationTypeID: req.NegotiationTypeID,
		RequestedPurpose:  req.Purpose,
		RequestedDuration: req.Duration,
		RequestedScope:    req.Scope,
		ConsumerComment:   req.Comment,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, request)
}

// HandleList handles GET /api/v1/access-requests. Consumers see their own
// requests, providers the requests targeting their datasets.
func (h *AccessRequestHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var (
		requests []*models.AccessRequest
		err      error
	)
	if principal.Role == models.RoleProvider {
		requests, err = h.negotiations.ListForProvider(r.Context(), principal.ID)
	} else {
		requests, err = h.negotiations.ListForConsumer(r.Context(), principal.ID)
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, requests)
}

// HandleProviderCounter handles POST /api/v1/access-requests/{id}/counter
func (h *AccessRequestHandler) HandleProviderCounter(w http.ResponseWriter, r *http.Request) {
	h.counter(w, r, true)
}

// HandleConsumerCounter handles POST /api/v1/access-requests/{id}/consumer-counter
func (h *AccessRequestHandler) HandleConsumerCounter(w http.ResponseWriter, r *http.Request) {
	h.counter(w, r, false)
}

func (h *AccessRequestHandler) counter(w http.ResponseWriter, r *http.Request, fromProvider bool) {
	principal, requestID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req CounterOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	in := negotiation.CounterInput{
		Terms: negotiation.Terms{
			Purpose:  req.Purpose,
			Duration: req.Duration,
			Scope:    req.Scope,
		},
		Comment: req.Comment,
	}

	var (
		request *models.AccessRequest
		err     error
	)
	if fromProvider {
		request, err = h.negotiations.ProviderCounter(r.Context(), principal.ID, requestID, in)
	} else {
		request, err = h.negotiations.ConsumerCounter(r.Context(), principal.ID, requestID, in)
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, request)
}

// HandleApprove handles POST /api/v1/access-requests/{id}/approve
func (h *AccessRequestHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	principal, requestID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	request, err := h.negotiations.ProviderApprove(r.Context(), principal.ID, requestID, negotiation.ApproveInput{
		ProviderComment:      req.Comment,
		ContractTextOverride: req.ContractText,
		Terms: negotiation.Terms{
			Purpose:  req.Purpose,
			Duration: req.Duration,
			Scope:    req.Scope,
		},
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, request)
}

// HandleApproveFinal handles POST /api/v1/access-requests/{id}/approve-final
func (h *AccessRequestHandler) HandleApproveFinal(w http.ResponseWriter, r *http.Request) {
	principal, requestID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	request, err := h.negotiations.ProviderApproveFinal(r.Context(), principal.ID, requestID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, request)
}

// HandleAcceptCounter handles POST /api/v1/access-requests/{id}/accept-counter
func (h *AccessRequestHandler) HandleAcceptCounter(w http.ResponseWriter, r *http.Request) {
	principal, requestID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	request, err := h.negotiations.ConsumerAcceptCounter(r.Context(), principal.ID, requestID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, request)
}

// HandleReject handles POST /api/v1/access-requests/{id}/reject
func (h *AccessRequestHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	principal, requestID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	request, err := h.negotiations.Reject(r.Context(), principal.ID, requestID, req.Comment)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, request)
}

// HandleCancel handles POST /api/v1/access-requests/{id}/cancel
func (h *AccessRequestHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	principal, requestID, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	request, err := h.negotiations.Cancel(r.Context(), principal.ID, requestID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, request)
}

func (h *AccessRequestHandler) principalAndID(w http.ResponseWriter, r *http.Request) (*models.Principal, uuid.UUID, bool) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return nil, uuid.Nil, false
	}

	requestID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid access request ID", nil)
		return nil, uuid.Nil, false
	}

	return principal, requestID, true
}

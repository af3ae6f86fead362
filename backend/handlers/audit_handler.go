package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/upb/dataspace-control-plane/backend/middleware"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"github.com/upb/dataspace-control-plane/backend/services/audit"
	"github.com/upb/dataspace-control-plane/backend/utils"
	"go.uber.org/zap"
)

// AuditHandler handles access log query HTTP requests
type AuditHandler struct {
	audit  *audit.Service
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit *audit.Service, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/access-logs. Providers see logs covering
// their own datasets; operators see everything.
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	filter, err := parseLogFilter(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var logs []*models.AccessLog
	switch principal.Role {
	case models.RoleOperator:
		logs, err = h.audit.ListGlobal(r.Context(), filter)
	case models.RoleProvider:
		logs, err = h.audit.ListForProvider(r.Context(), principal.ID, filter)
	default:
		_ = utils.WriteForbidden(w, "Insufficient role")
		return
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, logs)
}

func parseLogFilter(r *http.Request) (repositories.AccessLogFilter, error) {
	var filter repositories.AccessLogFilter
	q := r.URL.Query()

	if raw := q.Get("user_id"); raw != "" {
		id, err := utils.ParseUUID(raw)
		if err != nil {
			return filter, err
		}
		filter.UserID = &id
	}
	if raw := q.Get("dataset_id"); raw != "" {
		id, err := utils.ParseUUID(raw)
		if err != nil {
			return filter, err
		}
		filter.DatasetID = &id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.To = &t
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	return filter, nil
}

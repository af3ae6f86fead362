package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"go.uber.org/zap"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// AccessRequestRepository implements the repositories.AccessRequestRepository interface
type AccessRequestRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccessRequestRepository creates a new access request repository
func NewAccessRequestRepository(db *DB, logger *zap.Logger) repositories.AccessRequestRepository {
	return &AccessRequestRepository{
		db:     db,
		logger: logger,
	}
}

const accessRequestColumns = `
	id, dataset_id, consumer_id, negotiation_type_id, status,
	requested_purpose, requested_duration, requested_scope,
	agreed_purpose, agreed_duration, agreed_scope,
	provider_comment, consumer_comment,
	created_at, updated_at, approved_at, rejected_at
`

// Create creates a new access request. A partial unique index on
// (dataset_id, consumer_id) WHERE status = 'PENDING' backs the one-pending-
// request-per-pair invariant; violations surface as ErrDuplicatePendingRequest.
func (r *AccessRequestRepository) Create(ctx context.Context, request *models.AccessRequest) error {
	query := `
		INSERT INTO access_requests (` + accessRequestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		request.ID,
		request.DatasetID,
		request.ConsumerID,
		request.NegotiationTypeID,
		request.Status,
		request.RequestedPurpose,
		request.RequestedDuration,
		request.RequestedScope,
		request.AgreedPurpose,
		request.AgreedDuration,
		request.AgreedScope,
		request.ProviderComment,
		request.ConsumerComment,
		request.CreatedAt,
		request.UpdatedAt,
		request.ApprovedAt,
		request.RejectedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repositories.ErrDuplicatePendingRequest
		}
		return fmt.Errorf("failed to create access request: %w", err)
	}

	r.logger.Debug("access request created",
		zap.String("id", request.ID.String()),
		zap.String("dataset_id", request.DatasetID.String()))
	return nil
}

// GetByID retrieves an access request by ID
func (r *AccessRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	request, err := scanAccessRequest(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get access request: %w", err)
	}

	return request, nil
}

// Update persists the mutable fields of an access request
func (r *AccessRequestRepository) Update(ctx context.Context, request *models.AccessRequest) error {
	query := `
		UPDATE access_requests
		SET status = $2,
			agreed_purpose = $3,
			agreed_duration = $4,
			agreed_scope = $5,
			provider_comment = $6,
			consumer_comment = $7,
			approved_at = $8,
			rejected_at = $9,
			updated_at = $10
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		request.ID,
		request.Status,
		request.AgreedPurpose,
		request.AgreedDuration,
		request.AgreedScope,
		request.ProviderComment,
		request.ConsumerComment,
		request.ApprovedAt,
		request.RejectedAt,
		request.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update access request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("access request not found: %s", request.ID)
	}

	r.logger.Debug("access request updated",
		zap.String("id", request.ID.String()),
		zap.String("status", string(request.Status)))
	return nil
}

// FindPendingByConsumerAndDataset finds a PENDING request for the pair, or nil
func (r *AccessRequestRepository) FindPendingByConsumerAndDataset(ctx context.Context, consumerID, datasetID uuid.UUID) (*models.AccessRequest, error) {
	query := `
		SELECT ` + accessRequestColumns + `
		FROM access_requests
		WHERE consumer_id = $1 AND dataset_id = $2 AND status = $3
		LIMIT 1
	`

	executor := GetExecutor(ctx, r.db)
	request, err := scanAccessRequest(executor.QueryRowContext(ctx, query, consumerID, datasetID, models.RequestStatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending access request: %w", err)
	}

	return request, nil
}

// ListByConsumer retrieves a consumer's requests, most recent first
func (r *AccessRequestRepository) ListByConsumer(ctx context.Context, consumerID uuid.UUID) ([]*models.AccessRequest, error) {
	query := `
		SELECT ` + accessRequestColumns + `
		FROM access_requests
		WHERE consumer_id = $1
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, consumerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	defer rows.Close()

	return collectAccessRequests(rows)
}

// ListByProvider retrieves requests targeting a provider's datasets, most recent first
func (r *AccessRequestRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.AccessRequest, error) {
	query := `
		SELECT ar.id, ar.dataset_id, ar.consumer_id, ar.negotiation_type_id, ar.status,
			ar.requested_purpose, ar.requested_duration, ar.requested_scope,
			ar.agreed_purpose, ar.agreed_duration, ar.agreed_scope,
			ar.provider_comment, ar.consumer_comment,
			ar.created_at, ar.updated_at, ar.approved_at, ar.rejected_at
		FROM access_requests ar
		JOIN datasets d ON d.id = ar.dataset_id
		WHERE d.provider_id = $1
		ORDER BY ar.created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests for provider: %w", err)
	}
	defer rows.Close()

	return collectAccessRequests(rows)
}

// rowScanner matches both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccessRequest(row rowScanner) (*models.AccessRequest, error) {
	request := &models.AccessRequest{}
	err := row.Scan(
		&request.ID,
		&request.DatasetID,
		&request.ConsumerID,
		&request.NegotiationTypeID,
		&request.Status,
		&request.RequestedPurpose,
		&request.RequestedDuration,
		&request.RequestedScope,
		&request.AgreedPurpose,
		&request.AgreedDuration,
		&request.AgreedScope,
		&request.ProviderComment,
		&request.ConsumerComment,
		&request.CreatedAt,
		&request.UpdatedAt,
		&request.ApprovedAt,
		&request.RejectedAt,
	)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func collectAccessRequests(rows *sql.Rows) ([]*models.AccessRequest, error) {
	requests := make([]*models.AccessRequest, 0)
	for rows.Next() {
		request, err := scanAccessRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access requests: %w", err)
	}
	return requests, nil
}

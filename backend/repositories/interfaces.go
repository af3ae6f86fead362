package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/models"
)

// ErrDuplicatePendingRequest is returned by AccessRequestRepository.Create
// when the storage layer's uniqueness constraint on one PENDING request per
// consumer/dataset pair rejects the insert. It closes the race left open by
// the service-level check-then-act duplicate check.
var ErrDuplicatePendingRequest = errors.New("duplicate pending access request")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// DatasetRepository reads dataset records. Catalog CRUD lives in another
// service; the control plane only consumes datasets.
type DatasetRepository interface {
	// GetByID retrieves a dataset by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
}

// AccessRequestRepository handles access request data operations
type AccessRequestRepository interface {
	// Create creates a new access request. Returns ErrDuplicatePendingRequest
	// when a PENDING request already exists for the consumer/dataset pair.
	Create(ctx context.Context, request *models.AccessRequest) error

	// GetByID retrieves an access request by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AccessRequest, error)

	// Update persists the mutable fields of an access request
	Update(ctx context.Context, request *models.AccessRequest) error

	// FindPendingByConsumerAndDataset finds a PENDING request for the pair, or nil
	FindPendingByConsumerAndDataset(ctx context.Context, consumerID, datasetID uuid.UUID) (*models.AccessRequest, error)

	// ListByConsumer retrieves a consumer's requests, most recent first
	ListByConsumer(ctx context.Context, consumerID uuid.UUID) ([]*models.AccessRequest, error)

	// ListByProvider retrieves requests targeting a provider's datasets, most recent first
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.AccessRequest, error)
}

// ContractRepository handles contract data operations
type ContractRepository interface {
	// Create creates a new contract
	Create(ctx context.Context, contract *models.Contract) error

	// GetByID retrieves a contract by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)

	// Update persists contract status and policy changes
	Update(ctx context.Context, contract *models.Contract) error

	// FindLatestByConsumerAndDataset retrieves the most recently updated
	// contract linking the consumer to the dataset, with its access request
	// joined, or nil when none exists
	FindLatestByConsumerAndDataset(ctx context.Context, consumerID, datasetID uuid.UUID) (*models.Contract, error)

	// ListByConsumer retrieves a consumer's contracts, most recent first
	ListByConsumer(ctx context.Context, consumerID uuid.UUID) ([]*models.Contract, error)

	// ListByProvider retrieves a provider's contracts, most recent first
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.Contract, error)
}

// AccessLogFilter narrows access log queries
type AccessLogFilter struct {
	UserID     *uuid.UUID
	DatasetID  *uuid.UUID
	ProviderID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// AccessLogRepository handles the append-only access log store
type AccessLogRepository interface {
	// Create appends a new access log record
	Create(ctx context.Context, log *models.AccessLog) error

	// List retrieves access log records matching the filter, newest first
	List(ctx context.Context, filter AccessLogFilter) ([]*models.AccessLog, error)
}

// NegotiationTypeRepository handles negotiation type data operations
type NegotiationTypeRepository interface {
	// GetByID retrieves a negotiation type by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.NegotiationType, error)

	// List retrieves all negotiation types, most recent first
	List(ctx context.Context) ([]*models.NegotiationType, error)
}

// Repositories bundles all repository instances for dependency wiring
type Repositories struct {
	Datasets         DatasetRepository
	AccessRequests   AccessRequestRepository
	Contracts        ContractRepository
	AccessLogs       AccessLogRepository
	NegotiationTypes NegotiationTypeRepository
}

// Package negotiation drives the lifecycle of dataset access requests: a
// consumer opens a request, both parties may exchange counter-offers, and an
// approval atomically materializes the contract that later authorizes access.
package negotiation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"github.com/upb/dataspace-control-plane/backend/services"
	"github.com/upb/dataspace-control-plane/backend/services/connector"
	"go.uber.org/zap"
)

// defaultContractTemplate is the fallback contract text used when neither an
// override nor a negotiation type template is available
const defaultContractTemplate = "Standard data usage contract."

// Service implements the negotiation state machine
type Service struct {
	requests         repositories.AccessRequestRepository
	datasets         repositories.DatasetRepository
	contracts        repositories.ContractRepository
	negotiationTypes repositories.NegotiationTypeRepository
	txManager        repositories.TransactionManager
	connector        connector.Connector
	logger           *zap.Logger
}

// NewService creates a new negotiation Service instance
func NewService(
	requests repositories.AccessRequestRepository,
	datasets repositories.DatasetRepository,
	contracts repositories.ContractRepository,
	negotiationTypes repositories.NegotiationTypeRepository,
	txManager repositories.TransactionManager,
	conn connector.Connector,
	logger *zap.Logger,
) *Service {
	return &Service{
		requests:         requests,
		datasets:         datasets,
		contracts:        contracts,
		negotiationTypes: negotiationTypes,
		txManager:        txManager,
		connector:        conn,
		logger:           logger,
	}
}

// CreateInput carries the consumer's initial request
type CreateInput struct {
	DatasetID         uuid.UUID
	NegotiationTypeID *uuid.UUID
	RequestedPurpose  *string
	RequestedDuration *string
	RequestedScope    *string
	ConsumerComment   *string
}

// Create opens a new access request in PENDING state. The dataset must exist
// and be published, and the consumer must not already have a PENDING request
// for it.
func (s *Service) Create(ctx context.Context, consumerID uuid.UUID, in CreateInput) (*models.AccessRequest, error) {
	if in.DatasetID == uuid.Nil {
		return nil, services.ErrInvalidInput.WithDetail("field", "dataset_id")
	}

	dataset, err := s.datasets.GetByID(ctx, in.DatasetID)
	if err != nil {
		return nil, services.WrapInternal("failed to load dataset", err)
	}
	if dataset == nil || !dataset.Published {
		return nil, services.ErrDatasetNotPublished
	}

	existing, err := s.requests.FindPendingByConsumerAndDataset(ctx, consumerID, in.DatasetID)
	if err != nil {
		return nil, services.WrapInternal("failed to check for pending request", err)
	}
	if existing != nil {
		return nil, services.ErrDuplicatePendingRequest
	}

	request := models.NewAccessRequest(consumerID, in.DatasetID)
	request.NegotiationTypeID = in.NegotiationTypeID
	request.RequestedPurpose = in.RequestedPurpose
	request.RequestedDuration = in.RequestedDuration
	request.RequestedScope = in.RequestedScope
	request.ConsumerComment = in.ConsumerComment

	if err := s.requests.Create(ctx, request); err != nil {
		// The storage-level uniqueness constraint closes the window between
		// the duplicate check above and this insert.
		if errors.Is(err, repositories.ErrDuplicatePendingRequest) {
			return nil, services.ErrDuplicatePendingRequest
		}
		return nil, services.WrapInternal("failed to create access request", err)
	}

	s.logger.Info("access request created",
		zap.String("request_id", request.ID.String()),
		zap.String("dataset_id", in.DatasetID.String()),
		zap.String("consumer_id", consumerID.String()))

	return request, nil
}

// CounterInput carries a counter-offer's proposed terms and comment
type CounterInput struct {
	Terms   Terms
	Comment *string
}

// ProviderCounter sends a provider counter-offer. Allowed from PENDING and
// COUNTER_FROM_CONSUMER.
func (s *Service) ProviderCounter(ctx context.Context, providerID, requestID uuid.UUID, in CounterInput) (*models.AccessRequest, error) {
	request, _, err := s.loadForProvider(ctx, providerID, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != models.RequestStatusPending && request.Status != models.RequestStatusCounterFromConsumer {
		return nil, services.NewInvalidStateTransition(string(request.Status),
			string(models.RequestStatusPending), string(models.RequestStatusCounterFromConsumer))
	}

	applyTerms(request, in.Terms)
	request.Status = models.RequestStatusCounterFromProvider
	if in.Comment != nil {
		request.ProviderComment = in.Comment
	}
	request.UpdatedAt = time.Now()

	if err := s.requests.Update(ctx, request); err != nil {
		return nil, services.WrapInternal("failed to update access request", err)
	}

	s.logger.Info("provider counter-offer sent",
		zap.String("request_id", requestID.String()))

	return request, nil
}

// ConsumerCounter sends a consumer counter-offer. Allowed from PENDING and
// COUNTER_FROM_PROVIDER.
func (s *Service) ConsumerCounter(ctx context.Context, consumerID, requestID uuid.UUID, in CounterInput) (*models.AccessRequest, error) {
	request, err := s.loadForConsumer(ctx, consumerID, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != models.RequestStatusPending && request.Status != models.RequestStatusCounterFromProvider {
		return nil, services.NewInvalidStateTransition(string(request.Status),
			string(models.RequestStatusPending), string(models.RequestStatusCounterFromProvider))
	}

	applyTerms(request, in.Terms)
	request.Status = models.RequestStatusCounterFromConsumer
	if in.Comment != nil {
		request.ConsumerComment = in.Comment
	}
	request.UpdatedAt = time.Now()

	if err := s.requests.Update(ctx, request); err != nil {
		return nil, services.WrapInternal("failed to update access request", err)
	}

	s.logger.Info("consumer counter-offer sent",
		zap.String("request_id", requestID.String()))

	return request, nil
}

// ApproveInput carries the provider's approval payload
type ApproveInput struct {
	ProviderComment      *string
	ContractTextOverride *string
	Terms                Terms
}

// ProviderApprove approves a request directly from PENDING, creating its
// contract in the same transaction.
func (s *Service) ProviderApprove(ctx context.Context, providerID, requestID uuid.UUID, in ApproveInput) (*models.AccessRequest, error) {
	request, dataset, err := s.loadForProvider(ctx, providerID, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != models.RequestStatusPending {
		return nil, services.NewInvalidStateTransition(string(request.Status),
			string(models.RequestStatusPending))
	}

	applyTerms(request, in.Terms)
	if in.ProviderComment != nil {
		request.ProviderComment = in.ProviderComment
	}

	contractText, err := s.resolveContractText(ctx, request, in.ContractTextOverride)
	if err != nil {
		return nil, err
	}

	return s.approve(ctx, request, dataset.ProviderID, contractText)
}

// ProviderApproveFinal accepts the consumer's last proposal. Allowed only
// from COUNTER_FROM_CONSUMER; the already-merged agreed terms stand.
func (s *Service) ProviderApproveFinal(ctx context.Context, providerID, requestID uuid.UUID) (*models.AccessRequest, error) {
	request, dataset, err := s.loadForProvider(ctx, providerID, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != models.RequestStatusCounterFromConsumer {
		return nil, services.NewInvalidStateTransition(string(request.Status),
			string(models.RequestStatusCounterFromConsumer))
	}

	contractText, err := s.resolveContractText(ctx, request, nil)
	if err != nil {
		return nil, err
	}

	return s.approve(ctx, request, dataset.ProviderID, contractText)
}

// ConsumerAcceptCounter accepts the provider's last counter-offer. Allowed
// only from COUNTER_FROM_PROVIDER.
func (s *Service) ConsumerAcceptCounter(ctx context.Context, consumerID, requestID uuid.UUID) (*models.AccessRequest, error) {
	request, err := s.loadForConsumer(ctx, consumerID, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != models.RequestStatusCounterFromProvider {
		return nil, services.NewInvalidStateTransition(string(request.Status),
			string(models.RequestStatusCounterFromProvider))
	}

	dataset, err := s.datasets.GetByID(ctx, request.DatasetID)
	if err != nil {
		return nil, services.WrapInternal("failed to load dataset", err)
	}
	if dataset == nil {
		return nil, services.ErrDatasetNotFound
	}

	contractText, err := s.resolveContractText(ctx, request, nil)
	if err != nil {
		return nil, err
	}

	return s.approve(ctx, request, dataset.ProviderID, contractText)
}

// Reject rejects a request. Allowed only from PENDING.
func (s *Service) Reject(ctx context.Context, providerID, requestID uuid.UUID, comment *string) (*models.AccessRequest, error) {
	request, _, err := s.loadForProvider(ctx, providerID, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != models.RequestStatusPending {
		return nil, services.NewInvalidStateTransition(string(request.Status),
			string(models.RequestStatusPending))
	}

	now := time.Now()
	request.Status = models.RequestStatusRejected
	request.RejectedAt = &now
	if comment != nil {
		request.ProviderComment = comment
	}
	request.UpdatedAt = now

	if err := s.requests.Update(ctx, request); err != nil {
		return nil, services.WrapInternal("failed to update access request", err)
	}

	s.logger.Info("access request rejected",
		zap.String("request_id", requestID.String()))

	return request, nil
}

// Cancel cancels a request. Allowed only from PENDING, by the owning consumer.
func (s *Service) Cancel(ctx context.Context, consumerID, requestID uuid.UUID) (*models.AccessRequest, error) {
	request, err := s.loadForConsumer(ctx, consumerID, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != models.RequestStatusPending {
		return nil, services.NewInvalidStateTransition(string(request.Status),
			string(models.RequestStatusPending))
	}

	request.Status = models.RequestStatusCancelled
	request.UpdatedAt = time.Now()

	if err := s.requests.Update(ctx, request); err != nil {
		return nil, services.WrapInternal("failed to update access request", err)
	}

	s.logger.Info("access request cancelled",
		zap.String("request_id", requestID.String()))

	return request, nil
}

// ListForConsumer retrieves a consumer's requests
func (s *Service) ListForConsumer(ctx context.Context, consumerID uuid.UUID) ([]*models.AccessRequest, error) {
	requests, err := s.requests.ListByConsumer(ctx, consumerID)
	if err != nil {
		return nil, services.WrapInternal("failed to list access requests", err)
	}
	return requests, nil
}

// ListForProvider retrieves requests targeting a provider's datasets
func (s *Service) ListForProvider(ctx context.Context, providerID uuid.UUID) ([]*models.AccessRequest, error) {
	requests, err := s.requests.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, services.WrapInternal("failed to list access requests", err)
	}
	return requests, nil
}

// approve transitions the request into APPROVED and creates its contract as
// one atomic unit. A failure anywhere leaves the request untouched: an
// APPROVED request without a contract must be impossible.
func (s *Service) approve(ctx context.Context, request *models.AccessRequest, providerID uuid.UUID, contractText string) (*models.AccessRequest, error) {
	now := time.Now()
	request.Status = models.RequestStatusApproved
	request.ApprovedAt = &now
	request.UpdatedAt = now

	contract := &models.Contract{
		ID:              uuid.New(),
		AccessRequestID: request.ID,
		DatasetID:       request.DatasetID,
		ProviderID:      providerID,
		ConsumerID:      request.ConsumerID,
		ContractText:    contractText,
		EffectiveFrom:   now,
		EffectiveTo:     nil,
		Status:          models.ContractStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.txManager.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		if err := s.requests.Update(txCtx, request); err != nil {
			return err
		}
		return s.contracts.Create(txCtx, contract)
	})
	if err != nil {
		return nil, services.WrapInternal("failed to approve access request", err)
	}

	s.logger.Info("access request approved",
		zap.String("request_id", request.ID.String()),
		zap.String("contract_id", contract.ID.String()))

	// Remote enforcement sync is best-effort; the contract is locally
	// authoritative either way.
	if _, err := s.connector.SyncContract(ctx, contract); err != nil {
		s.logger.Warn("contract sync to connector failed",
			zap.Error(err),
			zap.String("contract_id", contract.ID.String()))
	}

	return request, nil
}

// resolveContractText picks the contract text: explicit override, else the
// negotiation type's default template, else the fixed fallback.
func (s *Service) resolveContractText(ctx context.Context, request *models.AccessRequest, override *string) (string, error) {
	if override != nil && *override != "" {
		return *override, nil
	}

	if request.NegotiationTypeID != nil {
		nt, err := s.negotiationTypes.GetByID(ctx, *request.NegotiationTypeID)
		if err != nil {
			return "", services.WrapInternal("failed to load negotiation type", err)
		}
		if nt != nil && nt.DefaultContractTemplate != "" {
			return nt.DefaultContractTemplate, nil
		}
	}

	return defaultContractTemplate, nil
}

// loadForProvider loads the request and its dataset, verifying the caller
// owns the dataset
func (s *Service) loadForProvider(ctx context.Context, providerID, requestID uuid.UUID) (*models.AccessRequest, *models.Dataset, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, services.WrapInternal("failed to load access request", err)
	}
	if request == nil {
		return nil, nil, services.ErrAccessRequestNotFound
	}

	dataset, err := s.datasets.GetByID(ctx, request.DatasetID)
	if err != nil {
		return nil, nil, services.WrapInternal("failed to load dataset", err)
	}
	if dataset == nil {
		return nil, nil, services.ErrDatasetNotFound
	}

	if dataset.ProviderID != providerID {
		return nil, nil, services.ErrNotDatasetProvider
	}

	return request, dataset, nil
}

// loadForConsumer loads the request, verifying the caller owns it
func (s *Service) loadForConsumer(ctx context.Context, consumerID, requestID uuid.UUID) (*models.AccessRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, services.WrapInternal("failed to load access request", err)
	}
	if request == nil {
		return nil, services.ErrAccessRequestNotFound
	}

	if request.ConsumerID != consumerID {
		return nil, services.ErrNotRequestConsumer
	}

	return request, nil
}

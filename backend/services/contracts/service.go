// Package contracts manages the post-approval lifecycle of contracts:
// listing, revocation, and attaching ODRL usage policies.
package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"github.com/upb/dataspace-control-plane/backend/services"
	"github.com/upb/dataspace-control-plane/backend/services/connector"
	"go.uber.org/zap"
)

// Service implements contract lifecycle operations
type Service struct {
	contracts repositories.ContractRepository
	connector connector.Connector
	logger    *zap.Logger
}

// NewService creates a new contracts Service instance
func NewService(contracts repositories.ContractRepository, conn connector.Connector, logger *zap.Logger) *Service {
	return &Service{
		contracts: contracts,
		connector: conn,
		logger:    logger,
	}
}

// ListForConsumer retrieves a consumer's contracts
func (s *Service) ListForConsumer(ctx context.Context, consumerID uuid.UUID) ([]*models.Contract, error) {
	contracts, err := s.contracts.ListByConsumer(ctx, consumerID)
	if err != nil {
		return nil, services.WrapInternal("failed to list contracts", err)
	}
	return contracts, nil
}

// ListForProvider retrieves a provider's contracts
func (s *Service) ListForProvider(ctx context.Context, providerID uuid.UUID) ([]*models.Contract, error) {
	contracts, err := s.contracts.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, services.WrapInternal("failed to list contracts", err)
	}
	return contracts, nil
}

// GetByID retrieves a contract visible to the given principal. Consumers see
// their own contracts, providers those covering their datasets, operators all.
func (s *Service) GetByID(ctx context.Context, principal models.Principal, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.load(ctx, contractID)
	if err != nil {
		return nil, err
	}

	if principal.Role != models.RoleOperator &&
		contract.ConsumerID != principal.ID &&
		contract.ProviderID != principal.ID {
		return nil, services.ErrContractNotFound
	}

	return contract, nil
}

// Revoke marks a contract as revoked. The local status change is
// authoritative; propagation to the enforcement plane is best-effort.
// Only the contract's provider or an operator may revoke.
func (s *Service) Revoke(ctx context.Context, principal models.Principal, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.load(ctx, contractID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeProvider(principal, contract); err != nil {
		return nil, err
	}

	if contract.Status != models.ContractStatusActive {
		return nil, services.ErrContractNotActive
	}

	contract.Status = models.ContractStatusRevoked
	contract.UpdatedAt = time.Now()

	if err := s.contracts.Update(ctx, contract); err != nil {
		return nil, services.WrapInternal("failed to revoke contract", err)
	}

	s.logger.Info("contract revoked",
		zap.String("contract_id", contractID.String()),
		zap.String("revoked_by", principal.ID.String()))

	if _, err := s.connector.RevokeContract(ctx, contract); err != nil {
		s.logger.Warn("contract revocation sync to connector failed",
			zap.Error(err),
			zap.String("contract_id", contractID.String()))
	}

	return contract, nil
}

// SetPolicy attaches or replaces the ODRL usage policy of a contract. Only
// the contract's provider or an operator may change the policy.
func (s *Service) SetPolicy(ctx context.Context, principal models.Principal, contractID uuid.UUID, policy *models.ODRLPolicy) (*models.Contract, error) {
	contract, err := s.load(ctx, contractID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeProvider(principal, contract); err != nil {
		return nil, err
	}

	contract.Policy = policy
	contract.UpdatedAt = time.Now()

	if err := s.contracts.Update(ctx, contract); err != nil {
		return nil, services.WrapInternal("failed to update contract policy", err)
	}

	s.logger.Info("contract policy updated",
		zap.String("contract_id", contractID.String()),
		zap.Bool("policy_attached", policy != nil))

	if _, err := s.connector.SyncContract(ctx, contract); err != nil {
		s.logger.Warn("contract sync to connector failed",
			zap.Error(err),
			zap.String("contract_id", contractID.String()))
	}

	return contract, nil
}

func (s *Service) load(ctx context.Context, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, services.WrapInternal("failed to load contract", err)
	}
	if contract == nil {
		return nil, services.ErrContractNotFound
	}
	return contract, nil
}

func (s *Service) authorizeProvider(principal models.Principal, contract *models.Contract) error {
	if principal.Role == models.RoleOperator {
		return nil
	}
	if contract.ProviderID != principal.ID {
		return services.ErrNotContractProvider
	}
	return nil
}

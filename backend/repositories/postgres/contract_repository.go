package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"go.uber.org/zap"
)

// ContractRepository implements the repositories.ContractRepository interface
type ContractRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewContractRepository creates a new contract repository
func NewContractRepository(db *DB, logger *zap.Logger) repositories.ContractRepository {
	return &ContractRepository{
		db:     db,
		logger: logger,
	}
}

const contractColumns = `
	id, access_request_id, dataset_id, provider_id, consumer_id,
	contract_text, effective_from, effective_to, status, odrl_policy,
	created_at, updated_at
`

// Create creates a new contract
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	policyJSON, err := marshalPolicy(contract.Policy)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		contract.ID,
		contract.AccessRequestID,
		contract.DatasetID,
		contract.ProviderID,
		contract.ConsumerID,
		contract.ContractText,
		contract.EffectiveFrom,
		contract.EffectiveTo,
		contract.Status,
		policyJSON,
		contract.CreatedAt,
		contract.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create contract: %w", err)
	}

	r.logger.Debug("contract created",
		zap.String("id", contract.ID.String()),
		zap.String("access_request_id", contract.AccessRequestID.String()))
	return nil
}

// GetByID retrieves a contract by ID
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	contract, err := scanContract(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}

	return contract, nil
}

// Update persists contract status and policy changes
func (r *ContractRepository) Update(ctx context.Context, contract *models.Contract) error {
	policyJSON, err := marshalPolicy(contract.Policy)
	if err != nil {
		return err
	}

	query := `
		UPDATE contracts
		SET status = $2, odrl_policy = $3, effective_to = $4, updated_at = $5
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		contract.ID,
		contract.Status,
		policyJSON,
		contract.EffectiveTo,
		contract.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("contract not found: %s", contract.ID)
	}

	r.logger.Debug("contract updated",
		zap.String("id", contract.ID.String()),
		zap.String("status", string(contract.Status)))
	return nil
}

// FindLatestByConsumerAndDataset retrieves the most recently updated contract
// linking the consumer to the dataset, with its access request joined
func (r *ContractRepository) FindLatestByConsumerAndDataset(ctx context.Context, consumerID, datasetID uuid.UUID) (*models.Contract, error) {
	query := `
		SELECT c.id, c.access_request_id, c.dataset_id, c.provider_id, c.consumer_id,
			c.contract_text, c.effective_from, c.effective_to, c.status, c.odrl_policy,
			c.created_at, c.updated_at,
			ar.status, ar.requested_purpose, ar.agreed_purpose
		FROM contracts c
		JOIN access_requests ar ON ar.id = c.access_request_id
		WHERE c.consumer_id = $1 AND c.dataset_id = $2
		ORDER BY c.updated_at DESC
		LIMIT 1
	`

	executor := GetExecutor(ctx, r.db)

	contract := &models.Contract{}
	request := &models.AccessRequest{}
	var policyJSON []byte

	err := executor.QueryRowContext(ctx, query, consumerID, datasetID).Scan(
		&contract.ID,
		&contract.AccessRequestID,
		&contract.DatasetID,
		&contract.ProviderID,
		&contract.ConsumerID,
		&contract.ContractText,
		&contract.EffectiveFrom,
		&contract.EffectiveTo,
		&contract.Status,
		&policyJSON,
		&contract.CreatedAt,
		&contract.UpdatedAt,
		&request.Status,
		&request.RequestedPurpose,
		&request.AgreedPurpose,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find contract: %w", err)
	}

	if contract.Policy, err = unmarshalPolicy(policyJSON); err != nil {
		return nil, err
	}

	request.ID = contract.AccessRequestID
	request.DatasetID = contract.DatasetID
	request.ConsumerID = contract.ConsumerID
	contract.AccessRequest = request

	return contract, nil
}

// ListByConsumer retrieves a consumer's contracts, most recent first
func (r *ContractRepository) ListByConsumer(ctx context.Context, consumerID uuid.UUID) ([]*models.Contract, error) {
	return r.list(ctx, `consumer_id`, consumerID)
}

// ListByProvider retrieves a provider's contracts, most recent first
func (r *ContractRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.Contract, error) {
	return r.list(ctx, `provider_id`, providerID)
}

func (r *ContractRepository) list(ctx context.Context, column string, id uuid.UUID) ([]*models.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE ` + column + ` = $1 ORDER BY created_at DESC`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	contracts := make([]*models.Contract, 0)
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contracts: %w", err)
	}
	return contracts, nil
}

func scanContract(row rowScanner) (*models.Contract, error) {
	contract := &models.Contract{}
	var policyJSON []byte

	err := row.Scan(
		&contract.ID,
		&contract.AccessRequestID,
		&contract.DatasetID,
		&contract.ProviderID,
		&contract.ConsumerID,
		&contract.ContractText,
		&contract.EffectiveFrom,
		&contract.EffectiveTo,
		&contract.Status,
		&policyJSON,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if contract.Policy, err = unmarshalPolicy(policyJSON); err != nil {
		return nil, err
	}
	return contract, nil
}

func marshalPolicy(policy *models.ODRLPolicy) ([]byte, error) {
	if policy == nil {
		return nil, nil
	}
	data, err := json.Marshal(policy)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal policy: %w", err)
	}
	return data, nil
}

func unmarshalPolicy(data []byte) (*models.ODRLPolicy, error) {
	if len(data) == 0 {
		return nil, nil
	}
	policy := &models.ODRLPolicy{}
	if err := json.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy: %w", err)
	}
	return policy, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"go.uber.org/zap"
)

// NegotiationTypeRepository implements the repositories.NegotiationTypeRepository interface
type NegotiationTypeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewNegotiationTypeRepository creates a new negotiation type repository
func NewNegotiationTypeRepository(db *DB, logger *zap.Logger) repositories.NegotiationTypeRepository {
	return &NegotiationTypeRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a negotiation type by ID
func (r *NegotiationTypeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.NegotiationType, error) {
	query := `
		SELECT id, name, description, default_contract_template, created_at
		FROM negotiation_types
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	nt := &models.NegotiationType{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&nt.ID,
		&nt.Name,
		&nt.Description,
		&nt.DefaultContractTemplate,
		&nt.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get negotiation type: %w", err)
	}

	return nt, nil
}

// List retrieves all negotiation types, most recent first
func (r *NegotiationTypeRepository) List(ctx context.Context) ([]*models.NegotiationType, error) {
	query := `
		SELECT id, name, description, default_contract_template, created_at
		FROM negotiation_types
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list negotiation types: %w", err)
	}
	defer rows.Close()

	types := make([]*models.NegotiationType, 0)
	for rows.Next() {
		nt := &models.NegotiationType{}
		if err := rows.Scan(&nt.ID, &nt.Name, &nt.Description, &nt.DefaultContractTemplate, &nt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan negotiation type: %w", err)
		}
		types = append(types, nt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate negotiation types: %w", err)
	}

	return types, nil
}

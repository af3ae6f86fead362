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

// DatasetRepository implements the repositories.DatasetRepository interface
type DatasetRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *DB, logger *zap.Logger) repositories.DatasetRepository {
	return &DatasetRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a dataset by ID
func (r *DatasetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	query := `
		SELECT id, name, provider_id, storage_type, storage_uri, published, blocked, status, created_at, updated_at
		FROM datasets
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	dataset := &models.Dataset{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&dataset.ID,
		&dataset.Name,
		&dataset.ProviderID,
		&dataset.StorageType,
		&dataset.StorageURI,
		&dataset.Published,
		&dataset.Blocked,
		&dataset.Status,
		&dataset.CreatedAt,
		&dataset.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	return dataset, nil
}

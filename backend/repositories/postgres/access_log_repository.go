package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"go.uber.org/zap"
)

// AccessLogRepository implements the repositories.AccessLogRepository
// interface over the append-only access log store
type AccessLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccessLogRepository creates a new access log repository
func NewAccessLogRepository(db *DB, logger *zap.Logger) repositories.AccessLogRepository {
	return &AccessLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a new access log record
func (r *AccessLogRepository) Create(ctx context.Context, log *models.AccessLog) error {
	query := `
		INSERT INTO access_logs (
			id, user_id, dataset_id, contract_id, action, purpose,
			ip_address, user_agent, extra, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.DatasetID,
		log.ContractID,
		log.Action,
		log.Purpose,
		log.IPAddress,
		log.UserAgent,
		[]byte(log.Extra),
		log.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert access log: %w", err)
	}

	r.logger.Debug("access log inserted",
		zap.String("id", log.ID.String()),
		zap.String("action", string(log.Action)))
	return nil
}

// List retrieves access log records matching the filter, newest first.
// Provider scoping joins through datasets since log rows carry no provider ID.
func (r *AccessLogRepository) List(ctx context.Context, filter repositories.AccessLogFilter) ([]*models.AccessLog, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)

	addArg := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.ProviderID != nil {
		addArg("l.dataset_id IN (SELECT id FROM datasets WHERE provider_id = $%d)", *filter.ProviderID)
	}
	if filter.UserID != nil {
		addArg("l.user_id = $%d", *filter.UserID)
	}
	if filter.DatasetID != nil {
		addArg("l.dataset_id = $%d", *filter.DatasetID)
	}
	if filter.From != nil {
		addArg("l.timestamp >= $%d", *filter.From)
	}
	if filter.To != nil {
		addArg("l.timestamp <= $%d", *filter.To)
	}

	query := `
		SELECT l.id, l.user_id, l.dataset_id, l.contract_id, l.action, l.purpose,
			l.ip_address, l.user_agent, l.extra, l.timestamp
		FROM access_logs l
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY l.timestamp DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AccessLog, 0)
	for rows.Next() {
		log := &models.AccessLog{}
		var extra []byte
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.DatasetID,
			&log.ContractID,
			&log.Action,
			&log.Purpose,
			&log.IPAddress,
			&log.UserAgent,
			&extra,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access log: %w", err)
		}
		log.Extra = extra
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access logs: %w", err)
	}

	return logs, nil
}

// Package audit persists dataset access records asynchronously. The gateway
// queues one record per completed consumption attempt; background workers
// drain the queue into the append-only access log store.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"go.uber.org/zap"
)

// Service handles asynchronous access logging and audit queries
type Service struct {
	accessLogs  repositories.AccessLogRepository
	logger      *zap.Logger
	recordChan  chan *models.AccessLog
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the audit Service
type Config struct {
	BufferSize  int // Size of the record buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 5,
	}
}

// NewService creates a new audit Service instance
func NewService(accessLogs repositories.AccessLogRepository, logger *zap.Logger, config Config) *Service {
	return &Service{
		accessLogs:  accessLogs,
		logger:      logger,
		recordChan:  make(chan *models.AccessLog, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Waits for all pending records to be persisted.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_records", len(s.recordChan)))

	// Close the channel; no more records will be accepted
	close(s.recordChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues an access log record without blocking. A full buffer drops
// the record with a warning.
func (s *Service) Record(log *models.AccessLog) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	select {
	case s.recordChan <- log:
		return nil
	default:
		s.logger.Warn("access log buffer full, dropping record",
			zap.String("action", string(log.Action)),
			zap.String("dataset_id", log.DatasetID.String()))
		return fmt.Errorf("access log buffer full")
	}
}

// RecordSync queues an access log record, waiting until it is accepted or
// the context is cancelled. The gateway uses this before releasing data so
// the log stays causally ordered with respect to content delivery.
func (s *Service) RecordSync(ctx context.Context, log *models.AccessLog) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	select {
	case s.recordChan <- log:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker drains the record channel into the store
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for record := range s.recordChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.accessLogs.Create(ctx, record); err != nil {
			s.logger.Error("failed to persist access log",
				zap.Error(err),
				zap.Int("worker_id", id),
				zap.String("record_id", record.ID.String()),
				zap.String("action", string(record.Action)))
		}
		cancel()
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// ListForProvider retrieves access logs for datasets owned by the provider
func (s *Service) ListForProvider(ctx context.Context, providerID uuid.UUID, filter repositories.AccessLogFilter) ([]*models.AccessLog, error) {
	filter.ProviderID = &providerID
	return s.accessLogs.List(ctx, filter)
}

// ListGlobal retrieves access logs across all datasets (operator view)
func (s *Service) ListGlobal(ctx context.Context, filter repositories.AccessLogFilter) ([]*models.AccessLog, error) {
	return s.accessLogs.List(ctx, filter)
}

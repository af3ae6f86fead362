package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
)

// capturingStore collects created records and lets tests block the workers
// to exercise buffer-full behavior.
type capturingStore struct {
	mu      sync.Mutex
	records []*models.AccessLog
	created chan struct{}
	block   chan struct{}
	fail    error

	lastFilter repositories.AccessLogFilter
	listResult []*models.AccessLog
}

func newCapturingStore() *capturingStore {
	return &capturingStore{created: make(chan struct{}, 100)}
}

func (s *capturingStore) Create(ctx context.Context, log *models.AccessLog) error {
	if s.block != nil {
		<-s.block
	}
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	s.records = append(s.records, log)
	s.mu.Unlock()
	s.created <- struct{}{}
	return nil
}

func (s *capturingStore) List(ctx context.Context, filter repositories.AccessLogFilter) ([]*models.AccessLog, error) {
	s.mu.Lock()
	s.lastFilter = filter
	s.mu.Unlock()
	return s.listResult, nil
}

func (s *capturingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func waitFor(t *testing.T, ch chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for record %d of %d", i+1, n)
		}
	}
}

func testRecord() *models.AccessLog {
	return models.NewAccessLog(uuid.New(), uuid.New(), models.AccessActionDownload)
}

func TestService_StartTwice(t *testing.T) {
	svc := NewService(newCapturingStore(), zap.NewNop(), DefaultConfig())

	require.NoError(t, svc.Start())
	defer svc.Stop(time.Second)

	assert.Error(t, svc.Start())
}

func TestService_RecordBeforeStart(t *testing.T) {
	svc := NewService(newCapturingStore(), zap.NewNop(), DefaultConfig())

	assert.Error(t, svc.Record(testRecord()))
	assert.Error(t, svc.RecordSync(context.Background(), testRecord()))
}

func TestService_StopBeforeStart(t *testing.T) {
	svc := NewService(newCapturingStore(), zap.NewNop(), DefaultConfig())

	assert.Error(t, svc.Stop(time.Second))
}

func TestService_RecordPersistedByWorker(t *testing.T) {
	store := newCapturingStore()
	svc := NewService(store, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, svc.Start())
	defer svc.Stop(time.Second)

	rec := testRecord()
	require.NoError(t, svc.Record(rec))

	waitFor(t, store.created, 1)
	assert.Equal(t, rec.ID, store.records[0].ID)
}

func TestService_RecordDropsWhenBufferFull(t *testing.T) {
	store := newCapturingStore()
	store.block = make(chan struct{})
	svc := NewService(store, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})

	require.NoError(t, svc.Start())

	// First record is picked up by the blocked worker, second fills the
	// buffer, third must be dropped without blocking.
	require.NoError(t, svc.Record(testRecord()))

	deadline := time.After(2 * time.Second)
	for {
		if err := svc.Record(testRecord()); err != nil {
			assert.Contains(t, err.Error(), "buffer full")
			break
		}
		select {
		case <-deadline:
			t.Fatal("record never reported a full buffer")
		default:
		}
	}

	close(store.block)
	require.NoError(t, svc.Stop(time.Second))
}

func TestService_RecordSyncHonorsContext(t *testing.T) {
	store := newCapturingStore()
	store.block = make(chan struct{})
	svc := NewService(store, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})

	require.NoError(t, svc.Start())

	// Saturate the worker and the buffer so RecordSync has to wait.
	require.NoError(t, svc.Record(testRecord()))
	for svc.Record(testRecord()) == nil {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := svc.RecordSync(ctx, testRecord())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(store.block)
	require.NoError(t, svc.Stop(time.Second))
}

func TestService_StopDrainsPendingRecords(t *testing.T) {
	store := newCapturingStore()
	svc := NewService(store, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 3})

	require.NoError(t, svc.Start())
	for i := 0; i < 20; i++ {
		require.NoError(t, svc.Record(testRecord()))
	}

	require.NoError(t, svc.Stop(2*time.Second))
	assert.Equal(t, 20, store.count())
}

func TestService_StopTimesOutOnStuckWorker(t *testing.T) {
	store := newCapturingStore()
	store.block = make(chan struct{})
	defer close(store.block)

	svc := NewService(store, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, svc.Start())
	require.NoError(t, svc.Record(testRecord()))

	// Give the worker a moment to pick up the record and block.
	time.Sleep(20 * time.Millisecond)

	err := svc.Stop(50 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestService_WorkerSurvivesStoreFailure(t *testing.T) {
	store := newCapturingStore()
	store.fail = errors.New("connection reset")
	svc := NewService(store, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Record(testRecord()))

	// A failing store must not kill the worker; Stop should still drain.
	require.NoError(t, svc.Stop(time.Second))
}

func TestService_ListForProviderSetsFilter(t *testing.T) {
	store := newCapturingStore()
	store.listResult = []*models.AccessLog{testRecord()}
	svc := NewService(store, zap.NewNop(), DefaultConfig())

	providerID := uuid.New()
	datasetID := uuid.New()
	logs, err := svc.ListForProvider(context.Background(), providerID, repositories.AccessLogFilter{
		DatasetID: &datasetID,
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	require.NotNil(t, store.lastFilter.ProviderID)
	assert.Equal(t, providerID, *store.lastFilter.ProviderID)
	assert.Equal(t, &datasetID, store.lastFilter.DatasetID)
	assert.Equal(t, 10, store.lastFilter.Limit)
}

func TestService_ListGlobalLeavesFilterUntouched(t *testing.T) {
	store := newCapturingStore()
	svc := NewService(store, zap.NewNop(), DefaultConfig())

	_, err := svc.ListGlobal(context.Background(), repositories.AccessLogFilter{Limit: 5})
	require.NoError(t, err)
	assert.Nil(t, store.lastFilter.ProviderID)
	assert.Equal(t, 5, store.lastFilter.Limit)
}

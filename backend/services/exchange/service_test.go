package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/services"
	"github.com/upb/dataspace-control-plane/backend/services/connector"
	"go.uber.org/zap"
)

// MockDatasetRepository is a mock implementation of DatasetRepository
type MockDatasetRepository struct {
	mock.Mock
}

func (m *MockDatasetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	args := m.Called(ctx, id)
	if d := args.Get(0); d != nil {
		return d.(*models.Dataset), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockContractRepository is a mock implementation of ContractRepository
type MockContractRepository struct {
	mock.Mock
}

func (m *MockContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *MockContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*models.Contract), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContractRepository) Update(ctx context.Context, contract *models.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *MockContractRepository) FindLatestByConsumerAndDataset(ctx context.Context, consumerID, datasetID uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, consumerID, datasetID)
	if c := args.Get(0); c != nil {
		return c.(*models.Contract), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContractRepository) ListByConsumer(ctx context.Context, consumerID uuid.UUID) ([]*models.Contract, error) {
	args := m.Called(ctx, consumerID)
	if c := args.Get(0); c != nil {
		return c.([]*models.Contract), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContractRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.Contract, error) {
	args := m.Called(ctx, providerID)
	if c := args.Get(0); c != nil {
		return c.([]*models.Contract), args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingAudit captures audit records in memory
type recordingAudit struct {
	async []*models.AccessLog
	sync  []*models.AccessLog
	fail  error
}

func (r *recordingAudit) Record(log *models.AccessLog) error {
	if r.fail != nil {
		return r.fail
	}
	r.async = append(r.async, log)
	return nil
}

func (r *recordingAudit) RecordSync(ctx context.Context, log *models.AccessLog) error {
	if r.fail != nil {
		return r.fail
	}
	r.sync = append(r.sync, log)
	return nil
}

// MockConnector is a mock implementation of the enforcement connector
type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) SyncContract(ctx context.Context, contract *models.Contract) (*connector.SyncResult, error) {
	args := m.Called(ctx, contract)
	if r := args.Get(0); r != nil {
		return r.(*connector.SyncResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConnector) RevokeContract(ctx context.Context, contract *models.Contract) (*connector.RevokeResult, error) {
	args := m.Called(ctx, contract)
	if r := args.Get(0); r != nil {
		return r.(*connector.RevokeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConnector) RequestDataPlaneAccess(ctx context.Context, req connector.DataPlaneRequest) (*connector.DataPlaneGrant, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*connector.DataPlaneGrant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConnector) Status(ctx context.Context) (*connector.Status, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*connector.Status), args.Error(1)
	}
	return nil, args.Error(1)
}

type gatewayFixture struct {
	datasets  *MockDatasetRepository
	contracts *MockContractRepository
	audit     *recordingAudit
	connector *MockConnector
	gateway   *Gateway

	userID     uuid.UUID
	providerID uuid.UUID
	datasetID  uuid.UUID
	client     ClientInfo
}

func newGatewayFixture(t *testing.T, storageRoot string) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		datasets:   new(MockDatasetRepository),
		contracts:  new(MockContractRepository),
		audit:      &recordingAudit{},
		connector:  new(MockConnector),
		userID:     uuid.New(),
		providerID: uuid.New(),
		datasetID:  uuid.New(),
		client:     ClientInfo{IPAddress: "203.0.113.7", UserAgent: "test-agent"},
	}
	f.gateway = NewGateway(f.datasets, f.contracts, f.audit, f.connector, storageRoot, zap.NewNop())
	return f
}

func (f *gatewayFixture) dataset(storageType models.StorageType, uri string) *models.Dataset {
	return &models.Dataset{
		ID:          f.datasetID,
		Name:        "climate-observations",
		ProviderID:  f.providerID,
		StorageType: storageType,
		StorageURI:  uri,
		Published:   true,
		Status:      models.DatasetStatusActive,
	}
}

func (f *gatewayFixture) contract(policy *models.ODRLPolicy) *models.Contract {
	purpose := "research"
	return &models.Contract{
		ID:              uuid.New(),
		AccessRequestID: uuid.New(),
		DatasetID:       f.datasetID,
		ProviderID:      f.providerID,
		ConsumerID:      f.userID,
		Status:          models.ContractStatusActive,
		EffectiveFrom:   time.Now().Add(-time.Hour),
		Policy:          policy,
		AccessRequest: &models.AccessRequest{
			Status:        models.RequestStatusApproved,
			AgreedPurpose: &purpose,
		},
	}
}

func writeDatasetFile(t *testing.T, root, uri string) {
	t.Helper()
	path := filepath.Join(root, uri)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("id,value\n1,42\n"), 0o644))
}

func TestPrepareDatasetAccess_FileSuccess(t *testing.T) {
	root := t.TempDir()
	f := newGatewayFixture(t, root)
	ctx := context.Background()

	uri := "climate/observations.csv"
	writeDatasetFile(t, root, uri)

	f.datasets.On("GetByID", ctx, f.datasetID).Return(f.dataset(models.StorageTypeFile, uri), nil)
	f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).
		Return(f.contract(nil), nil)

	descriptor, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	require.NoError(t, err)
	assert.Equal(t, AccessModeFile, descriptor.Mode)
	assert.Equal(t, filepath.Join(root, uri), descriptor.FilePath)
	assert.Equal(t, "observations.csv", descriptor.SuggestedFilename)

	require.Len(t, f.audit.async, 1)
	entry := f.audit.async[0]
	assert.Equal(t, models.AccessActionDownload, entry.Action)
	assert.Equal(t, f.userID, entry.UserID)
	assert.Equal(t, "research", *entry.Purpose)
	assert.Equal(t, "203.0.113.7", entry.IPAddress)
}

func TestPrepareDatasetAccess_ExternalAPISuccess(t *testing.T) {
	f := newGatewayFixture(t, t.TempDir())
	ctx := context.Background()

	url := "https://api.example.org/v2/observations"
	grant := &connector.DataPlaneGrant{Mode: connector.ModeLocal, Transport: "DIRECT", Endpoint: url}

	f.datasets.On("GetByID", ctx, f.datasetID).Return(f.dataset(models.StorageTypeExternalAPI, url), nil)
	f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).
		Return(f.contract(nil), nil)
	f.connector.On("RequestDataPlaneAccess", ctx, mock.AnythingOfType("connector.DataPlaneRequest")).
		Return(grant, nil)

	descriptor, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	require.NoError(t, err)
	assert.Equal(t, AccessModeExternalAPI, descriptor.Mode)
	assert.Equal(t, url, descriptor.ExternalURL)
	assert.Equal(t, grant, descriptor.DataPlane)

	require.Len(t, f.audit.async, 1)
	assert.Equal(t, models.AccessActionAPIAccess, f.audit.async[0].Action)
}

func TestPrepareDatasetAccess_DatasetNotFound(t *testing.T) {
	f := newGatewayFixture(t, t.TempDir())
	ctx := context.Background()

	f.datasets.On("GetByID", ctx, f.datasetID).Return(nil, nil)

	_, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	assert.ErrorIs(t, err, services.ErrDatasetNotFound)
	assert.Empty(t, f.audit.sync)
}

func TestPrepareDatasetAccess_NoContract(t *testing.T) {
	f := newGatewayFixture(t, t.TempDir())
	ctx := context.Background()

	f.datasets.On("GetByID", ctx, f.datasetID).Return(f.dataset(models.StorageTypeFile, "x.csv"), nil)
	f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).Return(nil, nil)

	_, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	assert.ErrorIs(t, err, services.ErrNoContract)
	// Failures before policy evaluation leave no audit record.
	assert.Empty(t, f.audit.sync)
	assert.Empty(t, f.audit.async)
}

func TestPrepareDatasetAccess_ContractValidityOrder(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *models.Contract)
		wantErr *services.DomainError
	}{
		{
			"revoked contract",
			func(c *models.Contract) { c.Status = models.ContractStatusRevoked },
			services.ErrContractNotActive,
		},
		{
			"not yet effective",
			func(c *models.Contract) { c.EffectiveFrom = time.Now().Add(time.Hour) },
			services.ErrContractNotEffective,
		},
		{
			"expired",
			func(c *models.Contract) {
				past := time.Now().Add(-time.Minute)
				c.EffectiveTo = &past
			},
			services.ErrContractExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t, t.TempDir())
			ctx := context.Background()

			contract := f.contract(nil)
			tt.mutate(contract)

			f.datasets.On("GetByID", ctx, f.datasetID).Return(f.dataset(models.StorageTypeFile, "x.csv"), nil)
			f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).Return(contract, nil)

			_, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPrepareDatasetAccess_PolicyDenyIsAudited(t *testing.T) {
	f := newGatewayFixture(t, t.TempDir())
	ctx := context.Background()

	policy := &models.ODRLPolicy{
		Permission: []models.ODRLRule{{Action: models.ActionSet{"use"}}},
	}
	contract := f.contract(policy)

	f.datasets.On("GetByID", ctx, f.datasetID).Return(f.dataset(models.StorageTypeFile, "x.csv"), nil)
	f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).Return(contract, nil)

	_, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	require.Error(t, err)
	assert.True(t, services.IsForbiddenError(err))

	require.Len(t, f.audit.sync, 1)
	entry := f.audit.sync[0]
	assert.Equal(t, models.AccessActionPolicyDeny, entry.Action)
	assert.Equal(t, contract.ID, *entry.ContractID)

	var extra map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Extra, &extra))
	assert.Equal(t, false, extra["policyDecision"])
	assert.Equal(t, "download", extra["action"])
	assert.Contains(t, extra["assignee"], "urn:dataspace:user:")
	assert.Contains(t, extra["target"], "urn:dataspace:dataset:")
}

func TestPrepareDatasetAccess_AvailabilityCheckedAfterPolicy(t *testing.T) {
	f := newGatewayFixture(t, t.TempDir())
	ctx := context.Background()

	dataset := f.dataset(models.StorageTypeFile, "x.csv")
	dataset.Blocked = true

	f.datasets.On("GetByID", ctx, f.datasetID).Return(dataset, nil)
	f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).
		Return(f.contract(nil), nil)

	_, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	assert.ErrorIs(t, err, services.ErrDatasetUnavailable)
	// Policy allowed, so the denial is not a POLICY_DENY record.
	assert.Empty(t, f.audit.sync)
	assert.Empty(t, f.audit.async)
}

func TestPrepareDatasetAccess_BlockedDatasetPolicyDenyStillWins(t *testing.T) {
	f := newGatewayFixture(t, t.TempDir())
	ctx := context.Background()

	dataset := f.dataset(models.StorageTypeFile, "x.csv")
	dataset.Blocked = true
	policy := &models.ODRLPolicy{
		Permission: []models.ODRLRule{{Action: models.ActionSet{"use"}}},
	}

	f.datasets.On("GetByID", ctx, f.datasetID).Return(dataset, nil)
	f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).
		Return(f.contract(policy), nil)

	_, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	assert.True(t, services.IsForbiddenError(err))
	assert.NotErrorIs(t, err, services.ErrDatasetUnavailable)
	require.Len(t, f.audit.sync, 1)
}

func TestPrepareDatasetAccess_FileMissingOnDisk(t *testing.T) {
	f := newGatewayFixture(t, t.TempDir())
	ctx := context.Background()

	f.datasets.On("GetByID", ctx, f.datasetID).Return(f.dataset(models.StorageTypeFile, "gone.csv"), nil)
	f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).
		Return(f.contract(nil), nil)

	_, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	assert.ErrorIs(t, err, services.ErrDatasetFileMissing)
}

func TestPrepareDatasetAccess_UnsupportedStorageType(t *testing.T) {
	f := newGatewayFixture(t, t.TempDir())
	ctx := context.Background()

	f.datasets.On("GetByID", ctx, f.datasetID).Return(f.dataset(models.StorageTypeDBView, "reporting.view"), nil)
	f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).
		Return(f.contract(nil), nil)

	_, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	assert.True(t, services.IsUnsupportedStorageError(err))
}

func TestPrepareDatasetAccess_ConnectorFailurePropagates(t *testing.T) {
	f := newGatewayFixture(t, t.TempDir())
	ctx := context.Background()

	f.datasets.On("GetByID", ctx, f.datasetID).
		Return(f.dataset(models.StorageTypeExternalAPI, "https://api.example.org"), nil)
	f.contracts.On("FindLatestByConsumerAndDataset", ctx, f.userID, f.datasetID).
		Return(f.contract(nil), nil)
	f.connector.On("RequestDataPlaneAccess", ctx, mock.AnythingOfType("connector.DataPlaneRequest")).
		Return(nil, services.WrapExternal("connector request failed", errors.New("timeout")))

	_, err := f.gateway.PrepareDatasetAccess(ctx, f.userID, f.datasetID, f.client, AccessContext{})

	assert.True(t, services.IsExternalError(err))
	assert.Empty(t, f.audit.async)
}

func TestResolveAction(t *testing.T) {
	fileDataset := &models.Dataset{StorageType: models.StorageTypeFile}
	apiDataset := &models.Dataset{StorageType: models.StorageTypeExternalAPI}

	assert.Equal(t, "download", resolveAction(fileDataset, ""))
	assert.Equal(t, "use", resolveAction(apiDataset, ""))
	assert.Equal(t, "share", resolveAction(fileDataset, " Share "))
}

func TestResolvePurpose(t *testing.T) {
	agreed := "agreed"
	requested := "requested"
	explicit := "explicit"

	contract := &models.Contract{
		AccessRequest: &models.AccessRequest{
			AgreedPurpose:    &agreed,
			RequestedPurpose: &requested,
		},
	}

	assert.Equal(t, &explicit, resolvePurpose(contract, &explicit))
	assert.Equal(t, &agreed, resolvePurpose(contract, nil))

	contract.AccessRequest.AgreedPurpose = nil
	assert.Equal(t, &requested, resolvePurpose(contract, nil))

	contract.AccessRequest = nil
	assert.Nil(t, resolvePurpose(contract, nil))
}

func TestCheckContractUsable(t *testing.T) {
	now := time.Now()

	assert.ErrorIs(t, checkContractUsable(nil, now), services.ErrNoContract)

	active := &models.Contract{Status: models.ContractStatusActive, EffectiveFrom: now.Add(-time.Hour)}
	assert.NoError(t, checkContractUsable(active, now))

	withEnd := &models.Contract{Status: models.ContractStatusActive, EffectiveFrom: now.Add(-time.Hour)}
	end := now.Add(time.Hour)
	withEnd.EffectiveTo = &end
	assert.NoError(t, checkContractUsable(withEnd, now))
}

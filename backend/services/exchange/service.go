// Package exchange is the access gateway: the single enforcement point every
// dataset consumption attempt must pass through. It validates the contract,
// evaluates the attached ODRL policy, records the audit trail, and resolves
// how the dataset content is delivered.
package exchange

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/repositories"
	"github.com/upb/dataspace-control-plane/backend/services"
	"github.com/upb/dataspace-control-plane/backend/services/connector"
	"github.com/upb/dataspace-control-plane/backend/services/odrl"
	"go.uber.org/zap"
)

// AccessMode tells the HTTP layer how to deliver the dataset content
type AccessMode string

const (
	AccessModeFile        AccessMode = "FILE"
	AccessModeExternalAPI AccessMode = "EXTERNAL_API"
)

// ClientInfo carries the requesting client's network details for auditing
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// AccessContext carries the consumer's stated intent for this attempt
type AccessContext struct {
	// Action overrides the storage-type default ("download" for files,
	// "use" for external APIs) when non-empty.
	Action string

	// Purpose overrides the negotiated purpose when set.
	Purpose *string
}

// AccessDescriptor tells the caller how to serve the authorized content
type AccessDescriptor struct {
	Mode              AccessMode
	Dataset           *models.Dataset
	Contract          *models.Contract
	FilePath          string
	SuggestedFilename string
	ExternalURL       string
	DataPlane         *connector.DataPlaneGrant
}

// AuditRecorder records access log entries. The gateway needs the blocking
// variant: a denial must be durably logged before the caller sees the error.
type AuditRecorder interface {
	Record(log *models.AccessLog) error
	RecordSync(ctx context.Context, log *models.AccessLog) error
}

// Gateway mediates every dataset consumption attempt
type Gateway struct {
	datasets    repositories.DatasetRepository
	contracts   repositories.ContractRepository
	audit       AuditRecorder
	connector   connector.Connector
	storageRoot string
	logger      *zap.Logger
}

// NewGateway creates a new access Gateway instance
func NewGateway(
	datasets repositories.DatasetRepository,
	contracts repositories.ContractRepository,
	audit AuditRecorder,
	conn connector.Connector,
	storageRoot string,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		datasets:    datasets,
		contracts:   contracts,
		audit:       audit,
		connector:   conn,
		storageRoot: storageRoot,
		logger:      logger,
	}
}

// PrepareDatasetAccess runs the full authorization pipeline for one
// consumption attempt and returns a descriptor for delivering the content.
// The order is fixed: dataset lookup, contract lookup, contract validity,
// policy evaluation, dataset availability, storage dispatch. Failures before
// policy evaluation are not audited; a policy denial is audited as
// POLICY_DENY before the error returns.
func (g *Gateway) PrepareDatasetAccess(ctx context.Context, userID, datasetID uuid.UUID, client ClientInfo, access AccessContext) (*AccessDescriptor, error) {
	dataset, err := g.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, services.WrapInternal("failed to load dataset", err)
	}
	if dataset == nil {
		return nil, services.ErrDatasetNotFound
	}

	contract, err := g.contracts.FindLatestByConsumerAndDataset(ctx, userID, datasetID)
	if err != nil {
		return nil, services.WrapInternal("failed to load contract", err)
	}

	now := time.Now()
	if err := checkContractUsable(contract, now); err != nil {
		return nil, err
	}

	action := resolveAction(dataset, access.Action)
	purpose := resolvePurpose(contract, access.Purpose)

	policyCtx := odrl.Context{
		Action:   action,
		Purpose:  derefOrEmpty(purpose),
		Now:      now,
		Assignee: fmt.Sprintf("urn:dataspace:user:%s", userID),
		Assigner: fmt.Sprintf("urn:dataspace:user:%s", contract.ProviderID),
		Target:   fmt.Sprintf("urn:dataspace:dataset:%s", datasetID),
	}

	decision := odrl.Evaluate(contract.Policy, policyCtx)
	if !decision.Allow {
		deny := models.NewAccessLog(userID, datasetID, models.AccessActionPolicyDeny).
			WithContract(contract.ID).
			WithPurpose(purpose).
			WithClient(client.IPAddress, client.UserAgent).
			WithExtra(map[string]interface{}{
				"note":            "access blocked by policy evaluation",
				"policyDecision":  false,
				"reason":          decision.Reason,
				"matchedRuleType": decision.MatchedRuleType,
				"action":          action,
				"assignee":        policyCtx.Assignee,
				"assigner":        policyCtx.Assigner,
				"target":          policyCtx.Target,
			})
		if auditErr := g.audit.RecordSync(ctx, deny); auditErr != nil {
			g.logger.Error("failed to record policy denial",
				zap.Error(auditErr),
				zap.String("dataset_id", datasetID.String()))
		}
		g.logger.Info("access denied by policy",
			zap.String("dataset_id", datasetID.String()),
			zap.String("user_id", userID.String()),
			zap.String("reason", decision.Reason))
		return nil, services.NewPolicyDenied(decision.Reason)
	}

	// Availability is checked after the policy so a blocked dataset does not
	// leak a different error to consumers the policy would have denied anyway.
	if !dataset.Available() {
		return nil, services.ErrDatasetUnavailable
	}

	switch dataset.StorageType {
	case models.StorageTypeFile:
		return g.prepareFileAccess(ctx, dataset, contract, userID, purpose, client)
	case models.StorageTypeExternalAPI:
		return g.prepareExternalAccess(ctx, dataset, contract, userID, purpose, action, client)
	default:
		return nil, services.NewUnsupportedStorageType(string(dataset.StorageType))
	}
}

func (g *Gateway) prepareFileAccess(ctx context.Context, dataset *models.Dataset, contract *models.Contract, userID uuid.UUID, purpose *string, client ClientInfo) (*AccessDescriptor, error) {
	if dataset.StorageURI == "" {
		return nil, services.ErrMissingStorageURI
	}

	path := filepath.Join(g.storageRoot, dataset.StorageURI)
	if _, err := os.Stat(path); err != nil {
		g.logger.Error("dataset file missing on disk",
			zap.String("dataset_id", dataset.ID.String()),
			zap.String("path", path))
		return nil, services.ErrDatasetFileMissing
	}

	g.recordGranted(dataset, contract, userID, models.AccessActionDownload, purpose, client)

	return &AccessDescriptor{
		Mode:              AccessModeFile,
		Dataset:           dataset,
		Contract:          contract,
		FilePath:          path,
		SuggestedFilename: filepath.Base(dataset.StorageURI),
	}, nil
}

func (g *Gateway) prepareExternalAccess(ctx context.Context, dataset *models.Dataset, contract *models.Contract, userID uuid.UUID, purpose *string, action string, client ClientInfo) (*AccessDescriptor, error) {
	if dataset.StorageURI == "" {
		return nil, services.ErrMissingStorageURI
	}

	grant, err := g.connector.RequestDataPlaneAccess(ctx, connector.DataPlaneRequest{
		Contract:   contract,
		Dataset:    dataset,
		ConsumerID: userID,
		Purpose:    purpose,
		Action:     action,
	})
	if err != nil {
		return nil, err
	}

	g.recordGranted(dataset, contract, userID, models.AccessActionAPIAccess, purpose, client)

	return &AccessDescriptor{
		Mode:        AccessModeExternalAPI,
		Dataset:     dataset,
		Contract:    contract,
		ExternalURL: dataset.StorageURI,
		DataPlane:   grant,
	}, nil
}

// recordGranted appends the success audit record. Enqueueing is non-blocking;
// a full buffer drops the record with a log line rather than delaying delivery.
func (g *Gateway) recordGranted(dataset *models.Dataset, contract *models.Contract, userID uuid.UUID, action models.AccessAction, purpose *string, client ClientInfo) {
	entry := models.NewAccessLog(userID, dataset.ID, action).
		WithContract(contract.ID).
		WithPurpose(purpose).
		WithClient(client.IPAddress, client.UserAgent)
	if err := g.audit.Record(entry); err != nil {
		g.logger.Warn("failed to enqueue access log",
			zap.Error(err),
			zap.String("dataset_id", dataset.ID.String()))
	}
}

// resolveAction picks the policy action: the explicit request wins, otherwise
// the storage type's default verb.
func resolveAction(dataset *models.Dataset, explicit string) string {
	if explicit != "" {
		return models.NormalizeAction(explicit)
	}
	if dataset.StorageType == models.StorageTypeExternalAPI {
		return "use"
	}
	return "download"
}

// resolvePurpose picks the purpose the policy is evaluated against: the
// explicit request, else the agreed term, else the originally requested one.
func resolvePurpose(contract *models.Contract, explicit *string) *string {
	if explicit != nil {
		return explicit
	}
	if contract.AccessRequest != nil {
		if contract.AccessRequest.AgreedPurpose != nil {
			return contract.AccessRequest.AgreedPurpose
		}
		return contract.AccessRequest.RequestedPurpose
	}
	return nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

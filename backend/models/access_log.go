package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AccessAction represents the type of consumption attempt being logged
type AccessAction string

const (
	AccessActionDownload   AccessAction = "DOWNLOAD"
	AccessActionAPIAccess  AccessAction = "API_ACCESS"
	AccessActionPolicyDeny AccessAction = "POLICY_DENY"
)

// AccessLog represents one audit record for a dataset consumption attempt.
// Records are append-only; the control plane never mutates or deletes them.
type AccessLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	DatasetID  uuid.UUID       `json:"dataset_id" db:"dataset_id"`
	ContractID *uuid.UUID      `json:"contract_id,omitempty" db:"contract_id"`
	Action     AccessAction    `json:"action" db:"action"`
	Purpose    *string         `json:"purpose,omitempty" db:"purpose"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	Extra      json.RawMessage `json:"extra,omitempty" db:"extra"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// NewAccessLog creates a new AccessLog entry
func NewAccessLog(userID, datasetID uuid.UUID, action AccessAction) *AccessLog {
	return &AccessLog{
		ID:        uuid.New(),
		UserID:    userID,
		DatasetID: datasetID,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// WithContract sets the contract ID
func (l *AccessLog) WithContract(contractID uuid.UUID) *AccessLog {
	l.ContractID = &contractID
	return l
}

// WithPurpose sets the resolved purpose
func (l *AccessLog) WithPurpose(purpose *string) *AccessLog {
	l.Purpose = purpose
	return l
}

// WithClient sets the client network details
func (l *AccessLog) WithClient(ipAddress, userAgent string) *AccessLog {
	l.IPAddress = ipAddress
	l.UserAgent = userAgent
	return l
}

// WithExtra attaches the structured diagnostic payload. Marshal failures leave
// Extra nil; diagnostics are best-effort.
func (l *AccessLog) WithExtra(extra interface{}) *AccessLog {
	if extra == nil {
		return l
	}
	if raw, err := json.Marshal(extra); err == nil {
		l.Extra = raw
	}
	return l
}

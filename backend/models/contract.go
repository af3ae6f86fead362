package models

import (
	"time"

	"github.com/google/uuid"
)

// ContractStatus represents the lifecycle state of a contract
type ContractStatus string

const (
	ContractStatusActive  ContractStatus = "ACTIVE"
	ContractStatusRevoked ContractStatus = "REVOKED"
	ContractStatusExpired ContractStatus = "EXPIRED"
)

// Contract represents the agreement materialized when an access request is
// approved. Exactly one contract exists per approved request; it is created
// atomically with the request's transition into APPROVED. Only status and the
// attached usage policy may change afterwards.
type Contract struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	AccessRequestID uuid.UUID      `json:"access_request_id" db:"access_request_id"`
	DatasetID       uuid.UUID      `json:"dataset_id" db:"dataset_id"`
	ProviderID      uuid.UUID      `json:"provider_id" db:"provider_id"`
	ConsumerID      uuid.UUID      `json:"consumer_id" db:"consumer_id"`
	ContractText    string         `json:"contract_text" db:"contract_text"`
	EffectiveFrom   time.Time      `json:"effective_from" db:"effective_from"`
	EffectiveTo     *time.Time     `json:"effective_to,omitempty" db:"effective_to"`
	Status          ContractStatus `json:"status" db:"status"`
	Policy          *ODRLPolicy    `json:"odrl_policy,omitempty" db:"odrl_policy"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`

	// AccessRequest is the issuing request, populated by repository joins that
	// need the negotiated terms (e.g. purpose resolution during access checks).
	AccessRequest *AccessRequest `json:"access_request,omitempty" db:"-"`
}

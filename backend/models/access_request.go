package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessRequestStatus represents the negotiation state of an access request
type AccessRequestStatus string

const (
	RequestStatusPending             AccessRequestStatus = "PENDING"
	RequestStatusCounterFromProvider AccessRequestStatus = "COUNTER_FROM_PROVIDER"
	RequestStatusCounterFromConsumer AccessRequestStatus = "COUNTER_FROM_CONSUMER"
	RequestStatusApproved            AccessRequestStatus = "APPROVED"
	RequestStatusRejected            AccessRequestStatus = "REJECTED"
	RequestStatusCancelled           AccessRequestStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions
func (s AccessRequestStatus) Terminal() bool {
	switch s {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled:
		return true
	}
	return false
}

// AccessRequest represents a consumer's request to use a dataset, carried
// through the negotiation between consumer and provider. Requests are never
// deleted; they only reach a terminal status.
type AccessRequest struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	DatasetID         uuid.UUID           `json:"dataset_id" db:"dataset_id"`
	ConsumerID        uuid.UUID           `json:"consumer_id" db:"consumer_id"`
	NegotiationTypeID *uuid.UUID          `json:"negotiation_type_id,omitempty" db:"negotiation_type_id"`
	Status            AccessRequestStatus `json:"status" db:"status"`

	RequestedPurpose  *string `json:"requested_purpose,omitempty" db:"requested_purpose"`
	RequestedDuration *string `json:"requested_duration,omitempty" db:"requested_duration"`
	RequestedScope    *string `json:"requested_scope,omitempty" db:"requested_scope"`

	// Agreed terms stay nil until a counter-offer or approval sets them and are
	// frozen once the request reaches APPROVED.
	AgreedPurpose  *string `json:"agreed_purpose,omitempty" db:"agreed_purpose"`
	AgreedDuration *string `json:"agreed_duration,omitempty" db:"agreed_duration"`
	AgreedScope    *string `json:"agreed_scope,omitempty" db:"agreed_scope"`

	ProviderComment *string `json:"provider_comment,omitempty" db:"provider_comment"`
	ConsumerComment *string `json:"consumer_comment,omitempty" db:"consumer_comment"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	RejectedAt *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
}

// NewAccessRequest creates a new AccessRequest in the initial PENDING state
func NewAccessRequest(consumerID, datasetID uuid.UUID) *AccessRequest {
	now := time.Now()
	return &AccessRequest{
		ID:         uuid.New(),
		DatasetID:  datasetID,
		ConsumerID: consumerID,
		Status:     RequestStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

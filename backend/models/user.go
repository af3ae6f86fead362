package models

import "github.com/google/uuid"

// Role represents the dataspace role of an authenticated user
type Role string

const (
	RoleConsumer Role = "CONSUMER"
	RoleProvider Role = "PROVIDER"
	RoleOperator Role = "OPERATOR"
)

// Principal is the authenticated identity attached to every request. Token
// issuance and verification happen upstream; the control plane receives the
// already-authenticated user as input.
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Role  Role      `json:"role"`
	Email string    `json:"email,omitempty"`
}

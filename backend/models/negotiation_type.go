package models

import (
	"time"

	"github.com/google/uuid"
)

// NegotiationType categorizes negotiations and supplies the default contract
// text used when an approval carries no explicit override.
type NegotiationType struct {
	ID                      uuid.UUID `json:"id" db:"id"`
	Name                    string    `json:"name" db:"name"`
	Description             *string   `json:"description,omitempty" db:"description"`
	DefaultContractTemplate string    `json:"default_contract_template" db:"default_contract_template"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
}

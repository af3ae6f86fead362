package exchange

import (
	"time"

	"github.com/upb/dataspace-control-plane/backend/models"
	"github.com/upb/dataspace-control-plane/backend/services"
)

// checkContractUsable verifies that a contract authorizes access right now.
// The checks run in a fixed order so the caller's error is deterministic:
// existence, status, effective window start, effective window end.
func checkContractUsable(contract *models.Contract, now time.Time) error {
	if contract == nil {
		return services.ErrNoContract
	}
	if contract.Status != models.ContractStatusActive {
		return services.ErrContractNotActive
	}
	if now.Before(contract.EffectiveFrom) {
		return services.ErrContractNotEffective
	}
	if contract.EffectiveTo != nil && now.After(*contract.EffectiveTo) {
		return services.ErrContractExpired
	}
	return nil
}

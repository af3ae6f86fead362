package negotiation

import "github.com/upb/dataspace-control-plane/backend/models"

// Terms carries the negotiable fields of an offer or counter-offer. Nil
// fields mean "no change proposed" for that field.
type Terms struct {
	Purpose  *string
	Duration *string
	Scope    *string
}

// resolveTerm implements the three-tier resolution used by every negotiation
// step: an explicitly proposed value wins, else the previously agreed value
// carries over, else the originally requested value applies.
func resolveTerm(explicit, agreed, requested *string) *string {
	if explicit != nil {
		return explicit
	}
	if agreed != nil {
		return agreed
	}
	return requested
}

// applyTerms resolves every negotiable field of the request against the
// proposed terms and writes the results into the agreed fields.
func applyTerms(request *models.AccessRequest, terms Terms) {
	request.AgreedPurpose = resolveTerm(terms.Purpose, request.AgreedPurpose, request.RequestedPurpose)
	request.AgreedDuration = resolveTerm(terms.Duration, request.AgreedDuration, request.RequestedDuration)
	request.AgreedScope = resolveTerm(terms.Scope, request.AgreedScope, request.RequestedScope)
}

// Package audit contains the append-only audit log written for every
// recorded decision.
package audit

import (
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// ActionAccessRequest is the action recorded for gateway access decisions.
const ActionAccessRequest = "ACCESS_REQUEST"

// Keys of the Details payload written for access decisions.
const (
	DetailPolicyID         = "policyId"
	DetailGatewayID        = "gatewayId"
	DetailCountry          = "country"
	DetailDeviceTrustLevel = "deviceTrustLevel"
)

// Log is one audit entry. Entries outlive the sessions they describe.
type Log struct {
	// ID is the unique identifier. IDs sort in creation order.
	ID string
	// OrgID is the owning organization.
	OrgID tenant.OrgID
	// UserID is the subject, when known.
	UserID string
	// Action names what happened (for example ACCESS_REQUEST).
	Action string
	// Resource is the target, when applicable.
	Resource string
	// Status is the outcome, the decision for access requests.
	Status string
	// Details is a free-form JSON object.
	Details map[string]any
	// CreatedAt is when the entry was written (UTC).
	CreatedAt time.Time
}

// AccessDetails builds the Details payload of an access decision.
// Empty values are kept so every entry has the same shape.
func AccessDetails(policyID, gatewayID, country, deviceTrustLevel string) map[string]any {
	return map[string]any{
		DetailPolicyID:         policyID,
		DetailGatewayID:        gatewayID,
		DetailCountry:          country,
		DetailDeviceTrustLevel: deviceTrustLevel,
	}
}

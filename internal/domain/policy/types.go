// Package policy contains the domain types for attribute-based access
// policies and the pure evaluation that turns them into decisions.
package policy

import (
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Effect is the verdict attached to a policy and the decision of an evaluation.
type Effect string

const (
	// EffectAllow permits the access request.
	EffectAllow Effect = "ALLOW"
	// EffectDeny blocks the access request.
	EffectDeny Effect = "DENY"
)

// Valid reports whether e is ALLOW or DENY.
func (e Effect) Valid() bool { return e == EffectAllow || e == EffectDeny }

// TrustLevel is the posture tier a gateway reports for the requesting device.
type TrustLevel string

const (
	TrustHigh      TrustLevel = "HIGH"
	TrustMedium    TrustLevel = "MEDIUM"
	TrustLow       TrustLevel = "LOW"
	TrustUntrusted TrustLevel = "UNTRUSTED"
)

// Valid reports whether t is one of the four known tiers.
func (t TrustLevel) Valid() bool {
	switch t {
	case TrustHigh, TrustMedium, TrustLow, TrustUntrusted:
		return true
	}
	return false
}

// Reasons reported by Evaluate.
const (
	ReasonNoMatch       = "No matching policy found"
	reasonMatchedPrefix = "Matched policy: "
)

// TimeWindow restricts a policy to a same-day wall-clock range.
//
// Start and End are zero-padded 24h "HH:mm" strings compared lexically, so a
// window whose Start is after its End (for example 22:00-06:00) never
// matches. Cross-midnight windows are not supported.
type TimeWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
	// Timezone is an optional IANA zone name selecting the wall clock the
	// window is read in. Empty means UTC, not the server's local zone; set
	// it explicitly for windows written against local office hours.
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// Conditions are the attribute constraints of a policy. An empty dimension
// places no constraint. Dimensions combine with AND, set members with OR.
// Conditions are persisted as a JSON document.
type Conditions struct {
	Roles             []string     `json:"roles,omitempty" yaml:"roles,omitempty"`
	DeviceTrustLevels []TrustLevel `json:"deviceTrustLevels,omitempty" yaml:"deviceTrustLevels,omitempty"`
	Countries         []string     `json:"countries,omitempty" yaml:"countries,omitempty"`
	// Resources match when the request resource contains a pattern as a
	// substring or a pattern is the literal "*".
	Resources  []string    `json:"resources,omitempty" yaml:"resources,omitempty"`
	TimeWindow *TimeWindow `json:"timeWindow,omitempty" yaml:"timeWindow,omitempty"`
}

// Policy is an organization-scoped access rule.
type Policy struct {
	// ID is the unique identifier.
	ID string
	// OrgID is the owning organization.
	OrgID tenant.OrgID
	// Name is a human-readable name, reported in decision reasons.
	Name string
	// Priority is a precedence weight. Higher values are evaluated first;
	// equal priorities keep store (insertion) order.
	Priority int
	// Conditions must all hold for the policy to match.
	Conditions Conditions
	// Effect is the decision returned when the policy matches.
	Effect Effect
	// Description provides additional context.
	Description string
	// CreatedAt is when the policy was created (UTC).
	CreatedAt time.Time
	// UpdatedAt is when the policy was last modified (UTC).
	UpdatedAt time.Time
}

// AccessRequest is the attribute set a gateway submits for one access attempt.
type AccessRequest struct {
	UserID           string
	UserRole         string
	DeviceTrustLevel TrustLevel
	Country          string
	Resource         string
	// Action is optional and not used for matching.
	Action string
}

// Result is the outcome of evaluating an AccessRequest.
type Result struct {
	// Decision is ALLOW or DENY.
	Decision Effect
	// MatchedPolicyIDs holds the winning policy ID, or nothing on default deny.
	MatchedPolicyIDs []string
	// Reason is a human-readable explanation.
	Reason string
}

// Matched reports whether a policy produced the decision.
func (r Result) Matched() bool { return len(r.MatchedPolicyIDs) > 0 }

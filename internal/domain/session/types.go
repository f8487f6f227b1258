// Package session contains the session and policy-hit records that
// correlate decisions for one user interaction.
package session

import (
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/audit"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusActive is set when the session is created.
	StatusActive Status = "ACTIVE"
	// StatusEnded is set by the first EndSession call.
	StatusEnded Status = "ENDED"
)

// Session groups the policy hits of one user/gateway interaction window.
type Session struct {
	// ID is the unique identifier. IDs sort in creation order.
	ID string
	// OrgID is the owning organization.
	OrgID tenant.OrgID
	// UserID is the subject.
	UserID string
	// GatewayID is the gateway that reported the first decision, if any.
	GatewayID string
	// StartedAt is when the session was created (UTC).
	StartedAt time.Time
	// EndedAt is set when the session ends.
	EndedAt *time.Time
	// Status is ACTIVE or ENDED.
	Status Status
}

// PolicyHit records one decision within a session.
type PolicyHit struct {
	ID               string
	SessionID        string
	PolicyID         string
	Decision         string
	Resource         string
	Country          string
	DeviceTrustLevel string
	HitAt            time.Time
}

// Recording is the unit of work persisted for one decision. The store writes
// NewSession (when set), Hit and Audit together or not at all.
type Recording struct {
	// OrgID is the tenant every record belongs to.
	OrgID tenant.OrgID
	// NewSession is the session to create. When nil, Hit.SessionID must
	// reference an existing session of OrgID.
	NewSession *Session
	Hit        PolicyHit
	Audit      audit.Log
}

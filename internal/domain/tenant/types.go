// Package tenant contains the organization and gateway domain types that
// partition every other record in the system.
package tenant

import (
	"strings"
	"time"
)

// OrgID identifies an organization. Every store and cache call takes one
// explicitly; nothing infers the tenant from ambient state.
type OrgID string

// String returns the raw identifier.
func (id OrgID) String() string { return string(id) }

// IsZero reports whether id is empty.
func (id OrgID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// Role is the administrative role carried by operator tokens.
type Role string

const (
	// RoleSuperAdmin may operate on any organization.
	RoleSuperAdmin Role = "SUPER_ADMIN"
	// RoleOrgAdmin manages a single organization.
	RoleOrgAdmin Role = "ORG_ADMIN"
	// RoleSecAnalyst reads sessions and audit logs of a single organization.
	RoleSecAnalyst Role = "SEC_ANALYST"
	// RoleEngineer is a regular user role.
	RoleEngineer Role = "ENGINEER"
	// RoleViewer has read-only access.
	RoleViewer Role = "VIEWER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOrgAdmin, RoleSecAnalyst, RoleEngineer, RoleViewer:
		return true
	}
	return false
}

// Organization is the isolation boundary for policies, sessions and audit data.
type Organization struct {
	// ID is the stable identifier.
	ID OrgID
	// Name is the display name. It is the only mutable field.
	Name string
	// Slug is the unique human-readable key.
	Slug string
	// CreatedAt is when the organization was provisioned (UTC).
	CreatedAt time.Time
}

// Gateway is an edge agent that submits traffic on behalf of an organization.
type Gateway struct {
	// OrgID is the owning organization.
	OrgID OrgID
	// ID identifies the gateway within the system.
	ID string
	// Name is a human-readable label.
	Name string
	// APIKeyHash is the stored credential hash ("sha256:<hex>" or Argon2id PHC).
	// The raw key is never persisted.
	APIKeyHash string
	// CreatedAt is when the gateway was registered (UTC).
	CreatedAt time.Time
}

// GatewayIdentity is the result of resolving a gateway credential.
type GatewayIdentity struct {
	OrgID     OrgID
	GatewayID string
}

package policy

import (
	"context"

	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Store persists policies. It is the durable source the policy cache loads from.
// Implementations: in-memory (dev, tests), SQL (sqlite, postgres).
type Store interface {
	// ListPolicies returns every policy of the organization in insertion order.
	// An organization without policies yields an empty slice.
	ListPolicies(ctx context.Context, orgID tenant.OrgID) ([]Policy, error)

	// CreatePolicy stores a new policy. ID and timestamps are set by the caller.
	// Returns fault.ErrNotFound if the organization doesn't exist.
	CreatePolicy(ctx context.Context, p *Policy) error
}

// Cache is a per-organization projection of Store contents.
// Entries are keyed strictly by organization.
type Cache interface {
	// Get returns the cached policies and whether the entry was present.
	Get(ctx context.Context, orgID tenant.OrgID) ([]Policy, bool, error)
	// Set stores the policies for the organization with the backend's TTL.
	Set(ctx context.Context, orgID tenant.OrgID, policies []Policy) error
	// Invalidate drops the organization's entry.
	Invalidate(ctx context.Context, orgID tenant.OrgID) error
}

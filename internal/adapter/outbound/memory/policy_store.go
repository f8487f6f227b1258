// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Compile-time checks.
var (
	_ policy.Store = (*MemoryPolicyStore)(nil)
	_ tenant.Store = (*MemoryPolicyStore)(nil)
)

// MemoryPolicyStore implements policy.Store and tenant.Store with in-memory maps.
// Thread-safe for concurrent access. Policies are kept per organization in
// insertion order.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	orgs     map[tenant.OrgID]*tenant.Organization
	slugs    map[string]tenant.OrgID
	policies map[tenant.OrgID][]policy.Policy
	gateways map[string]*tenant.Gateway // ID -> Gateway
	keyIndex map[string]string          // sha256 key hash -> gateway ID
}

// NewPolicyStore creates an empty in-memory store.
func NewPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{
		orgs:     make(map[tenant.OrgID]*tenant.Organization),
		slugs:    make(map[string]tenant.OrgID),
		policies: make(map[tenant.OrgID][]policy.Policy),
		gateways: make(map[string]*tenant.Gateway),
		keyIndex: make(map[string]string),
	}
}

// CreateOrganization stores a new organization.
func (s *MemoryPolicyStore) CreateOrganization(ctx context.Context, org *tenant.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[org.ID]; ok {
		return fault.Validation("organization %q already exists", org.ID)
	}
	if _, ok := s.slugs[org.Slug]; ok {
		return fault.Validation("slug %q already taken", org.Slug)
	}
	c := *org
	s.orgs[org.ID] = &c
	s.slugs[org.Slug] = org.ID
	return nil
}

// GetOrganization returns a copy of the organization.
func (s *MemoryPolicyStore) GetOrganization(ctx context.Context, id tenant.OrgID) (*tenant.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[id]
	if !ok {
		return nil, fault.NotFound("organization %s", id)
	}
	c := *org
	return &c, nil
}

// RenameOrganization updates the organization's name.
func (s *MemoryPolicyStore) RenameOrganization(ctx context.Context, id tenant.OrgID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.orgs[id]
	if !ok {
		return fault.NotFound("organization %s", id)
	}
	org.Name = name
	return nil
}

// ListPolicies returns copies of the organization's policies in insertion order.
func (s *MemoryPolicyStore) ListPolicies(ctx context.Context, orgID tenant.OrgID) ([]policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.policies[orgID]
	result := make([]policy.Policy, 0, len(stored))
	for i := range stored {
		result = append(result, copyPolicy(&stored[i]))
	}
	return result, nil
}

// CreatePolicy appends a copy of p to its organization.
func (s *MemoryPolicyStore) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[p.OrgID]; !ok {
		return fault.NotFound("organization %s", p.OrgID)
	}
	s.policies[p.OrgID] = append(s.policies[p.OrgID], copyPolicy(p))
	return nil
}

// CreateGateway registers a copy of gw.
func (s *MemoryPolicyStore) CreateGateway(ctx context.Context, gw *tenant.Gateway) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[gw.OrgID]; !ok {
		return fault.NotFound("organization %s", gw.OrgID)
	}
	if _, ok := s.gateways[gw.ID]; ok {
		return fault.Validation("gateway %q already exists", gw.ID)
	}
	if tenant.DetectHashType(gw.APIKeyHash) == tenant.HashTypeSHA256 {
		if _, ok := s.keyIndex[gw.APIKeyHash]; ok {
			return fault.Validation("api key already registered")
		}
		s.keyIndex[gw.APIKeyHash] = gw.ID
	}
	c := *gw
	s.gateways[gw.ID] = &c
	return nil
}

// GetGatewayByKeyHash returns the gateway indexed under keyHash.
func (s *MemoryPolicyStore) GetGatewayByKeyHash(ctx context.Context, keyHash string) (*tenant.Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keyIndex[keyHash]
	if !ok {
		return nil, fault.NotFound("gateway key")
	}
	c := *s.gateways[id]
	return &c, nil
}

// ListGateways returns copies of every gateway.
func (s *MemoryPolicyStore) ListGateways(ctx context.Context) ([]*tenant.Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*tenant.Gateway, 0, len(s.gateways))
	for _, gw := range s.gateways {
		c := *gw
		result = append(result, &c)
	}
	return result, nil
}

// copyPolicy returns a deep copy so callers can't mutate stored state.
func copyPolicy(p *policy.Policy) policy.Policy {
	c := *p
	c.Conditions = copyConditions(p.Conditions)
	return c
}

func copyConditions(c policy.Conditions) policy.Conditions {
	out := policy.Conditions{
		Roles:             slices.Clone(c.Roles),
		DeviceTrustLevels: slices.Clone(c.DeviceTrustLevels),
		Countries:         slices.Clone(c.Countries),
		Resources:         slices.Clone(c.Resources),
	}
	if c.TimeWindow != nil {
		tw := *c.TimeWindow
		out.TimeWindow = &tw
	}
	return out
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Compile-time check that MemoryPolicyCache implements policy.Cache.
var _ policy.Cache = (*MemoryPolicyCache)(nil)

type cacheEntry struct {
	policies  []policy.Policy
	expiresAt time.Time
}

// MemoryPolicyCache is a process-local policy.Cache with a fixed TTL.
// Expired entries are dropped lazily on read.
type MemoryPolicyCache struct {
	mu      sync.RWMutex
	entries map[tenant.OrgID]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// MemoryCacheOption configures a MemoryPolicyCache.
type MemoryCacheOption func(*MemoryPolicyCache)

// WithClock replaces time.Now, for deterministic expiry in tests.
func WithClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryPolicyCache) {
		c.now = now
	}
}

// NewPolicyCache creates a cache whose entries expire after ttl.
func NewPolicyCache(ttl time.Duration, opts ...MemoryCacheOption) *MemoryPolicyCache {
	c := &MemoryPolicyCache{
		entries: make(map[tenant.OrgID]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the cached policies if the entry is still fresh.
func (c *MemoryPolicyCache) Get(ctx context.Context, orgID tenant.OrgID) ([]policy.Policy, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[orgID]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[orgID]; ok && cur.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, orgID)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return copyPolicies(entry.policies), true, nil
}

// Set stores a copy of policies for orgID.
func (c *MemoryPolicyCache) Set(ctx context.Context, orgID tenant.OrgID, policies []policy.Policy) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[orgID] = cacheEntry{
		policies:  copyPolicies(policies),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

// Invalidate drops the entry for orgID.
func (c *MemoryPolicyCache) Invalidate(ctx context.Context, orgID tenant.OrgID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, orgID)
	return nil
}

// Len returns the number of entries, fresh or not.
func (c *MemoryPolicyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func copyPolicies(in []policy.Policy) []policy.Policy {
	out := make([]policy.Policy, len(in))
	for i := range in {
		out[i] = copyPolicy(&in[i])
	}
	return out
}

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Cache lookup outcomes reported to a CacheObserver.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// CacheObserver receives cache lookup outcomes, for metrics.
type CacheObserver interface {
	ObserveCache(result string)
}

// DefaultCacheTimeout bounds each backend read or write in Get, leaving
// the rest of the caller's deadline for the store.
const DefaultCacheTimeout = 250 * time.Millisecond

// PolicyCache is a read-through cache of per-organization policy lists in
// front of policy.Store. Backend failures are logged and degrade to a direct
// store read; they never fail a Get.
type PolicyCache struct {
	store    policy.Store
	backend  policy.Cache
	observer CacheObserver
	timeout  time.Duration
	logger   *slog.Logger
}

// PolicyCacheOption configures PolicyCache.
type PolicyCacheOption func(*PolicyCache)

// WithCacheObserver reports lookup outcomes to o.
func WithCacheObserver(o CacheObserver) PolicyCacheOption {
	return func(c *PolicyCache) {
		c.observer = o
	}
}

// WithCacheTimeout bounds each backend call made by Get.
func WithCacheTimeout(d time.Duration) PolicyCacheOption {
	return func(c *PolicyCache) {
		c.timeout = withTimeout(d, DefaultCacheTimeout)
	}
}

// NewPolicyCache creates a PolicyCache reading from store through backend.
func NewPolicyCache(store policy.Store, backend policy.Cache, logger *slog.Logger, opts ...PolicyCacheOption) *PolicyCache {
	c := &PolicyCache{
		store:   store,
		backend: backend,
		timeout: DefaultCacheTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the organization's policies in store order.
func (c *PolicyCache) Get(ctx context.Context, orgID tenant.OrgID) ([]policy.Policy, error) {
	getCtx, cancel := context.WithTimeout(ctx, c.timeout)
	policies, ok, err := c.backend.Get(getCtx, orgID)
	cancel()
	switch {
	case err != nil:
		c.observe(CacheError)
		c.logger.Warn("policy cache read failed, reading store", "org_id", orgID, "error", err)
	case ok:
		c.observe(CacheHit)
		return policies, nil
	default:
		c.observe(CacheMiss)
	}

	policies, err = c.store.ListPolicies(ctx, orgID)
	if err != nil {
		return nil, err
	}
	setCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.backend.Set(setCtx, orgID, policies); err != nil {
		c.observe(CacheError)
		c.logger.Warn("policy cache write failed", "org_id", orgID, "error", err)
	}
	return policies, nil
}

// Invalidate drops the organization's entry. Writers call it after the
// store commit and before acknowledging the write.
func (c *PolicyCache) Invalidate(ctx context.Context, orgID tenant.OrgID) error {
	if err := c.backend.Invalidate(ctx, orgID); err != nil {
		c.observe(CacheError)
		return fault.Unavailable("invalidate policy cache", err)
	}
	return nil
}

func (c *PolicyCache) observe(result string) {
	if c.observer != nil {
		c.observer.ObserveCache(result)
	}
}

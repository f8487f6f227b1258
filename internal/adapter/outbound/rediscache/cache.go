// Package rediscache implements policy.Cache on Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Compile-time check that PolicyCache implements policy.Cache.
var _ policy.Cache = (*PolicyCache)(nil)

// KeyPrefix namespaces policy entries. The full key is "policies:<orgID>".
const KeyPrefix = "policies:"

// Key returns the Redis key holding orgID's policies.
func Key(orgID tenant.OrgID) string {
	return KeyPrefix + string(orgID)
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client timeouts. A stalled server must fail fast so policy reads fall
// back to the store within the evaluation deadline.
const (
	dialTimeout = 500 * time.Millisecond
	ioTimeout   = 250 * time.Millisecond
)

// Connect opens a client and verifies it with a PING bounded by two seconds.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// PolicyCache stores each organization's policy list as one JSON value
// with a TTL set on write.
type PolicyCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New creates a PolicyCache over client.
func New(client redis.UniversalClient, ttl time.Duration) *PolicyCache {
	return &PolicyCache{client: client, ttl: ttl}
}

// Get returns the cached policies. A missing key is a miss, not an error.
func (c *PolicyCache) Get(ctx context.Context, orgID tenant.OrgID) ([]policy.Policy, bool, error) {
	raw, err := c.client.Get(ctx, Key(orgID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", Key(orgID), err)
	}

	var policies []policy.Policy
	if err := json.Unmarshal(raw, &policies); err != nil {
		return nil, false, fmt.Errorf("decode cached policies for %s: %w", orgID, err)
	}
	if policies == nil {
		policies = []policy.Policy{}
	}
	return policies, true, nil
}

// Set writes the policies with the configured TTL.
func (c *PolicyCache) Set(ctx context.Context, orgID tenant.OrgID, policies []policy.Policy) error {
	if policies == nil {
		policies = []policy.Policy{}
	}
	raw, err := json.Marshal(policies)
	if err != nil {
		return fmt.Errorf("encode policies for %s: %w", orgID, err)
	}
	if err := c.client.Set(ctx, Key(orgID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", Key(orgID), err)
	}
	return nil
}

// Invalidate deletes the organization's key.
func (c *PolicyCache) Invalidate(ctx context.Context, orgID tenant.OrgID) error {
	if err := c.client.Del(ctx, Key(orgID)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", Key(orgID), err)
	}
	return nil
}

// Ping checks connectivity, for health reporting.
func (c *PolicyCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

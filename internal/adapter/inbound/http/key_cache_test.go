package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

func TestKeyCache_GetPut(t *testing.T) {
	c := NewKeyCache(10, time.Minute)
	id := tenant.GatewayIdentity{OrgID: "acme", GatewayID: "acme-sfo-1"}

	if _, ok := c.Get(acmeKey); ok {
		t.Fatal("Get on empty cache should miss")
	}
	c.Put(acmeKey, id)
	got, ok := c.Get(acmeKey)
	if !ok || got != id {
		t.Errorf("Get() = %+v, %v, want %+v, true", got, ok, id)
	}
}

func TestKeyCache_DigestCollisionMisses(t *testing.T) {
	c := NewKeyCache(10, time.Minute)
	c.digest = func(string) uint64 { return 42 }
	id := tenant.GatewayIdentity{OrgID: "acme", GatewayID: "acme-sfo-1"}
	c.Put(acmeKey, id)

	if got, ok := c.Get("other-key-with-same-digest"); ok {
		t.Fatalf("colliding key returned %+v, want miss", got)
	}
	if got, ok := c.Get(acmeKey); !ok || got != id {
		t.Errorf("Get(acmeKey) = %+v, %v, want %+v, true", got, ok, id)
	}
}

func TestKeyCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewKeyCache(2, time.Minute)
	c.Put("k1", tenant.GatewayIdentity{GatewayID: "1"})
	c.Put("k2", tenant.GatewayIdentity{GatewayID: "2"})
	c.Get("k1")
	c.Put("k3", tenant.GatewayIdentity{GatewayID: "3"})

	if _, ok := c.Get("k2"); ok {
		t.Error("k2 should have been evicted")
	}
	if _, ok := c.Get("k1"); !ok {
		t.Error("k1 should still be cached")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestKeyCache_Expiry(t *testing.T) {
	c := NewKeyCache(10, time.Minute)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Put(acmeKey, tenant.GatewayIdentity{OrgID: "acme"})
	clock = clock.Add(59 * time.Second)
	if _, ok := c.Get(acmeKey); !ok {
		t.Fatal("entry expired early")
	}
	clock = clock.Add(time.Second)
	if _, ok := c.Get(acmeKey); ok {
		t.Error("entry should expire after ttl")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

type countingResolver struct {
	inner GatewayResolver
	calls int
}

func (r *countingResolver) Resolve(ctx context.Context, apiKey string) (tenant.GatewayIdentity, error) {
	r.calls++
	return r.inner.Resolve(ctx, apiKey)
}

func TestGatewayAuth_UsesKeyCache(t *testing.T) {
	f := newFixture(t)
	resolver := &countingResolver{inner: f.services.Gateways}
	f.services.Gateways = resolver
	h := f.handler(WithKeyCache(16, time.Minute))

	for i := 0; i < 3; i++ {
		rec := do(t, h, http.MethodPost, "/api/gateway/evaluate", accessBody("ENGINEER", "US", policy.TrustHigh), apiKey(acmeKey)...)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if resolver.calls != 1 {
		t.Errorf("resolver calls = %d, want 1", resolver.calls)
	}
}

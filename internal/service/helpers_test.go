package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

var errBackendDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingStore wraps a policy.Store and counts ListPolicies calls.
type countingStore struct {
	policy.Store
	lists atomic.Int64
	err   error
	delay time.Duration
}

func (s *countingStore) ListPolicies(ctx context.Context, orgID tenant.OrgID) ([]policy.Policy, error) {
	s.lists.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.ListPolicies(ctx, orgID)
}

// brokenCache is a policy.Cache whose every call fails.
type brokenCache struct{}

func (brokenCache) Get(context.Context, tenant.OrgID) ([]policy.Policy, bool, error) {
	return nil, false, errBackendDown
}
func (brokenCache) Set(context.Context, tenant.OrgID, []policy.Policy) error { return errBackendDown }
func (brokenCache) Invalidate(context.Context, tenant.OrgID) error          { return errBackendDown }

// recordingObserver collects cache outcomes.
type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ObserveCache(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func (o *recordingObserver) count(result string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, r := range o.results {
		if r == result {
			n++
		}
	}
	return n
}

// newAcmeStore returns a memory store holding organization "acme".
func newAcmeStore() *memory.MemoryPolicyStore {
	store := memory.NewPolicyStore()
	_ = store.CreateOrganization(context.Background(), &tenant.Organization{
		ID: "acme", Name: "Acme Corporation", Slug: "acme", CreatedAt: time.Now().UTC(),
	})
	return store
}

func validRequest() policy.AccessRequest {
	return policy.AccessRequest{
		UserID:           "user-1",
		UserRole:         "ENGINEER",
		DeviceTrustLevel: policy.TrustHigh,
		Country:          "US",
		Resource:         "ssh://internal.acme.com/host",
	}
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
	"github.com/Sentinel-Gate/accessgate/internal/ids"
)

// PolicyInput is the administrative payload for creating a policy.
type PolicyInput struct {
	Name        string
	Priority    int
	Conditions  policy.Conditions
	Effect      policy.Effect
	Description string
}

// PolicyService evaluates access requests against an organization's
// policies and performs policy writes.
//
// Reads go through the injected PolicyCache. Writes commit to the store and
// then invalidate the organization's cache entry before returning, so an
// evaluation issued after a successful create observes the new policy.
type PolicyService struct {
	store   policy.Store
	cache   *PolicyCache
	timeout time.Duration
	now     func() time.Time
	tracer  trace.Tracer
	logger  *slog.Logger
}

// PolicyServiceOption configures PolicyService.
type PolicyServiceOption func(*PolicyService)

// WithEngineTimeout bounds the time an evaluation or write waits on the store and cache.
func WithEngineTimeout(d time.Duration) PolicyServiceOption {
	return func(s *PolicyService) {
		s.timeout = withTimeout(d, DefaultEngineTimeout)
	}
}

// WithPolicyClock replaces time.Now for time-window matching and timestamps.
func WithPolicyClock(now func() time.Time) PolicyServiceOption {
	return func(s *PolicyService) {
		s.now = now
	}
}

// WithPolicyTracer sets the tracer used for evaluation spans.
func WithPolicyTracer(t trace.Tracer) PolicyServiceOption {
	return func(s *PolicyService) {
		s.tracer = t
	}
}

// NewPolicyService creates a PolicyService.
func NewPolicyService(store policy.Store, cache *PolicyCache, logger *slog.Logger, opts ...PolicyServiceOption) *PolicyService {
	s := &PolicyService{
		store:   store,
		cache:   cache,
		timeout: DefaultEngineTimeout,
		now:     time.Now,
		tracer:  defaultTracer(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate returns the decision for req within orgID.
//
// A request that matches no policy yields a DENY result, not an error.
// Store or cache failures, including the timeout expiring, return an error
// and never a decision.
func (s *PolicyService) Evaluate(ctx context.Context, orgID tenant.OrgID, req policy.AccessRequest) (policy.Result, error) {
	ctx, span := s.tracer.Start(ctx, "PolicyService.Evaluate", trace.WithAttributes(
		attribute.String("org.id", string(orgID)),
		attribute.String("request.resource", req.Resource),
	))
	defer span.End()

	if orgID.IsZero() {
		return policy.Result{}, fault.Validation("orgId is required")
	}
	if err := req.Validate(); err != nil {
		return policy.Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	policies, err := s.cache.Get(ctx, orgID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "policy load failed")
		return policy.Result{}, fmt.Errorf("load policies for %s: %w", orgID, err)
	}

	result := policy.Evaluate(policies, req, s.now())
	span.SetAttributes(
		attribute.String("decision", string(result.Decision)),
		attribute.StringSlice("matched_policy_ids", result.MatchedPolicyIDs),
	)
	s.logger.Debug("access evaluated",
		"org_id", orgID,
		"user_id", req.UserID,
		"resource", req.Resource,
		"decision", result.Decision,
		"reason", result.Reason,
	)
	return result, nil
}

// ListPolicies returns the organization's policies in evaluation order
// (priority descending, ties in insertion order).
func (s *PolicyService) ListPolicies(ctx context.Context, orgID tenant.OrgID) ([]policy.Policy, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	policies, err := s.cache.Get(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load policies for %s: %w", orgID, err)
	}
	return policy.SortByPriority(policies), nil
}

// CreatePolicy stores a new policy and invalidates the organization's cache
// entry before returning. If the invalidation fails the policy is committed
// but an ErrStoreUnavailable error is returned, since visibility to the next
// evaluation cannot be guaranteed.
func (s *PolicyService) CreatePolicy(ctx context.Context, orgID tenant.OrgID, in PolicyInput) (*policy.Policy, error) {
	now := s.now().UTC()
	p := &policy.Policy{
		ID:          ids.New(),
		OrgID:       orgID,
		Name:        in.Name,
		Priority:    in.Priority,
		Conditions:  in.Conditions,
		Effect:      in.Effect,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.CreatePolicy(ctx, p); err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}
	if err := s.cache.Invalidate(ctx, orgID); err != nil {
		s.logger.Error("policy committed but cache invalidation failed",
			"org_id", orgID, "policy_id", p.ID, "error", err)
		return nil, err
	}

	s.logger.Info("policy created",
		"org_id", orgID,
		"policy_id", p.ID,
		"name", p.Name,
		"priority", p.Priority,
		"effect", p.Effect,
	)
	return p, nil
}

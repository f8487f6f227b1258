package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/accessgate/internal/domain/audit"
	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/session"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
	"github.com/Sentinel-Gate/accessgate/internal/ids"
)

// RecordInput describes one decision to record.
type RecordInput struct {
	OrgID            tenant.OrgID
	UserID           string
	GatewayID        string
	PolicyID         string
	Decision         policy.Effect
	Resource         string
	Country          string
	DeviceTrustLevel string
	// SessionID continues an existing session. Empty starts a new one.
	SessionID string
}

// RecordResult identifies the records written for a decision.
type RecordResult struct {
	SessionID   string
	PolicyHitID string
}

// DecisionRecorder correlates decisions with sessions and the audit trail.
type DecisionRecorder struct {
	store   session.RecordStore
	timeout time.Duration
	now     func() time.Time
	tracer  trace.Tracer
	logger  *slog.Logger
}

// DecisionRecorderOption configures DecisionRecorder.
type DecisionRecorderOption func(*DecisionRecorder)

// WithRecorderTimeout bounds the time a recorder call waits on the store.
func WithRecorderTimeout(d time.Duration) DecisionRecorderOption {
	return func(r *DecisionRecorder) {
		r.timeout = withTimeout(d, DefaultRecorderTimeout)
	}
}

// WithRecorderClock replaces time.Now for record timestamps.
func WithRecorderClock(now func() time.Time) DecisionRecorderOption {
	return func(r *DecisionRecorder) {
		r.now = now
	}
}

// WithRecorderTracer sets the tracer used for recording spans.
func WithRecorderTracer(t trace.Tracer) DecisionRecorderOption {
	return func(r *DecisionRecorder) {
		r.tracer = t
	}
}

// NewDecisionRecorder creates a DecisionRecorder over store.
func NewDecisionRecorder(store session.RecordStore, logger *slog.Logger, opts ...DecisionRecorderOption) *DecisionRecorder {
	r := &DecisionRecorder{
		store:   store,
		timeout: DefaultRecorderTimeout,
		now:     time.Now,
		tracer:  defaultTracer(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (in RecordInput) validate() error {
	var missing []string
	if in.OrgID.IsZero() {
		missing = append(missing, "orgId")
	}
	if strings.TrimSpace(in.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(in.PolicyID) == "" {
		missing = append(missing, "policyId")
	}
	if in.Decision == "" {
		missing = append(missing, "decision")
	}
	if len(missing) > 0 {
		return fault.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !in.Decision.Valid() {
		return fault.Validation("decision must be ALLOW or DENY, got %q", in.Decision)
	}
	return nil
}

// Record writes a policy hit and an audit log entry for the decision,
// creating a session when in.SessionID is empty. A supplied SessionID must
// name an existing session of the same organization, otherwise
// fault.ErrNotFound is returned. The writes succeed or fail together.
func (r *DecisionRecorder) Record(ctx context.Context, in RecordInput) (RecordResult, error) {
	ctx, span := r.tracer.Start(ctx, "DecisionRecorder.Record", trace.WithAttributes(
		attribute.String("org.id", string(in.OrgID)),
		attribute.String("policy.id", in.PolicyID),
	))
	defer span.End()

	if err := in.validate(); err != nil {
		return RecordResult{}, err
	}

	now := r.now().UTC()
	rec := &session.Recording{
		OrgID: in.OrgID,
		Hit: session.PolicyHit{
			ID:               ids.New(),
			SessionID:        in.SessionID,
			PolicyID:         in.PolicyID,
			Decision:         string(in.Decision),
			Resource:         in.Resource,
			Country:          in.Country,
			DeviceTrustLevel: in.DeviceTrustLevel,
			HitAt:            now,
		},
		Audit: audit.Log{
			ID:        ids.New(),
			OrgID:     in.OrgID,
			UserID:    in.UserID,
			Action:    audit.ActionAccessRequest,
			Resource:  in.Resource,
			Status:    string(in.Decision),
			Details:   audit.AccessDetails(in.PolicyID, in.GatewayID, in.Country, in.DeviceTrustLevel),
			CreatedAt: now,
		},
	}
	if in.SessionID == "" {
		rec.NewSession = &session.Session{
			ID:        ids.New(),
			OrgID:     in.OrgID,
			UserID:    in.UserID,
			GatewayID: in.GatewayID,
			StartedAt: now,
			Status:    session.StatusActive,
		}
		rec.Hit.SessionID = rec.NewSession.ID
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.Append(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record failed")
		return RecordResult{}, fmt.Errorf("record decision: %w", err)
	}

	r.logger.Debug("decision recorded",
		"org_id", in.OrgID,
		"session_id", rec.Hit.SessionID,
		"policy_hit_id", rec.Hit.ID,
		"new_session", rec.NewSession != nil,
	)
	return RecordResult{SessionID: rec.Hit.SessionID, PolicyHitID: rec.Hit.ID}, nil
}

// EndSession marks the session ENDED. Repeated calls succeed without
// changing EndedAt. Unknown IDs return fault.ErrNotFound.
func (r *DecisionRecorder) EndSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fault.Validation("sessionId is required")
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err := r.store.EndSession(ctx, sessionID, r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	return sess, nil
}

// GetSession returns a session by ID.
func (r *DecisionRecorder) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.GetSession(ctx, sessionID)
}

// ListSessions returns the organization's sessions newest first.
// limit defaults to session.DefaultLimit and is capped at session.MaxLimit.
func (r *DecisionRecorder) ListSessions(ctx context.Context, orgID tenant.OrgID, limit, offset int) ([]session.Session, error) {
	limit, offset = session.NormalizePage(limit, offset)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.ListSessions(ctx, orgID, limit, offset)
}

// ListPolicyHits returns a session's hits oldest first.
func (r *DecisionRecorder) ListPolicyHits(ctx context.Context, sessionID string) ([]session.PolicyHit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.ListPolicyHits(ctx, sessionID)
}

// ListAuditLogs returns the organization's audit entries newest first.
func (r *DecisionRecorder) ListAuditLogs(ctx context.Context, orgID tenant.OrgID, limit, offset int) ([]audit.Log, error) {
	limit, offset = session.NormalizePage(limit, offset)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.ListAuditLogs(ctx, orgID, limit, offset)
}

package http

import (
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/audit"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/session"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
	"github.com/Sentinel-Gate/accessgate/internal/service"
)

// AccessRequestBody is the evaluate request.
type AccessRequestBody struct {
	UserID           string            `json:"userId"`
	UserRole         string            `json:"userRole"`
	DeviceTrustLevel policy.TrustLevel `json:"deviceTrustLevel"`
	Country          string            `json:"country"`
	Resource         string            `json:"resource"`
	Action           string            `json:"action,omitempty"`
}

func (b AccessRequestBody) toDomain() policy.AccessRequest {
	return policy.AccessRequest{
		UserID:           b.UserID,
		UserRole:         b.UserRole,
		DeviceTrustLevel: b.DeviceTrustLevel,
		Country:          b.Country,
		Resource:         b.Resource,
		Action:           b.Action,
	}
}

// EvaluationResponse is the evaluate response.
type EvaluationResponse struct {
	Decision         policy.Effect `json:"decision"`
	MatchedPolicyIDs []string      `json:"matchedPolicyIds"`
	Reason           string        `json:"reason"`
}

func toEvaluationResponse(r policy.Result) EvaluationResponse {
	ids := r.MatchedPolicyIDs
	if ids == nil {
		ids = []string{}
	}
	return EvaluationResponse{Decision: r.Decision, MatchedPolicyIDs: ids, Reason: r.Reason}
}

// PolicyBody is the create-policy request.
type PolicyBody struct {
	Name        string            `json:"name"`
	Priority    int               `json:"priority"`
	Conditions  policy.Conditions `json:"conditions"`
	Effect      policy.Effect     `json:"effect"`
	Description string            `json:"description,omitempty"`
}

// PolicyResponse is a policy on the wire.
type PolicyResponse struct {
	ID          string            `json:"id"`
	OrgID       string            `json:"orgId"`
	Name        string            `json:"name"`
	Priority    int               `json:"priority"`
	Conditions  policy.Conditions `json:"conditions"`
	Effect      policy.Effect     `json:"effect"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func toPolicyResponse(p policy.Policy) PolicyResponse {
	return PolicyResponse{
		ID:          p.ID,
		OrgID:       string(p.OrgID),
		Name:        p.Name,
		Priority:    p.Priority,
		Conditions:  p.Conditions,
		Effect:      p.Effect,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// OrganizationBody is the create/rename organization request.
type OrganizationBody struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// OrganizationResponse is an organization on the wire.
type OrganizationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

func toOrganizationResponse(o *tenant.Organization) OrganizationResponse {
	return OrganizationResponse{ID: string(o.ID), Name: o.Name, Slug: o.Slug, CreatedAt: o.CreatedAt}
}

// GatewayBody is the register-gateway request.
type GatewayBody struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	APIKey   string `json:"apiKey"`
	Argon2id bool   `json:"argon2id,omitempty"`
}

// GatewayResponse is a registered gateway. The key hash is never returned.
type GatewayResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordDecisionBody is the record-decision and telemetry request.
type RecordDecisionBody struct {
	SessionID        string        `json:"sessionId,omitempty"`
	OrgID            string        `json:"orgId"`
	UserID           string        `json:"userId"`
	GatewayID        string        `json:"gatewayId,omitempty"`
	PolicyID         string        `json:"policyId"`
	Decision         policy.Effect `json:"decision"`
	Resource         string        `json:"resource,omitempty"`
	Country          string        `json:"country,omitempty"`
	DeviceTrustLevel string        `json:"deviceTrustLevel,omitempty"`
}

func (b RecordDecisionBody) toInput() service.RecordInput {
	return service.RecordInput{
		OrgID:            tenant.OrgID(b.OrgID),
		UserID:           b.UserID,
		GatewayID:        b.GatewayID,
		PolicyID:         b.PolicyID,
		Decision:         b.Decision,
		Resource:         b.Resource,
		Country:          b.Country,
		DeviceTrustLevel: b.DeviceTrustLevel,
		SessionID:        b.SessionID,
	}
}

// RecordDecisionResponse identifies the written records.
type RecordDecisionResponse struct {
	SessionID   string `json:"sessionId"`
	PolicyHitID string `json:"policyHitId"`
}

// EndSessionBody is the end-session request.
type EndSessionBody struct {
	SessionID string `json:"sessionId"`
}

// SessionResponse is a session on the wire.
type SessionResponse struct {
	ID        string         `json:"id"`
	OrgID     string         `json:"orgId"`
	UserID    string         `json:"userId"`
	GatewayID string         `json:"gatewayId,omitempty"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   *time.Time     `json:"endedAt,omitempty"`
	Status    session.Status `json:"status"`
}

func toSessionResponse(s session.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		OrgID:     string(s.OrgID),
		UserID:    s.UserID,
		GatewayID: s.GatewayID,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Status:    s.Status,
	}
}

// PolicyHitResponse is a policy hit on the wire.
type PolicyHitResponse struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	PolicyID         string    `json:"policyId"`
	Decision         string    `json:"decision"`
	Resource         string    `json:"resource,omitempty"`
	Country          string    `json:"country,omitempty"`
	DeviceTrustLevel string    `json:"deviceTrustLevel,omitempty"`
	HitAt            time.Time `json:"hitAt"`
}

// AuditLogResponse is an audit entry on the wire.
type AuditLogResponse struct {
	ID        string         `json:"id"`
	OrgID     string         `json:"orgId"`
	UserID    string         `json:"userId,omitempty"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource,omitempty"`
	Status    string         `json:"status,omitempty"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"createdAt"`
}

func toAuditLogResponse(l audit.Log) AuditLogResponse {
	details := l.Details
	if details == nil {
		details = map[string]any{}
	}
	return AuditLogResponse{
		ID:        l.ID,
		OrgID:     string(l.OrgID),
		UserID:    l.UserID,
		Action:    l.Action,
		Resource:  l.Resource,
		Status:    l.Status,
		Details:   details,
		CreatedAt: l.CreatedAt,
	}
}

// mapSlice converts every element of in with f.
func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

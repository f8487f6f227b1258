package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/session"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
	"github.com/Sentinel-Gate/accessgate/internal/service"
)

type orgIDContextKey struct{}

// orgScope resolves {orgId} and enforces token scope on every org route.
func (a *API) orgScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := tenant.OrgID(chi.URLParam(r, "orgId"))
		if err := authorizeOrg(r.Context(), orgID); err != nil {
			respondError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), orgIDContextKey{}, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func orgFromContext(ctx context.Context) tenant.OrgID {
	id, _ := ctx.Value(orgIDContextKey{}).(tenant.OrgID)
	return id
}

func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	if claims == nil || claims.Role != tenant.RoleSuperAdmin {
		respondError(w, r, fault.Forbidden("creating organizations requires SUPER_ADMIN"))
		return
	}
	var body OrganizationBody
	if err := readJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	org, err := a.svc.Orgs.CreateOrganization(r.Context(), service.OrganizationInput{
		ID:   tenant.OrgID(body.ID),
		Name: body.Name,
		Slug: body.Slug,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, toOrganizationResponse(org))
}

func (a *API) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := a.svc.Orgs.GetOrganization(r.Context(), orgFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrganizationResponse(org))
}

func (a *API) handleRenameOrganization(w http.ResponseWriter, r *http.Request) {
	var body OrganizationBody
	if err := readJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	org, err := a.svc.Orgs.RenameOrganization(r.Context(), orgFromContext(r.Context()), body.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrganizationResponse(org))
}

func (a *API) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := a.svc.Policies.ListPolicies(r.Context(), orgFromContext(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, mapSlice(policies, toPolicyResponse))
}

func (a *API) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var body PolicyBody
	if err := readJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := a.svc.Policies.CreatePolicy(r.Context(), orgFromContext(r.Context()), service.PolicyInput{
		Name:        body.Name,
		Priority:    body.Priority,
		Conditions:  body.Conditions,
		Effect:      body.Effect,
		Description: body.Description,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, toPolicyResponse(*p))
}

func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var body AccessRequestBody
	if err := readJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	result, ok := a.evaluate(w, r, orgFromContext(r.Context()), body)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, toEvaluationResponse(result))
}

func (a *API) handleRegisterGateway(w http.ResponseWriter, r *http.Request) {
	var body GatewayBody
	if err := readJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	gw, err := a.svc.Orgs.RegisterGateway(r.Context(), orgFromContext(r.Context()), service.GatewayInput{
		ID:       body.ID,
		Name:     body.Name,
		APIKey:   body.APIKey,
		Argon2id: body.Argon2id,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, GatewayResponse{
		ID:        gw.ID,
		OrgID:     string(gw.OrgID),
		Name:      gw.Name,
		CreatedAt: gw.CreatedAt,
	})
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	sessions, err := a.svc.Recorder.ListSessions(r.Context(), orgFromContext(r.Context()), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, mapSlice(sessions, toSessionResponse))
}

func (a *API) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logs, err := a.svc.Recorder.ListAuditLogs(r.Context(), orgFromContext(r.Context()), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, mapSlice(logs, toAuditLogResponse))
}

func (a *API) handleRecordDecision(w http.ResponseWriter, r *http.Request) {
	var body RecordDecisionBody
	if err := readJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	if err := authorizeOrg(r.Context(), tenant.OrgID(body.OrgID)); err != nil {
		respondError(w, r, err)
		return
	}
	a.record(w, r, body)
}

func (a *API) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var body EndSessionBody
	if err := readJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	if _, ok := a.scopedSession(w, r, body.SessionID); !ok {
		return
	}
	if _, err := a.svc.Recorder.EndSession(r.Context(), body.SessionID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.scopedSession(w, r, chi.URLParam(r, "sessionId"))
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, toSessionResponse(*sess))
}

func (a *API) handleListPolicyHits(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.scopedSession(w, r, chi.URLParam(r, "sessionId"))
	if !ok {
		return
	}
	hits, err := a.svc.Recorder.ListPolicyHits(r.Context(), sess.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, mapSlice(hits, func(h session.PolicyHit) PolicyHitResponse {
		return PolicyHitResponse{
			ID:               h.ID,
			SessionID:        h.SessionID,
			PolicyID:         h.PolicyID,
			Decision:         h.Decision,
			Resource:         h.Resource,
			Country:          h.Country,
			DeviceTrustLevel: h.DeviceTrustLevel,
			HitAt:            h.HitAt,
		}
	}))
}

// scopedSession loads a session and checks the caller may see its
// organization. Sessions of other organizations are reported as not found.
func (a *API) scopedSession(w http.ResponseWriter, r *http.Request, id string) (*session.Session, bool) {
	if id == "" {
		respondError(w, r, fault.Validation("sessionId is required"))
		return nil, false
	}
	sess, err := a.svc.Recorder.GetSession(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	if err := authorizeOrg(r.Context(), sess.OrgID); err != nil {
		respondError(w, r, fault.NotFound("session %s", id))
		return nil, false
	}
	return sess, true
}

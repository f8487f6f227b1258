package http

import (
	"net/http"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
	"github.com/Sentinel-Gate/accessgate/internal/service"
)

// DefaultDenyPolicyID is recorded when a gateway decision matched no policy.
const DefaultDenyPolicyID = "default-deny"

// handleGatewayEvaluate evaluates for the authenticated gateway's organization.
func (a *API) handleGatewayEvaluate(w http.ResponseWriter, r *http.Request) {
	gw, ok := GatewayFromContext(r.Context())
	if !ok {
		respondError(w, r, fault.Unauthorized("missing gateway identity"))
		return
	}
	var body AccessRequestBody
	if err := readJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}

	result, ok := a.evaluate(w, r, gw.OrgID, body)
	if !ok {
		return
	}
	if a.autoRecord {
		a.enqueue(r, gw, body, result)
	}
	respondJSON(w, r, http.StatusOK, toEvaluationResponse(result))
}

// enqueue hands the decision to the recording queue. The response never
// waits on the record store.
func (a *API) enqueue(r *http.Request, gw tenant.GatewayIdentity, body AccessRequestBody, result policy.Result) {
	policyID := DefaultDenyPolicyID
	if result.Matched() {
		policyID = result.MatchedPolicyIDs[0]
	}
	accepted := a.queue.Enqueue(service.RecordInput{
		OrgID:            gw.OrgID,
		UserID:           body.UserID,
		GatewayID:        gw.GatewayID,
		PolicyID:         policyID,
		Decision:         result.Decision,
		Resource:         body.Resource,
		Country:          body.Country,
		DeviceTrustLevel: string(body.DeviceTrustLevel),
	})
	if !accepted {
		if a.metrics != nil {
			a.metrics.RecordEnqueueDrops.Inc()
		}
		LoggerFromContext(r.Context()).Warn("gateway decision not recorded", "user_id", body.UserID)
	}
}

// handleGatewayTelemetry records a decision reported by the gateway. The
// organization and gateway come from the API key; a body naming another
// organization is rejected.
func (a *API) handleGatewayTelemetry(w http.ResponseWriter, r *http.Request) {
	gw, ok := GatewayFromContext(r.Context())
	if !ok {
		respondError(w, r, fault.Unauthorized("missing gateway identity"))
		return
	}
	var body RecordDecisionBody
	if err := readJSON(w, r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	if body.OrgID != "" && tenant.OrgID(body.OrgID) != gw.OrgID {
		respondError(w, r, errForbiddenOrg(body.OrgID))
		return
	}
	body.OrgID = string(gw.OrgID)
	body.GatewayID = gw.GatewayID

	a.record(w, r, body)
}

// evaluate runs the engine and writes the error response on failure.
func (a *API) evaluate(w http.ResponseWriter, r *http.Request, orgID tenant.OrgID, body AccessRequestBody) (policy.Result, bool) {
	result, err := a.svc.Policies.Evaluate(r.Context(), orgID, body.toDomain())
	if err != nil {
		respondError(w, r, err)
		return policy.Result{}, false
	}
	if a.metrics != nil {
		a.metrics.ObserveDecision(result)
	}
	LoggerFromContext(r.Context()).Debug("access evaluated",
		"org_id", orgID,
		"user_id", body.UserID,
		"decision", result.Decision,
		"matched", result.MatchedPolicyIDs,
	)
	return result, true
}

func (a *API) record(w http.ResponseWriter, r *http.Request, body RecordDecisionBody) {
	res, err := a.svc.Recorder.Record(r.Context(), body.toInput())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, RecordDecisionResponse{SessionID: res.SessionID, PolicyHitID: res.PolicyHitID})
}

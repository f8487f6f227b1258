package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
	"github.com/Sentinel-Gate/accessgate/internal/service"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	acmeKey    = "acme-gw-key-123"
)

// discardLogger returns a logger that discards all output (for tests)
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires the API over in-memory stores with org "acme", gateway
// "acme-sfo-1" and org "globex".
type fixture struct {
	store    *memory.MemoryPolicyStore
	records  *memory.MemoryRecordStore
	policies *service.PolicyService
	recorder *service.DecisionRecorder
	orgs     *service.OrgService
	services Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore lets tests substitute the policy store seen by the engine.
func newFixtureWithStore(t *testing.T, wrap func(policy.Store) policy.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.NewPolicyStore(), records: memory.NewRecordStore()}
	f.orgs = service.NewOrgService(f.store, discardLogger())
	for _, o := range []service.OrganizationInput{
		{ID: "acme", Name: "Acme Corporation", Slug: "acme"},
		{ID: "globex", Name: "Globex", Slug: "globex"},
	} {
		if _, err := f.orgs.CreateOrganization(ctx, o); err != nil {
			t.Fatalf("CreateOrganization(%s): %v", o.ID, err)
		}
	}
	if _, err := f.orgs.RegisterGateway(ctx, "acme", service.GatewayInput{ID: "acme-sfo-1", Name: "SFO", APIKey: acmeKey}); err != nil {
		t.Fatalf("RegisterGateway: %v", err)
	}

	var ps policy.Store = f.store
	if wrap != nil {
		ps = wrap(ps)
	}
	cache := service.NewPolicyCache(ps, memory.NewPolicyCache(5*time.Minute), discardLogger())
	f.policies = service.NewPolicyService(ps, cache, discardLogger())
	f.recorder = service.NewDecisionRecorder(f.records, discardLogger())
	f.services = Services{
		Policies: f.policies,
		Recorder: f.recorder,
		Orgs:     f.orgs,
		Gateways: service.NewGatewayResolver(f.store, discardLogger()),
	}
	return f
}

func (f *fixture) handler(opts ...Option) http.Handler {
	opts = append([]Option{WithLogger(discardLogger()), WithJWTSecret(testSecret)}, opts...)
	return NewAPI(f.services, opts...).Handler()
}

func (f *fixture) createPolicy(t *testing.T, org tenant.OrgID, in service.PolicyInput) *policy.Policy {
	t.Helper()
	p, err := f.policies.CreatePolicy(context.Background(), org, in)
	if err != nil {
		t.Fatalf("CreatePolicy(%s): %v", in.Name, err)
	}
	return p
}

func token(t *testing.T, org tenant.OrgID, role tenant.Role) string {
	t.Helper()
	tok, err := SignToken([]byte(testSecret), "user-1", org, role, time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return tok
}

// do sends a request with an optional JSON body and headers given as key/value pairs.
func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearer(tok string) []string { return []string{"Authorization", "Bearer " + tok} }

func apiKey(key string) []string { return []string{APIKeyHeader, key} }

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, rec).Error.Code
}

func accessBody(role, country string, trust policy.TrustLevel) AccessRequestBody {
	return AccessRequestBody{
		UserID:           "user-1",
		UserRole:         role,
		DeviceTrustLevel: trust,
		Country:          country,
		Resource:         "ssh://internal.acme.com/server1",
	}
}

func gatewayIdentity(org tenant.OrgID, id string) tenant.GatewayIdentity {
	return tenant.GatewayIdentity{OrgID: org, GatewayID: id}
}

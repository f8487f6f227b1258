package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	seeder   *Seeder
	policies *service.PolicyService
	gateways *service.GatewayResolver
}

func newEnv() env {
	store := memory.NewPolicyStore()
	cache := service.NewPolicyCache(store, memory.NewPolicyCache(5*time.Minute), discardLogger())
	policies := service.NewPolicyService(store, cache, discardLogger())
	orgs := service.NewOrgService(store, discardLogger())
	return env{
		seeder:   NewSeeder(orgs, policies, discardLogger()),
		policies: policies,
		gateways: service.NewGatewayResolver(store, discardLogger()),
	}
}

func TestDemo(t *testing.T) {
	s := Demo()
	if len(s.Organizations) != 1 {
		t.Fatalf("organizations = %d, want 1", len(s.Organizations))
	}
	acme := s.Organizations[0]
	if acme.ID != "acme" || len(acme.Policies) != 4 || len(acme.Gateways) != 1 {
		t.Errorf("acme = %+v", acme)
	}
	if acme.Gateways[0].APIKey != "acme-gw-key-123" {
		t.Errorf("gateway key = %q", acme.Gateways[0].APIKey)
	}
}

func TestApply_DemoDecisions(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	rep, err := e.seeder.Apply(ctx, Demo())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if rep != (Report{OrganizationsCreated: 1, PoliciesCreated: 4, GatewaysRegistered: 1}) {
		t.Errorf("report = %+v", rep)
	}

	id, err := e.gateways.Resolve(ctx, "acme-gw-key-123")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.OrgID != "acme" || id.GatewayID != "acme-sfo-1" {
		t.Errorf("identity = %+v", id)
	}

	tests := []struct {
		name     string
		req      policy.AccessRequest
		decision policy.Effect
		reason   string
	}{
		{
			name:     "engineer ssh from US",
			req:      policy.AccessRequest{UserID: "u1", UserRole: "ENGINEER", DeviceTrustLevel: policy.TrustHigh, Country: "US", Resource: "ssh://internal.acme.com/server1"},
			decision: policy.EffectAllow,
			reason:   "Matched policy: Allow Engineers SSH from US",
		},
		{
			name:     "engineer from CN",
			req:      policy.AccessRequest{UserID: "u1", UserRole: "ENGINEER", DeviceTrustLevel: policy.TrustHigh, Country: "CN", Resource: "ssh://internal.acme.com/server1"},
			decision: policy.EffectDeny,
			reason:   "Matched policy: Block High-Risk Countries",
		},
		{
			name:     "admin on untrusted device",
			req:      policy.AccessRequest{UserID: "u2", UserRole: "ORG_ADMIN", DeviceTrustLevel: policy.TrustUntrusted, Country: "US", Resource: "https://app"},
			decision: policy.EffectDeny,
			reason:   "Matched policy: Deny Untrusted Devices",
		},
		{
			name:     "admin from US",
			req:      policy.AccessRequest{UserID: "u2", UserRole: "ORG_ADMIN", DeviceTrustLevel: policy.TrustLow, Country: "US", Resource: "https://app"},
			decision: policy.EffectAllow,
			reason:   "Matched policy: Allow Admins All Resources",
		},
		{
			name:     "viewer falls through",
			req:      policy.AccessRequest{UserID: "u3", UserRole: "VIEWER", DeviceTrustLevel: policy.TrustHigh, Country: "US", Resource: "https://app"},
			decision: policy.EffectDeny,
			reason:   policy.ReasonNoMatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.policies.Evaluate(ctx, "acme", tt.req)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got.Decision != tt.decision || got.Reason != tt.reason {
				t.Errorf("Evaluate() = %s %q, want %s %q", got.Decision, got.Reason, tt.decision, tt.reason)
			}
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	if _, err := e.seeder.Apply(ctx, Demo()); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	rep, err := e.seeder.Apply(ctx, Demo())
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if rep.OrganizationsSkipped != 1 || rep.PoliciesCreated != 0 {
		t.Errorf("second report = %+v", rep)
	}
	list, err := e.policies.ListPolicies(ctx, "acme")
	if err != nil {
		t.Fatalf("ListPolicies: %v", err)
	}
	if len(list) != 4 {
		t.Errorf("policies = %d, want 4", len(list))
	}
}

func TestApply_InvalidPolicy(t *testing.T) {
	e := newEnv()
	s := &Seed{Organizations: []OrganizationSeed{{
		ID: "initech", Name: "Initech", Slug: "initech",
		Policies: []PolicySeed{{Name: "broken", Effect: "MAYBE"}},
	}}}

	_, err := e.seeder.Apply(context.Background(), s)
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("Apply() error = %v, want ErrValidation", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", "organizations:\n  - name: Initech\n    slug: initech\n", false},
		{"unknown field", "organizations:\n  - name: Initech\n    slug: initech\n    color: red\n", true},
		{"missing slug", "organizations:\n  - name: Initech\n", true},
		{"not yaml", "organizations: [", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `
organizations:
  - id: globex
    name: Globex
    slug: globex
    policies:
      - name: Office hours
        priority: 10
        effect: ALLOW
        conditions:
          timeWindow: {start: "09:00", end: "17:00", timezone: America/New_York}
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	tw := s.Organizations[0].Policies[0].Conditions.TimeWindow
	if tw == nil || tw.Start != "09:00" || tw.Timezone != "America/New_York" {
		t.Errorf("time window = %+v", tw)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) should fail")
	}
}

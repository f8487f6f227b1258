// Package bootstrap loads seed data (organizations, policies and gateways)
// from YAML and applies it through the services.
package bootstrap

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
	"github.com/Sentinel-Gate/accessgate/internal/service"
)

//go:embed acme.yaml
var demoSeed []byte

// Seed is the root of a seed file.
type Seed struct {
	Organizations []OrganizationSeed `yaml:"organizations"`
}

// OrganizationSeed describes one organization and what it owns.
type OrganizationSeed struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Slug     string        `yaml:"slug"`
	Policies []PolicySeed  `yaml:"policies"`
	Gateways []GatewaySeed `yaml:"gateways"`
}

// PolicySeed is a policy in a seed file.
type PolicySeed struct {
	Name        string            `yaml:"name"`
	Priority    int               `yaml:"priority"`
	Effect      policy.Effect     `yaml:"effect"`
	Description string            `yaml:"description"`
	Conditions  policy.Conditions `yaml:"conditions"`
}

// GatewaySeed is a gateway in a seed file. APIKey is the raw key.
type GatewaySeed struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	APIKey   string `yaml:"api_key"`
	Argon2id bool   `yaml:"argon2id"`
}

// Demo returns the embedded demo seed: organization acme with four
// policies and gateway acme-sfo-1.
func Demo() *Seed {
	s, err := Parse(demoSeed)
	if err != nil {
		panic(fmt.Sprintf("embedded seed: %v", err))
	}
	return s
}

// Parse decodes a seed document. Unknown fields are rejected.
func Parse(data []byte) (*Seed, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Seed
	if err := dec.Decode(&s); err != nil {
		return nil, fault.Validation("invalid seed: %v", err)
	}
	for i, org := range s.Organizations {
		if org.Slug == "" {
			return nil, fault.Validation("invalid seed: organization %d has no slug", i)
		}
	}
	return &s, nil
}

// LoadFile reads and parses a seed file.
func LoadFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Report summarizes an Apply run.
type Report struct {
	OrganizationsCreated int
	OrganizationsSkipped int
	PoliciesCreated      int
	GatewaysRegistered   int
}

// Seeder applies seeds through the provisioning and policy services so
// that validation, hashing and cache invalidation behave exactly as for API
// writes.
type Seeder struct {
	orgs     *service.OrgService
	policies *service.PolicyService
	logger   *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(orgs *service.OrgService, policies *service.PolicyService, logger *slog.Logger) *Seeder {
	return &Seeder{orgs: orgs, policies: policies, logger: logger}
}

// Apply creates every organization of s that does not exist yet, with its
// policies and gateways. Existing organizations are left untouched, so
// applying the same seed twice is a no-op.
func (sd *Seeder) Apply(ctx context.Context, s *Seed) (Report, error) {
	var rep Report
	for _, o := range s.Organizations {
		if o.ID != "" {
			_, err := sd.orgs.GetOrganization(ctx, tenant.OrgID(o.ID))
			if err == nil {
				sd.logger.Info("seed: organization exists, skipping", "org_id", o.ID)
				rep.OrganizationsSkipped++
				continue
			}
			if !errors.Is(err, fault.ErrNotFound) {
				return rep, fmt.Errorf("seed organization %s: %w", o.ID, err)
			}
		}

		org, err := sd.orgs.CreateOrganization(ctx, service.OrganizationInput{
			ID:   tenant.OrgID(o.ID),
			Name: o.Name,
			Slug: o.Slug,
		})
		if err != nil {
			return rep, fmt.Errorf("seed organization %s: %w", o.Slug, err)
		}
		rep.OrganizationsCreated++

		for _, p := range o.Policies {
			if _, err := sd.policies.CreatePolicy(ctx, org.ID, service.PolicyInput{
				Name:        p.Name,
				Priority:    p.Priority,
				Conditions:  p.Conditions,
				Effect:      p.Effect,
				Description: p.Description,
			}); err != nil {
				return rep, fmt.Errorf("seed policy %q: %w", p.Name, err)
			}
			rep.PoliciesCreated++
		}
		for _, g := range o.Gateways {
			if _, err := sd.orgs.RegisterGateway(ctx, org.ID, service.GatewayInput{
				ID:       g.ID,
				Name:     g.Name,
				APIKey:   g.APIKey,
				Argon2id: g.Argon2id,
			}); err != nil {
				return rep, fmt.Errorf("seed gateway %q: %w", g.ID, err)
			}
			rep.GatewaysRegistered++
		}
		sd.logger.Info("seed: organization created",
			"org_id", org.ID,
			"policies", len(o.Policies),
			"gateways", len(o.Gateways),
		)
	}
	return rep, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
	"github.com/Sentinel-Gate/accessgate/internal/ids"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// OrganizationInput is the provisioning payload for an organization.
type OrganizationInput struct {
	// ID is optional; a new identifier is generated when empty.
	ID   tenant.OrgID
	Name string
	Slug string
}

// GatewayInput is the registration payload for a gateway.
type GatewayInput struct {
	// ID is optional; a new identifier is generated when empty.
	ID   string
	Name string
	// APIKey is the raw credential. Only its hash is stored.
	APIKey string
	// Argon2id selects a salted Argon2id hash instead of SHA-256.
	Argon2id bool
}

// OrgService provisions organizations and registers gateways.
type OrgService struct {
	store  tenant.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewOrgService creates an OrgService over store.
func NewOrgService(store tenant.Store, logger *slog.Logger) *OrgService {
	return &OrgService{store: store, now: time.Now, logger: logger}
}

// CreateOrganization provisions a new organization.
func (s *OrgService) CreateOrganization(ctx context.Context, in OrganizationInput) (*tenant.Organization, error) {
	name := strings.TrimSpace(in.Name)
	slug := strings.TrimSpace(in.Slug)
	if name == "" {
		return nil, fault.Validation("name is required")
	}
	if !slugPattern.MatchString(slug) {
		return nil, fault.Validation("slug must be lowercase alphanumeric with dashes, got %q", in.Slug)
	}
	id := in.ID
	if id.IsZero() {
		id = tenant.OrgID(ids.New())
	}

	org := &tenant.Organization{ID: id, Name: name, Slug: slug, CreatedAt: s.now().UTC()}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	s.logger.Info("organization created", "org_id", org.ID, "slug", org.Slug)
	return org, nil
}

// GetOrganization returns an organization by ID.
func (s *OrgService) GetOrganization(ctx context.Context, id tenant.OrgID) (*tenant.Organization, error) {
	return s.store.GetOrganization(ctx, id)
}

// RenameOrganization changes the organization's display name.
func (s *OrgService) RenameOrganization(ctx context.Context, id tenant.OrgID, name string) (*tenant.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fault.Validation("name is required")
	}
	if err := s.store.RenameOrganization(ctx, id, name); err != nil {
		return nil, fmt.Errorf("rename organization: %w", err)
	}
	return s.store.GetOrganization(ctx, id)
}

// RegisterGateway hashes the gateway's API key and stores the gateway.
// The returned Gateway carries the hash, never the raw key.
func (s *OrgService) RegisterGateway(ctx context.Context, orgID tenant.OrgID, in GatewayInput) (*tenant.Gateway, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fault.Validation("name is required")
	}
	if len(in.APIKey) < 8 {
		return nil, fault.Validation("apiKey must be at least 8 characters")
	}

	hash := tenant.HashKey(in.APIKey)
	if in.Argon2id {
		var err error
		if hash, err = tenant.HashKeyArgon2id(in.APIKey); err != nil {
			return nil, fmt.Errorf("hash api key: %w", err)
		}
	}
	id := in.ID
	if id == "" {
		id = ids.New()
	}

	gw := &tenant.Gateway{OrgID: orgID, ID: id, Name: in.Name, APIKeyHash: hash, CreatedAt: s.now().UTC()}
	if err := s.store.CreateGateway(ctx, gw); err != nil {
		return nil, fmt.Errorf("register gateway: %w", err)
	}
	s.logger.Info("gateway registered", "org_id", orgID, "gateway_id", gw.ID, "hash_type", tenant.DetectHashType(hash))
	return gw, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// GatewayResolver maps gateway API keys to tenant identities.
//
// SHA-256 hashed keys are found by direct lookup. Argon2id hashed keys are
// found by verifying every Argon2id gateway in turn, which is slow; callers
// are expected to cache resolutions at the boundary.
type GatewayResolver struct {
	store  tenant.Store
	logger *slog.Logger
}

// NewGatewayResolver creates a GatewayResolver over store.
func NewGatewayResolver(store tenant.Store, logger *slog.Logger) *GatewayResolver {
	return &GatewayResolver{store: store, logger: logger}
}

// Resolve returns the organization and gateway owning apiKey.
// Returns fault.ErrNotFound for an unknown key and fault.ErrUnauthorized for an empty one.
func (r *GatewayResolver) Resolve(ctx context.Context, apiKey string) (tenant.GatewayIdentity, error) {
	if strings.TrimSpace(apiKey) == "" {
		return tenant.GatewayIdentity{}, fault.Unauthorized("api key is required")
	}

	gw, err := r.store.GetGatewayByKeyHash(ctx, tenant.HashKey(apiKey))
	if err == nil {
		return identityOf(gw), nil
	}
	if !errors.Is(err, fault.ErrNotFound) {
		return tenant.GatewayIdentity{}, fmt.Errorf("resolve gateway: %w", err)
	}

	gateways, err := r.store.ListGateways(ctx)
	if err != nil {
		return tenant.GatewayIdentity{}, fmt.Errorf("resolve gateway: %w", err)
	}
	for _, candidate := range gateways {
		if tenant.DetectHashType(candidate.APIKeyHash) != tenant.HashTypeArgon2id {
			continue
		}
		match, verifyErr := tenant.VerifyKey(apiKey, candidate.APIKeyHash)
		if verifyErr != nil {
			r.logger.Warn("skipping gateway with unusable key hash", "gateway_id", candidate.ID, "error", verifyErr)
			continue
		}
		if match {
			return identityOf(candidate), nil
		}
	}
	return tenant.GatewayIdentity{}, fault.NotFound("gateway credential")
}

func identityOf(gw *tenant.Gateway) tenant.GatewayIdentity {
	return tenant.GatewayIdentity{OrgID: gw.OrgID, GatewayID: gw.ID}
}

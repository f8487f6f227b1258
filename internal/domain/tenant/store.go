package tenant

import "context"

// Store persists organizations and gateways.
// Implementations: in-memory (dev, tests), SQL (sqlite, postgres).
type Store interface {
	// CreateOrganization stores a new organization.
	// Returns fault.ErrValidation if the slug is already taken.
	CreateOrganization(ctx context.Context, org *Organization) error

	// GetOrganization returns an organization by ID.
	// Returns fault.ErrNotFound if it doesn't exist.
	GetOrganization(ctx context.Context, id OrgID) (*Organization, error)

	// RenameOrganization updates the organization's name.
	// Returns fault.ErrNotFound if it doesn't exist.
	RenameOrganization(ctx context.Context, id OrgID, name string) error

	// CreateGateway registers a gateway under an existing organization.
	// Returns fault.ErrNotFound for an unknown organization and
	// fault.ErrValidation when the key hash collides with another gateway.
	CreateGateway(ctx context.Context, gw *Gateway) error

	// GetGatewayByKeyHash looks a gateway up by its stored SHA-256 key hash.
	// Returns fault.ErrNotFound if no gateway carries that hash.
	GetGatewayByKeyHash(ctx context.Context, keyHash string) (*Gateway, error)

	// ListGateways returns every gateway, for iteration-based key verification.
	ListGateways(ctx context.Context) ([]*Gateway, error)
}

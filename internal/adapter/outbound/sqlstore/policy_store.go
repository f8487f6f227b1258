package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Compile-time checks.
var (
	_ policy.Store = (*PolicyStore)(nil)
	_ tenant.Store = (*PolicyStore)(nil)
)

// PolicyStore implements policy.Store and tenant.Store.
type PolicyStore struct {
	*DB
}

// NewPolicyStore creates a PolicyStore over db.
func NewPolicyStore(db *DB) *PolicyStore {
	return &PolicyStore{DB: db}
}

// CreateOrganization inserts a new organization.
func (s *PolicyStore) CreateOrganization(ctx context.Context, org *tenant.Organization) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO organizations (id, name, slug, created_at) VALUES (?, ?, ?, ?)`),
		string(org.ID), org.Name, org.Slug, s.ts(org.CreatedAt))
	if isUniqueViolation(err) {
		return fault.Validation("organization %q or slug %q already exists", org.ID, org.Slug)
	}
	if err != nil {
		return storeErr("create organization", err)
	}
	return nil
}

// GetOrganization returns an organization by ID.
func (s *PolicyStore) GetOrganization(ctx context.Context, id tenant.OrgID) (*tenant.Organization, error) {
	var (
		org     tenant.Organization
		rawID   string
		created scanTime
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, slug, created_at FROM organizations WHERE id = ?`), string(id)).
		Scan(&rawID, &org.Name, &org.Slug, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("organization %s", id)
	}
	if err != nil {
		return nil, storeErr("get organization", err)
	}
	org.ID = tenant.OrgID(rawID)
	org.CreatedAt = created.Time
	return &org, nil
}

// RenameOrganization updates the organization's name.
func (s *PolicyStore) RenameOrganization(ctx context.Context, id tenant.OrgID, name string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE organizations SET name = ? WHERE id = ?`), name, string(id))
	if err != nil {
		return storeErr("rename organization", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("rename organization", err)
	}
	if n == 0 {
		return fault.NotFound("organization %s", id)
	}
	return nil
}

// ListPolicies returns the organization's policies in insertion order.
func (s *PolicyStore) ListPolicies(ctx context.Context, orgID tenant.OrgID) ([]policy.Policy, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, org_id, name, priority, conditions, effect, description, created_at, updated_at
		 FROM policies WHERE org_id = ? ORDER BY created_at, id`), string(orgID))
	if err != nil {
		return nil, storeErr("list policies", err)
	}
	defer rows.Close()

	result := []policy.Policy{}
	for rows.Next() {
		var (
			p                policy.Policy
			org, effect      string
			conds            []byte
			created, updated scanTime
		)
		if err := rows.Scan(&p.ID, &org, &p.Name, &p.Priority, &conds, &effect, &p.Description, &created, &updated); err != nil {
			return nil, storeErr("scan policy", err)
		}
		if err := json.Unmarshal(conds, &p.Conditions); err != nil {
			return nil, fmt.Errorf("decode conditions of policy %s: %w", p.ID, err)
		}
		p.OrgID = tenant.OrgID(org)
		p.Effect = policy.Effect(effect)
		p.CreatedAt = created.Time
		p.UpdatedAt = updated.Time
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list policies", err)
	}
	return result, nil
}

// CreatePolicy inserts p after checking its organization exists.
func (s *PolicyStore) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	conds, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("create policy", err)
	}
	defer rollback(tx)

	if err := s.orgExists(ctx, tx, p.OrgID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO policies (id, org_id, name, priority, conditions, effect, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, string(p.OrgID), p.Name, p.Priority, string(conds), string(p.Effect), p.Description,
		s.ts(p.CreatedAt), s.ts(p.UpdatedAt)); err != nil {
		if isUniqueViolation(err) {
			return fault.Validation("policy %q already exists", p.ID)
		}
		return storeErr("create policy", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("create policy", err)
	}
	return nil
}

// CreateGateway inserts gw after checking its organization exists.
func (s *PolicyStore) CreateGateway(ctx context.Context, gw *tenant.Gateway) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("create gateway", err)
	}
	defer rollback(tx)

	if err := s.orgExists(ctx, tx, gw.OrgID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO gateways (id, org_id, name, api_key_hash, created_at) VALUES (?, ?, ?, ?, ?)`),
		gw.ID, string(gw.OrgID), gw.Name, gw.APIKeyHash, s.ts(gw.CreatedAt)); err != nil {
		if isUniqueViolation(err) {
			return fault.Validation("gateway %q or its api key already registered", gw.ID)
		}
		return storeErr("create gateway", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("create gateway", err)
	}
	return nil
}

// GetGatewayByKeyHash returns the gateway stored with keyHash.
func (s *PolicyStore) GetGatewayByKeyHash(ctx context.Context, keyHash string) (*tenant.Gateway, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, org_id, name, api_key_hash, created_at FROM gateways WHERE api_key_hash = ?`), keyHash)
	gw, err := scanGateway(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("gateway key")
	}
	if err != nil {
		return nil, storeErr("get gateway", err)
	}
	return gw, nil
}

// ListGateways returns every gateway.
func (s *PolicyStore) ListGateways(ctx context.Context) ([]*tenant.Gateway, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, name, api_key_hash, created_at FROM gateways ORDER BY id`)
	if err != nil {
		return nil, storeErr("list gateways", err)
	}
	defer rows.Close()

	var result []*tenant.Gateway
	for rows.Next() {
		gw, err := scanGateway(rows)
		if err != nil {
			return nil, storeErr("scan gateway", err)
		}
		result = append(result, gw)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list gateways", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGateway(row rowScanner) (*tenant.Gateway, error) {
	var (
		gw      tenant.Gateway
		org     string
		created scanTime
	)
	if err := row.Scan(&gw.ID, &org, &gw.Name, &gw.APIKeyHash, &created); err != nil {
		return nil, err
	}
	gw.OrgID = tenant.OrgID(org)
	gw.CreatedAt = created.Time
	return &gw, nil
}

func (s *PolicyStore) orgExists(ctx context.Context, tx *sql.Tx, id tenant.OrgID) error {
	var one int
	err := tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM organizations WHERE id = ?`), string(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fault.NotFound("organization %s", id)
	}
	if err != nil {
		return storeErr("check organization", err)
	}
	return nil
}

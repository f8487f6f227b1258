//go:build integration

package sqlstore

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/session"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Run with: go test -tags=integration ./internal/adapter/outbound/sqlstore/...
func TestPostgres_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("accessgate"),
		postgres.WithUsername("accessgate"),
		postgres.WithPassword("accessgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("failed to terminate postgres container: %v", err)
		}
	}()

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := Open(ctx, Options{Dialect: DialectPostgres, DSN: dsn, MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("Open(postgres) error: %v", err)
	}
	defer db.Close()

	policies := NewPolicyStore(db)
	records := NewRecordStore(db)

	if err := policies.CreateOrganization(ctx, &tenant.Organization{ID: "acme", Name: "Acme", Slug: "acme", CreatedAt: t0}); err != nil {
		t.Fatalf("CreateOrganization() error: %v", err)
	}
	err = policies.CreateOrganization(ctx, &tenant.Organization{ID: "acme2", Name: "Acme", Slug: "acme", CreatedAt: t0})
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("duplicate slug error = %v, want ErrValidation", err)
	}

	p := &policy.Policy{
		ID: "p1", OrgID: "acme", Name: "Block", Priority: 150, Effect: policy.EffectDeny,
		Conditions: policy.Conditions{Countries: []string{"CN", "RU"}},
		CreatedAt:  t0, UpdatedAt: t0,
	}
	if err := policies.CreatePolicy(ctx, p); err != nil {
		t.Fatalf("CreatePolicy() error: %v", err)
	}
	got, err := policies.ListPolicies(ctx, "acme")
	if err != nil || len(got) != 1 || got[0].Conditions.Countries[1] != "RU" {
		t.Fatalf("ListPolicies() = %+v, %v", got, err)
	}

	if err := records.Append(ctx, recording("acme", "s1", "a", true, t0)); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := records.Append(ctx, recording("acme", "s1", "b", false, t0.Add(time.Second))); err != nil {
		t.Fatalf("Append(existing) error: %v", err)
	}
	if _, err := records.EndSession(ctx, "s1", t0.Add(time.Minute)); err != nil {
		t.Fatalf("EndSession() error: %v", err)
	}
	again, err := records.EndSession(ctx, "s1", t0.Add(time.Hour))
	if err != nil || again.Status != session.StatusEnded || !again.EndedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("second EndSession() = %+v, %v", again, err)
	}

	logs, err := records.ListAuditLogs(ctx, "acme", 10, 0)
	if err != nil || len(logs) != 2 || logs[0].ID != "log-b" {
		t.Fatalf("ListAuditLogs() = %+v, %v", logs, err)
	}
}

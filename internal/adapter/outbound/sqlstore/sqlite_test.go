package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/audit"
	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/policy"
	"github.com/Sentinel-Gate/accessgate/internal/domain/session"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

var t0 = time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

// openSQLite opens a file database with the plain DSN operators configure;
// Open supplies the pragmas and pool settings.
func openSQLite(t *testing.T) *DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "accessgate.db")
	db, err := Open(context.Background(), Options{Dialect: DialectSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("Open(sqlite) error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createOrg(t *testing.T, s *PolicyStore, id tenant.OrgID) {
	t.Helper()
	if err := s.CreateOrganization(context.Background(), &tenant.Organization{
		ID: id, Name: string(id), Slug: string(id), CreatedAt: t0,
	}); err != nil {
		t.Fatalf("CreateOrganization(%s) error: %v", id, err)
	}
}

func TestSQLite_Organizations(t *testing.T) {
	ctx := context.Background()
	store := NewPolicyStore(openSQLite(t))
	createOrg(t, store, "acme")

	err := store.CreateOrganization(ctx, &tenant.Organization{ID: "acme-2", Name: "x", Slug: "acme", CreatedAt: t0})
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("duplicate slug error = %v, want ErrValidation", err)
	}

	if err := store.RenameOrganization(ctx, "acme", "Acme Corp"); err != nil {
		t.Fatalf("RenameOrganization() error: %v", err)
	}
	org, err := store.GetOrganization(ctx, "acme")
	if err != nil {
		t.Fatalf("GetOrganization() error: %v", err)
	}
	if org.Name != "Acme Corp" || !org.CreatedAt.Equal(t0) {
		t.Errorf("org = %+v", org)
	}
	if _, err := store.GetOrganization(ctx, "none"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("GetOrganization(none) error = %v, want ErrNotFound", err)
	}
	if err := store.RenameOrganization(ctx, "none", "x"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("RenameOrganization(none) error = %v, want ErrNotFound", err)
	}
}

func TestSQLite_Policies(t *testing.T) {
	ctx := context.Background()
	store := NewPolicyStore(openSQLite(t))
	createOrg(t, store, "acme")

	for i, name := range []string{"first", "second", "third"} {
		p := &policy.Policy{
			ID: fmt.Sprintf("01J00000000000000000000%03d", i), OrgID: "acme", Name: name, Priority: 100,
			Effect: policy.EffectAllow,
			Conditions: policy.Conditions{
				Roles:      []string{"ENGINEER"},
				TimeWindow: &policy.TimeWindow{Start: "09:00", End: "17:00"},
			},
			CreatedAt: t0, UpdatedAt: t0,
		}
		if err := store.CreatePolicy(ctx, p); err != nil {
			t.Fatalf("CreatePolicy(%s) error: %v", name, err)
		}
	}

	got, err := store.ListPolicies(ctx, "acme")
	if err != nil {
		t.Fatalf("ListPolicies() error: %v", err)
	}
	if len(got) != 3 || got[0].Name != "first" || got[2].Name != "third" {
		t.Fatalf("ListPolicies() order = %v", got)
	}
	if got[0].Conditions.TimeWindow == nil || got[0].Conditions.Roles[0] != "ENGINEER" {
		t.Errorf("conditions not round-tripped: %+v", got[0].Conditions)
	}

	none, err := store.ListPolicies(ctx, "globex")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("ListPolicies(globex) = %v, %v; want empty slice", none, err)
	}

	err = store.CreatePolicy(ctx, &policy.Policy{ID: "x", OrgID: "globex", Name: "x", Effect: policy.EffectDeny, CreatedAt: t0, UpdatedAt: t0})
	if !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("CreatePolicy(unknown org) error = %v, want ErrNotFound", err)
	}
}

func TestSQLite_Gateways(t *testing.T) {
	ctx := context.Background()
	store := NewPolicyStore(openSQLite(t))
	createOrg(t, store, "acme")

	gw := &tenant.Gateway{OrgID: "acme", ID: "acme-sfo-1", Name: "SFO", APIKeyHash: tenant.HashKey("k"), CreatedAt: t0}
	if err := store.CreateGateway(ctx, gw); err != nil {
		t.Fatalf("CreateGateway() error: %v", err)
	}
	dup := &tenant.Gateway{OrgID: "acme", ID: "acme-sfo-2", Name: "dup", APIKeyHash: tenant.HashKey("k"), CreatedAt: t0}
	if err := store.CreateGateway(ctx, dup); !errors.Is(err, fault.ErrValidation) {
		t.Errorf("duplicate key hash error = %v, want ErrValidation", err)
	}

	got, err := store.GetGatewayByKeyHash(ctx, tenant.HashKey("k"))
	if err != nil || got.ID != "acme-sfo-1" || got.OrgID != "acme" {
		t.Fatalf("GetGatewayByKeyHash() = %+v, %v", got, err)
	}
	if _, err := store.GetGatewayByKeyHash(ctx, tenant.HashKey("other")); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("unknown hash error = %v, want ErrNotFound", err)
	}
	all, err := store.ListGateways(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("ListGateways() = %v, %v", all, err)
	}
}

func recording(org tenant.OrgID, sessionID, suffix string, create bool, at time.Time) *session.Recording {
	rec := &session.Recording{
		OrgID: org,
		Hit: session.PolicyHit{
			ID: "hit-" + suffix, SessionID: sessionID, PolicyID: "p-" + suffix, Decision: "DENY",
			Resource: "ssh://db", Country: "CN", DeviceTrustLevel: "HIGH", HitAt: at,
		},
		Audit: audit.Log{
			ID: "log-" + suffix, OrgID: org, UserID: "u1", Action: audit.ActionAccessRequest,
			Resource: "ssh://db", Status: "DENY", Details: audit.AccessDetails("p-"+suffix, "gw-1", "CN", "HIGH"),
			CreatedAt: at,
		},
	}
	if create {
		rec.NewSession = &session.Session{
			ID: sessionID, OrgID: org, UserID: "u1", GatewayID: "gw-1", StartedAt: at, Status: session.StatusActive,
		}
	}
	return rec
}

func TestSQLite_RecordTwiceSameSession(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(openSQLite(t))

	if err := store.Append(ctx, recording("acme", "s1", "a", true, t0)); err != nil {
		t.Fatalf("Append(new session) error: %v", err)
	}
	if err := store.Append(ctx, recording("acme", "s1", "b", false, t0.Add(time.Second))); err != nil {
		t.Fatalf("Append(existing session) error: %v", err)
	}

	sessions, err := store.ListSessions(ctx, "acme", 0, 0)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("ListSessions() = %v, %v; want 1", sessions, err)
	}
	if sessions[0].GatewayID != "gw-1" || sessions[0].Status != session.StatusActive || sessions[0].EndedAt != nil {
		t.Errorf("session = %+v", sessions[0])
	}

	hits, err := store.ListPolicyHits(ctx, "s1")
	if err != nil || len(hits) != 2 || hits[0].PolicyID != "p-a" || hits[1].PolicyID != "p-b" {
		t.Fatalf("ListPolicyHits() = %+v, %v", hits, err)
	}

	logs, err := store.ListAuditLogs(ctx, "acme", 0, 0)
	if err != nil || len(logs) != 2 {
		t.Fatalf("ListAuditLogs() = %v, %v", logs, err)
	}
	if logs[0].ID != "log-b" {
		t.Errorf("newest audit log = %s, want log-b", logs[0].ID)
	}
	if logs[0].Details["policyId"] != "p-b" || logs[0].Details["country"] != "CN" {
		t.Errorf("details = %v", logs[0].Details)
	}
}

func TestSQLite_AppendUnknownSessionWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(openSQLite(t))
	_ = store.Append(ctx, recording("acme", "s1", "a", true, t0))

	if err := store.Append(ctx, recording("acme", "ghost", "g", false, t0)); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("unknown session error = %v, want ErrNotFound", err)
	}
	if err := store.Append(ctx, recording("globex", "s1", "x", false, t0)); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("foreign session error = %v, want ErrNotFound", err)
	}

	logs, _ := store.ListAuditLogs(ctx, "acme", 0, 0)
	if len(logs) != 1 {
		t.Errorf("audit logs = %d, want 1", len(logs))
	}
	foreign, _ := store.ListAuditLogs(ctx, "globex", 0, 0)
	if len(foreign) != 0 {
		t.Errorf("foreign org audit logs = %d, want 0", len(foreign))
	}
}

func TestSQLite_EndSession(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(openSQLite(t))
	_ = store.Append(ctx, recording("acme", "s1", "a", true, t0))

	first, err := store.EndSession(ctx, "s1", t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("EndSession() error: %v", err)
	}
	if first.Status != session.StatusEnded || first.EndedAt == nil || !first.EndedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("after first EndSession: %+v", first)
	}

	second, err := store.EndSession(ctx, "s1", t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("EndSession() second call error: %v", err)
	}
	if !second.EndedAt.Equal(*first.EndedAt) {
		t.Errorf("EndedAt changed to %v on repeated call", second.EndedAt)
	}

	if _, err := store.EndSession(ctx, "ghost", t0); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("EndSession(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestSQLite_ListNewestFirstWithPaging(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(openSQLite(t))
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		at := t0.Add(time.Duration(i) * 1500 * time.Millisecond)
		if err := store.Append(ctx, recording("acme", id, id, true, at)); err != nil {
			t.Fatalf("Append(%s) error: %v", id, err)
		}
	}

	got, err := store.ListSessions(ctx, "acme", 2, 1)
	if err != nil {
		t.Fatalf("ListSessions() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "s3" || got[1].ID != "s2" {
		t.Fatalf("ListSessions(2,1) = %v", got)
	}

	logs, _ := store.ListAuditLogs(ctx, "acme", 1, 0)
	if len(logs) != 1 || logs[0].ID != "log-s4" {
		t.Fatalf("ListAuditLogs(1,0) = %v", logs)
	}
}

func TestSQLite_PolicyHitsCascadeWithSession(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	store := NewRecordStore(db)
	_ = store.Append(ctx, recording("acme", "s1", "a", true, t0))

	if _, err := db.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = 's1'`); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	var hits, logs int
	_ = db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policy_hits`).Scan(&hits)
	_ = db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&logs)
	if hits != 0 {
		t.Errorf("policy hits after session delete = %d, want 0", hits)
	}
	if logs != 1 {
		t.Errorf("audit logs after session delete = %d, want 1", logs)
	}
}

func TestSQLite_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(openSQLite(t))

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%02d", i)
			errs <- store.Append(ctx, recording("acme", id, id, true, t0.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			failed++
			t.Logf("Append error: %v", err)
		}
	}
	if failed > 0 {
		t.Fatalf("%d/%d concurrent appends failed", failed, n)
	}
	sessions, err := store.ListSessions(ctx, "acme", 500, 0)
	if err != nil {
		t.Fatalf("ListSessions() error: %v", err)
	}
	if len(sessions) != n {
		t.Errorf("sessions = %d, want %d", len(sessions), n)
	}
}

func TestSQLite_ForeignKeysEnforced(t *testing.T) {
	db := openSQLite(t)

	_, err := db.db.ExecContext(context.Background(),
		`INSERT INTO gateways (id, org_id, name, api_key_hash, created_at) VALUES ('gw', 'missing', 'gw', 'sha256:00', '2026-01-01T00:00:00.000000000Z')`)
	if err == nil {
		t.Fatal("insert gateway for a missing organization succeeded, want foreign key error")
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "plain file",
			dsn:  "file:accessgate.db",
			want: "file:accessgate.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
		{
			name: "existing query",
			dsn:  "file:accessgate.db?mode=rwc",
			want: "file:accessgate.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
		{
			name: "operator pragma kept",
			dsn:  "file:accessgate.db?_pragma=busy_timeout(100)",
			want: "file:accessgate.db?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sqliteDSN(tt.dsn); got != tt.want {
				t.Errorf("sqliteDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestSQLite_MigrateIsRepeatable(t *testing.T) {
	db := openSQLite(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	if _, err := Open(context.Background(), Options{Dialect: "mysql"}); err == nil {
		t.Fatal("Open(mysql) error = nil, want error")
	}
}

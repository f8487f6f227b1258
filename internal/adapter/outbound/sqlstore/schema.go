package sqlstore

import (
	"context"
	"fmt"
	"strings"
)

// schema is written with {ts} and {json} placeholders filled per dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		slug       TEXT NOT NULL UNIQUE,
		created_at {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS policies (
		id          TEXT PRIMARY KEY,
		org_id      TEXT NOT NULL REFERENCES organizations(id),
		name        TEXT NOT NULL,
		priority    INTEGER NOT NULL,
		conditions  {json} NOT NULL,
		effect      TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  {ts} NOT NULL,
		updated_at  {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_policies_org ON policies (org_id, created_at, id)`,
	`CREATE TABLE IF NOT EXISTS gateways (
		id           TEXT PRIMARY KEY,
		org_id       TEXT NOT NULL REFERENCES organizations(id),
		name         TEXT NOT NULL,
		api_key_hash TEXT NOT NULL UNIQUE,
		created_at   {ts} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		org_id     TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		gateway_id TEXT,
		started_at {ts} NOT NULL,
		ended_at   {ts},
		status     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_org ON sessions (org_id, started_at, id)`,
	`CREATE TABLE IF NOT EXISTS policy_hits (
		id                 TEXT PRIMARY KEY,
		session_id         TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		policy_id          TEXT NOT NULL,
		decision           TEXT NOT NULL,
		resource           TEXT,
		country            TEXT,
		device_trust_level TEXT,
		hit_at             {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_policy_hits_session ON policy_hits (session_id, hit_at)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id         TEXT PRIMARY KEY,
		org_id     TEXT NOT NULL,
		user_id    TEXT,
		action     TEXT NOT NULL,
		resource   TEXT,
		status     TEXT,
		details    {json} NOT NULL,
		created_at {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_org ON audit_logs (org_id, created_at, id)`,
}

// Migrate creates missing tables and indexes. It is safe to run repeatedly.
func (d *DB) Migrate(ctx context.Context) error {
	ts, js := "TEXT", "TEXT"
	if d.dialect == DialectPostgres {
		ts, js = "TIMESTAMPTZ", "JSONB"
	}
	r := strings.NewReplacer("{ts}", ts, "{json}", js)
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

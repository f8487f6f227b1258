package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/audit"
	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/session"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Compile-time check that RecordStore implements session.RecordStore.
var _ session.RecordStore = (*RecordStore)(nil)

// RecordStore implements session.RecordStore. Append runs in one transaction.
type RecordStore struct {
	*DB
}

// NewRecordStore creates a RecordStore over db.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{DB: db}
}

// Append writes the session (if new), the policy hit and the audit log in one transaction.
func (s *RecordStore) Append(ctx context.Context, rec *session.Recording) error {
	details, err := json.Marshal(rec.Audit.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("record decision", err)
	}
	defer rollback(tx)

	if ns := rec.NewSession; ns != nil {
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO sessions (id, org_id, user_id, gateway_id, started_at, ended_at, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			ns.ID, string(ns.OrgID), ns.UserID, nullString(ns.GatewayID), s.ts(ns.StartedAt),
			s.nullTS(ns.EndedAt), string(ns.Status)); err != nil {
			if isUniqueViolation(err) {
				return fault.Validation("session %q already exists", ns.ID)
			}
			return storeErr("insert session", err)
		}
	} else {
		var org string
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT org_id FROM sessions WHERE id = ?`), rec.Hit.SessionID).Scan(&org)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && tenant.OrgID(org) != rec.OrgID) {
			return fault.NotFound("session %s", rec.Hit.SessionID)
		}
		if err != nil {
			return storeErr("check session", err)
		}
	}

	h := rec.Hit
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO policy_hits (id, session_id, policy_id, decision, resource, country, device_trust_level, hit_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		h.ID, h.SessionID, h.PolicyID, h.Decision, nullString(h.Resource), nullString(h.Country),
		nullString(h.DeviceTrustLevel), s.ts(h.HitAt)); err != nil {
		return storeErr("insert policy hit", err)
	}

	a := rec.Audit
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO audit_logs (id, org_id, user_id, action, resource, status, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, string(a.OrgID), nullString(a.UserID), a.Action, nullString(a.Resource), nullString(a.Status),
		string(details), s.ts(a.CreatedAt)); err != nil {
		return storeErr("insert audit log", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("record decision", err)
	}
	return nil
}

const sessionColumns = `id, org_id, user_id, gateway_id, started_at, ended_at, status`

// GetSession returns a session by ID.
func (s *RecordStore) GetSession(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("session %s", id)
	}
	if err != nil {
		return nil, storeErr("get session", err)
	}
	return sess, nil
}

// EndSession sets ENDED on an ACTIVE session. Ended sessions are left untouched.
func (s *RecordStore) EndSession(ctx context.Context, id string, endedAt time.Time) (*session.Session, error) {
	if _, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ? AND status = ?`),
		string(session.StatusEnded), s.ts(endedAt), id, string(session.StatusActive)); err != nil {
		return nil, storeErr("end session", err)
	}
	return s.GetSession(ctx, id)
}

// ListSessions returns the organization's sessions newest first.
func (s *RecordStore) ListSessions(ctx context.Context, orgID tenant.OrgID, limit, offset int) ([]session.Session, error) {
	limit, offset = session.NormalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+sessionColumns+` FROM sessions WHERE org_id = ?
		 ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`), string(orgID), limit, offset)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	defer rows.Close()

	result := []session.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storeErr("scan session", err)
		}
		result = append(result, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list sessions", err)
	}
	return result, nil
}

// ListPolicyHits returns the session's hits oldest first.
func (s *RecordStore) ListPolicyHits(ctx context.Context, sessionID string) ([]session.PolicyHit, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, session_id, policy_id, decision, resource, country, device_trust_level, hit_at
		 FROM policy_hits WHERE session_id = ? ORDER BY hit_at, id`), sessionID)
	if err != nil {
		return nil, storeErr("list policy hits", err)
	}
	defer rows.Close()

	result := []session.PolicyHit{}
	for rows.Next() {
		var (
			h                        session.PolicyHit
			resource, country, trust sql.NullString
			hitAt                    scanTime
		)
		if err := rows.Scan(&h.ID, &h.SessionID, &h.PolicyID, &h.Decision, &resource, &country, &trust, &hitAt); err != nil {
			return nil, storeErr("scan policy hit", err)
		}
		h.Resource, h.Country, h.DeviceTrustLevel = resource.String, country.String, trust.String
		h.HitAt = hitAt.Time
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list policy hits", err)
	}
	return result, nil
}

// ListAuditLogs returns the organization's audit entries newest first.
func (s *RecordStore) ListAuditLogs(ctx context.Context, orgID tenant.OrgID, limit, offset int) ([]audit.Log, error) {
	limit, offset = session.NormalizePage(limit, offset)
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, org_id, user_id, action, resource, status, details, created_at
		 FROM audit_logs WHERE org_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), string(orgID), limit, offset)
	if err != nil {
		return nil, storeErr("list audit logs", err)
	}
	defer rows.Close()

	result := []audit.Log{}
	for rows.Next() {
		var (
			l                      audit.Log
			org                    string
			user, resource, status sql.NullString
			details                []byte
			created                scanTime
		)
		if err := rows.Scan(&l.ID, &org, &user, &l.Action, &resource, &status, &details, &created); err != nil {
			return nil, storeErr("scan audit log", err)
		}
		if err := json.Unmarshal(details, &l.Details); err != nil {
			return nil, fmt.Errorf("decode details of audit log %s: %w", l.ID, err)
		}
		l.OrgID = tenant.OrgID(org)
		l.UserID, l.Resource, l.Status = user.String, resource.String, status.String
		l.CreatedAt = created.Time
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list audit logs", err)
	}
	return result, nil
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		sess           session.Session
		org, status    string
		gateway        sql.NullString
		started, ended scanTime
	)
	if err := row.Scan(&sess.ID, &org, &sess.UserID, &gateway, &started, &ended, &status); err != nil {
		return nil, err
	}
	sess.OrgID = tenant.OrgID(org)
	sess.GatewayID = gateway.String
	sess.StartedAt = started.Time
	sess.EndedAt = ended.ptr()
	sess.Status = session.Status(status)
	return &sess, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

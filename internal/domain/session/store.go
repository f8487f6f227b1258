package session

import (
	"context"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/audit"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// RecordStore persists sessions, policy hits and audit logs.
// Implementations: in-memory (dev, tests), SQL (sqlite, postgres).
type RecordStore interface {
	audit.Reader

	// Append writes a Recording atomically.
	// Returns fault.ErrNotFound when Recording.NewSession is nil and the
	// referenced session doesn't exist or belongs to another organization.
	Append(ctx context.Context, rec *Recording) error

	// GetSession returns a session by ID.
	// Returns fault.ErrNotFound if it doesn't exist.
	GetSession(ctx context.Context, id string) (*Session, error)

	// EndSession marks the session ENDED at endedAt on the first call.
	// Later calls leave it unchanged. Returns the stored session.
	// Returns fault.ErrNotFound if it doesn't exist.
	EndSession(ctx context.Context, id string, endedAt time.Time) (*Session, error)

	// ListSessions returns the organization's sessions newest first
	// (StartedAt DESC, ID DESC).
	ListSessions(ctx context.Context, orgID tenant.OrgID, limit, offset int) ([]Session, error)

	// ListPolicyHits returns a session's hits oldest first.
	ListPolicyHits(ctx context.Context, sessionID string) ([]PolicyHit, error)
}

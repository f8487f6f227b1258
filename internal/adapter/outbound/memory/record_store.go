package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/audit"
	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
	"github.com/Sentinel-Gate/accessgate/internal/domain/session"
	"github.com/Sentinel-Gate/accessgate/internal/domain/tenant"
)

// Compile-time check that MemoryRecordStore implements session.RecordStore.
var _ session.RecordStore = (*MemoryRecordStore)(nil)

// MemoryRecordStore implements session.RecordStore in memory.
// Each Append runs under a single write lock, which makes the three writes
// of a Recording atomic with respect to readers.
type MemoryRecordStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	hits     map[string][]session.PolicyHit // session ID -> hits
	logs     map[tenant.OrgID][]audit.Log
}

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		sessions: make(map[string]*session.Session),
		hits:     make(map[string][]session.PolicyHit),
		logs:     make(map[tenant.OrgID][]audit.Log),
	}
}

// Append writes the session (if new), the policy hit and the audit log.
func (s *MemoryRecordStore) Append(ctx context.Context, rec *session.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.NewSession != nil {
		if _, ok := s.sessions[rec.NewSession.ID]; ok {
			return fault.Validation("session %q already exists", rec.NewSession.ID)
		}
	} else {
		existing, ok := s.sessions[rec.Hit.SessionID]
		if !ok || existing.OrgID != rec.OrgID {
			return fault.NotFound("session %s", rec.Hit.SessionID)
		}
	}

	if rec.NewSession != nil {
		s.sessions[rec.NewSession.ID] = rec.NewSession.Clone()
	}
	s.hits[rec.Hit.SessionID] = append(s.hits[rec.Hit.SessionID], rec.Hit)
	entry := rec.Audit
	entry.Details = maps.Clone(rec.Audit.Details)
	s.logs[rec.OrgID] = append(s.logs[rec.OrgID], entry)
	return nil
}

// GetSession returns a copy of the session.
func (s *MemoryRecordStore) GetSession(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fault.NotFound("session %s", id)
	}
	return sess.Clone(), nil
}

// EndSession ends the session on the first call and is a no-op afterwards.
func (s *MemoryRecordStore) EndSession(ctx context.Context, id string, endedAt time.Time) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fault.NotFound("session %s", id)
	}
	sess.End(endedAt)
	return sess.Clone(), nil
}

// ListSessions returns the organization's sessions newest first.
func (s *MemoryRecordStore) ListSessions(ctx context.Context, orgID tenant.OrgID, limit, offset int) ([]session.Session, error) {
	s.mu.RLock()
	var matched []session.Session
	for _, sess := range s.sessions {
		if sess.OrgID == orgID {
			matched = append(matched, *sess.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].StartedAt.After(matched[j].StartedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return page(matched, limit, offset), nil
}

// ListPolicyHits returns the session's hits in append order.
func (s *MemoryRecordStore) ListPolicyHits(ctx context.Context, sessionID string) ([]session.PolicyHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fault.NotFound("session %s", sessionID)
	}
	hits := s.hits[sessionID]
	result := make([]session.PolicyHit, len(hits))
	copy(result, hits)
	return result, nil
}

// ListAuditLogs returns the organization's audit entries newest first.
func (s *MemoryRecordStore) ListAuditLogs(ctx context.Context, orgID tenant.OrgID, limit, offset int) ([]audit.Log, error) {
	s.mu.RLock()
	stored := s.logs[orgID]
	logs := make([]audit.Log, len(stored))
	for i, l := range stored {
		l.Details = maps.Clone(l.Details)
		logs[i] = l
	}
	s.mu.RUnlock()

	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].CreatedAt.After(logs[j].CreatedAt)
		}
		return logs[i].ID > logs[j].ID
	})
	return page(logs, limit, offset), nil
}

// page applies session.NormalizePage and slices items accordingly.
func page[T any](items []T, limit, offset int) []T {
	limit, offset = session.NormalizePage(limit, offset)
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

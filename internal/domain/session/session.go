package session

import "time"

// Paging bounds for list queries.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// NormalizePage applies the default and maximum limit and clamps a
// negative offset to zero.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// End marks the session ENDED at now. It reports false and leaves the
// session untouched when it has already ended.
func (s *Session) End(now time.Time) bool {
	if s.Status == StatusEnded {
		return false
	}
	s.Status = StatusEnded
	ended := now.UTC()
	s.EndedAt = &ended
	return true
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

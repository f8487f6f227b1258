package session

import (
	"testing"
	"time"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultLimit, 0},
		{-5, -1, DefaultLimit, 0},
		{10, 20, 10, 20},
		{MaxLimit + 1, 0, MaxLimit, 0},
	}
	for _, tt := range tests {
		l, o := NormalizePage(tt.limit, tt.offset)
		if l != tt.wantLimit || o != tt.wantOffset {
			t.Errorf("NormalizePage(%d, %d) = (%d, %d), want (%d, %d)",
				tt.limit, tt.offset, l, o, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestSession_End(t *testing.T) {
	s := &Session{ID: "s1", Status: StatusActive}
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	if !s.End(first) {
		t.Fatal("End() = false on active session, want true")
	}
	if s.Status != StatusEnded || s.EndedAt == nil || !s.EndedAt.Equal(first) {
		t.Fatalf("after End: status=%v endedAt=%v", s.Status, s.EndedAt)
	}

	if s.End(first.Add(time.Hour)) {
		t.Fatal("End() = true on ended session, want false")
	}
	if !s.EndedAt.Equal(first) {
		t.Errorf("EndedAt moved to %v on repeated End", s.EndedAt)
	}
}

func TestSession_Clone(t *testing.T) {
	now := time.Now().UTC()
	s := &Session{ID: "s1", EndedAt: &now}
	c := s.Clone()
	*c.EndedAt = now.Add(time.Hour)
	if !s.EndedAt.Equal(now) {
		t.Error("Clone shares EndedAt with the original")
	}
}

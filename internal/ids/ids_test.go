package ids

import (
	"sort"
	"testing"
)

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("New() produced duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestNew_SortsInCreationOrder(t *testing.T) {
	created := make([]string, 100)
	for i := range created {
		created[i] = New()
	}

	sorted := append([]string(nil), created...)
	sort.Strings(sorted)

	for i := range created {
		if created[i] != sorted[i] {
			t.Fatalf("id %d out of order: %s vs %s", i, created[i], sorted[i])
		}
	}
}

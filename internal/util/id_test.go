package util

import (
	"strings"
	"testing"
)

func TestNewIDUsesPrefix(t *testing.T) {
	id := NewID("off")
	if !strings.HasPrefix(id, "off_") {
		t.Fatalf("expected off_ prefix, got %q", id)
	}
	if len(id) != len("off_")+32 {
		t.Fatalf("unexpected id length %d for %q", len(id), id)
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := NewID("")
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewIDSortsInCreationOrder(t *testing.T) {
	prev := NewID("off")
	for i := 0; i < 1000; i++ {
		next := NewID("off")
		if next <= prev {
			t.Fatalf("id %d out of order: %q after %q", i, next, prev)
		}
		prev = next
	}
}

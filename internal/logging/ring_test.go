package logging

import (
	"fmt"
	"testing"
)

func TestRingKeepsMostRecent(t *testing.T) {
	ring := NewRing(3)
	for i := 0; i < 5; i++ {
		ring.Add(fmt.Sprintf("entry-%d", i))
	}
	entries := ring.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if entries[i].Message != want {
			t.Fatalf("entry %d: expected %q, got %q", i, want, entries[i].Message)
		}
	}
	if ring.Len() != 3 {
		t.Fatalf("expected len 3, got %d", ring.Len())
	}
}

func TestRingDefaultCapacity(t *testing.T) {
	ring := NewRing(0)
	for i := 0; i < defaultRingCapacity+10; i++ {
		ring.Add("entry")
	}
	if ring.Len() != defaultRingCapacity {
		t.Fatalf("expected len %d, got %d", defaultRingCapacity, ring.Len())
	}
}

func TestRingFields(t *testing.T) {
	ring := NewRing(2)
	ring.Add("unrecognized", F("method", "thread/fancyNewThing"))
	entries := ring.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if len(entries[0].Fields) != 1 || entries[0].Fields[0].Key != "method" {
		t.Fatalf("unexpected fields: %+v", entries[0].Fields)
	}
}

func TestNilRingIsSafe(t *testing.T) {
	var ring *Ring
	ring.Add("ignored")
	if ring.Len() != 0 {
		t.Fatalf("expected 0")
	}
	if entries := ring.Entries(); entries != nil {
		t.Fatalf("expected nil entries, got %v", entries)
	}
}

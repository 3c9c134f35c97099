package cache

import (
	"testing"

	"botboard/internal/backend"
)

func TestStoreGetMissing(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get("nope"); ok {
		t.Error("Get() reported an entry for an unknown conversation")
	}
	if s.Has("nope") {
		t.Error("Has() = true for an unknown conversation")
	}
}

func TestStorePutGet(t *testing.T) {
	s := NewStore()
	s.Put("c1", Entry{Messages: []backend.Message{{ID: "m1", Timestamp: 100}}})

	if !s.Has("c1") {
		t.Fatal("Has() = false after Put")
	}
	e, ok := s.Get("c1")
	if !ok || len(e.Messages) != 1 || e.Messages[0].ID != "m1" {
		t.Errorf("Get() = %+v, ok=%v", e, ok)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	s := NewStore()
	original := []backend.Message{{ID: "m1", Timestamp: 100}}
	s.Put("c1", Entry{Messages: original})

	// Mutating the slice we passed in must not affect the cache.
	original[0].ID = "corrupted"
	e, _ := s.Get("c1")
	if e.Messages[0].ID != "m1" {
		t.Error("cache aliased the caller's slice on Put")
	}

	// Mutating a returned snapshot must not affect the cache either.
	e.Messages[0].ID = "corrupted"
	again, _ := s.Get("c1")
	if again.Messages[0].ID != "m1" {
		t.Error("cache aliased the snapshot returned by Get")
	}
}

func TestStoreRePutReplaces(t *testing.T) {
	s := NewStore()
	s.Put("c1", Entry{Messages: []backend.Message{{ID: "m1"}}})
	s.Put("c1", Entry{Messages: []backend.Message{{ID: "m1"}, {ID: "m2"}}})

	e, _ := s.Get("c1")
	if len(e.Messages) != 2 {
		t.Errorf("got %d messages, want 2", len(e.Messages))
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

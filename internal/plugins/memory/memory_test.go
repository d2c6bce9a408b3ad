package memory

import (
	"slices"
	"testing"
	"time"

	"chatpulse/internal/core/domain"
)

func TestPresenceUpsertReportsExistence(t *testing.T) {
	p := NewPresenceMap()

	p.Upsert("alice", func(rec *domain.PresenceRecord, existed bool) {
		if existed {
			t.Fatal("fresh record reported as existing")
		}
		if rec.UserID != "alice" {
			t.Fatalf("userID not seeded, got %q", rec.UserID)
		}
		rec.IsOnline = true
	})
	p.Upsert("alice", func(rec *domain.PresenceRecord, existed bool) {
		if !existed {
			t.Fatal("existing record reported as fresh")
		}
		if !rec.IsOnline {
			t.Fatal("previous mutation lost")
		}
	})
}

func TestPresenceGetReturnsCopy(t *testing.T) {
	p := NewPresenceMap()
	p.Upsert("alice", func(rec *domain.PresenceRecord, _ bool) {
		rec.CurrentRoom = "bob"
	})

	rec, ok := p.Get("alice")
	if !ok {
		t.Fatal("record missing")
	}
	rec.CurrentRoom = "mallory"

	fresh, _ := p.Get("alice")
	if fresh.CurrentRoom != "bob" {
		t.Fatal("mutating the returned copy leaked into the store")
	}
}

func TestPresenceMutateMissingRecord(t *testing.T) {
	p := NewPresenceMap()
	if p.Mutate("ghost", func(*domain.PresenceRecord) {}) {
		t.Fatal("mutate reported success for a missing record")
	}
}

func TestPresenceRangeAndDelete(t *testing.T) {
	p := NewPresenceMap()
	p.Upsert("alice", func(rec *domain.PresenceRecord, _ bool) {})
	p.Upsert("bob", func(rec *domain.PresenceRecord, _ bool) {})

	var seen []string
	p.Range(func(rec domain.PresenceRecord) bool {
		seen = append(seen, rec.UserID)
		return true
	})
	if len(seen) != 2 {
		t.Fatalf("range visited %d records, want 2", len(seen))
	}

	p.Delete("alice")
	if _, ok := p.Get("alice"); ok {
		t.Fatal("deleted record still present")
	}
}

func TestRoomMembership(t *testing.T) {
	r := NewRoomMap()
	r.Add("alice", "bob")
	r.Add("alice", "carol")

	members := r.Members("alice")
	if len(members) != 2 || !slices.Contains(members, "bob") || !slices.Contains(members, "carol") {
		t.Fatalf("members = %v", members)
	}

	r.Remove("alice", "bob")
	if slices.Contains(r.Members("alice"), "bob") {
		t.Fatal("removed member still listed")
	}
	r.Remove("alice", "carol")
	if r.Members("alice") != nil {
		t.Fatal("empty room should report no members")
	}
	// Removing from a gone room is a no-op.
	r.Remove("alice", "carol")
}

func TestCooldownPurgeBefore(t *testing.T) {
	c := NewCooldownMap()
	now := time.Now()
	c.Set("old", now.Add(-time.Hour))
	c.Set("fresh", now)

	if purged := c.PurgeBefore(now.Add(-time.Minute)); purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if _, ok := c.Last("old"); ok {
		t.Fatal("old entry survived purge")
	}
	if _, ok := c.Last("fresh"); !ok {
		t.Fatal("fresh entry was purged")
	}

	c.Delete("fresh")
	if _, ok := c.Last("fresh"); ok {
		t.Fatal("deleted entry still present")
	}
}

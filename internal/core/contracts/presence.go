package contracts

import (
	"time"

	"chatpulse/internal/core/domain"
)

// PresenceStore holds the per-user presence records with atomic per-key
// read-modify-write semantics. Handlers can suspend mid-operation, so every
// mutation of a record must happen inside Upsert/Mutate rather than as a
// read followed by a write.
type PresenceStore interface {
	// Get returns a copy of the record.
	Get(userID string) (domain.PresenceRecord, bool)
	// Upsert applies fn under the user's lock, creating the record if absent.
	// fn receives whether the record existed before the call.
	Upsert(userID string, fn func(rec *domain.PresenceRecord, existed bool))
	// Mutate applies fn under the user's lock only if the record exists.
	Mutate(userID string, fn func(rec *domain.PresenceRecord)) bool
	Delete(userID string)
	// Range iterates over copies of all records until fn returns false.
	Range(fn func(rec domain.PresenceRecord) bool)
}

// RoomStore tracks, per conversation-anchor user id, which users currently
// have that conversation open.
type RoomStore interface {
	Add(roomID, userID string)
	Remove(roomID, userID string)
	Members(roomID string) []string
}

// CooldownStore tracks last-request timestamps per (connection, target) key.
type CooldownStore interface {
	Last(key string) (time.Time, bool)
	Set(key string, at time.Time)
	Delete(key string)
	// PurgeBefore removes entries older than cutoff and returns the count.
	PurgeBefore(cutoff time.Time) int
}

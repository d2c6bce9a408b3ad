package domain

import (
	"time"

	"github.com/google/uuid"
)

// PresenceRecord is the in-memory state describing a user's reachability and
// the single conversation they currently have open. At most one record exists
// per user id; a newer connection overwrites ConnectionID on the existing
// record instead of creating a second one.
type PresenceRecord struct {
	UserID       string
	ConnectionID string // most recent connection, weak reference
	IsOnline     bool
	CurrentRoom  string // peer user id of the open conversation, "" when none
	LastSeen     time.Time
	// LastStatusUpdateAt is debounce bookkeeping for online broadcasts.
	LastStatusUpdateAt time.Time
}

// Message is the durable entity owned by the message store. The engine only
// references it; IsSeen transitions false→true exactly once.
type Message struct {
	ID         uuid.UUID
	SenderID   string
	ReceiverID string
	Content    string
	IsSeen     bool
	SentAt     time.Time
	CreatedAt  time.Time
}

// StatusSnapshot is the answer to a status query.
type StatusSnapshot struct {
	UserID      string
	IsOnline    bool
	CurrentRoom string
	LastSeen    time.Time
}

// UnreadCount is the number of unseen messages from one sender.
type UnreadCount struct {
	SenderID string
	Count    int64
}

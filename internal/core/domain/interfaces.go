package domain

import (
	"context"

	"github.com/google/uuid"
)

// MessageStore is the durable collaborator. The engine never owns message
// data; it only triggers seen-state updates and the request/response handlers
// read history and unread counts.
type MessageStore interface {
	FindMessage(ctx context.Context, id uuid.UUID) (*Message, error)
	InsertMessage(ctx context.Context, msg *Message) error
	// BulkMarkSeen flips is_seen on every unseen message from sender to
	// receiver and returns the number of rows it updated. Calling it again
	// for the same pair is a no-op returning zero.
	BulkMarkSeen(ctx context.Context, receiverID, senderID string) (int64, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	History(ctx context.Context, userID, peerID string) ([]Message, error)
	UnreadCounts(ctx context.Context, receiverID string) ([]UnreadCount, error)
}

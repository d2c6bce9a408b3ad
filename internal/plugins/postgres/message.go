package postgres

import (
	"context"
	"database/sql"
	"errors"

	"chatpulse/internal/core/domain"

	"github.com/google/uuid"
)

// MessageStore is the durable side of the engine. Schema:
//
//	CREATE TABLE messages (
//	    id          uuid PRIMARY KEY,
//	    sender_id   text NOT NULL,
//	    receiver_id text NOT NULL,
//	    content     text NOT NULL,
//	    is_seen     boolean NOT NULL DEFAULT false,
//	    sent_at     timestamptz NOT NULL,
//	    created_at  timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE INDEX messages_pair_unseen_idx
//	    ON messages (receiver_id, sender_id) WHERE NOT is_seen;
type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (r *MessageStore) FindMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidMessageID
	}
	var m domain.Message
	err := r.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, content, is_seen, sent_at, created_at
		FROM messages
		WHERE id = $1
	`, id).Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsSeen, &m.SentAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageStore) InsertMessage(ctx context.Context, msg *domain.Message) error {
	if msg.ID == uuid.Nil {
		return domain.ErrInvalidMessageID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, is_seen, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.IsSeen, msg.SentAt)
	return err
}

// BulkMarkSeen flips every unseen sender→receiver message in one statement.
// The is_seen predicate makes the operation idempotent: a second call
// matches no rows and reports zero.
func (r *MessageStore) BulkMarkSeen(ctx context.Context, receiverID, senderID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET is_seen = true
		WHERE sender_id = $1 AND receiver_id = $2 AND is_seen = false
	`, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *MessageStore) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.ErrInvalidMessageID
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *MessageStore) History(ctx context.Context, userID, peerID string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, content, is_seen, sent_at, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY sent_at ASC
	`, userID, peerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsSeen, &m.SentAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *MessageStore) UnreadCounts(ctx context.Context, receiverID string) ([]domain.UnreadCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender_id, count(*)
		FROM messages
		WHERE receiver_id = $1 AND is_seen = false
		GROUP BY sender_id
	`, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []domain.UnreadCount
	for rows.Next() {
		var c domain.UnreadCount
		if err := rows.Scan(&c.SenderID, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

package services

import (
	"context"
	"errors"
	"testing"

	"chatpulse/internal/core/domain"
)

func seenNotices(hub *fakeHub, channel string) []domain.MessagesSeenPayload {
	var out []domain.MessagesSeenPayload
	for _, e := range hub.onChannel(channel, domain.EventMessagesSeen) {
		if p, ok := e.data.(domain.MessagesSeenPayload); ok {
			out = append(out, p)
		}
	}
	return out
}

func TestMarkMessagesSeenIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.store.setUnseen("alice", "bob", 5)

	if got := env.seenSvc.MarkMessagesSeen(ctx, "bob", "alice"); got != 5 {
		t.Fatalf("first sync updated %d rows, want 5", got)
	}
	if got := env.seenSvc.MarkMessagesSeen(ctx, "bob", "alice"); got != 0 {
		t.Fatalf("repeat sync updated %d rows, want 0", got)
	}

	notices := seenNotices(env.hub, domain.UserChannel("bob"))
	if len(notices) != 2 {
		t.Fatalf("expected a notice per sync, got %d", len(notices))
	}
	for _, p := range notices {
		if !p.AllMessages {
			t.Fatal("whole-conversation sync must set allMessages")
		}
		if p.SenderID != "bob" || p.ReceiverID != "alice" {
			t.Fatalf("notice addressed wrong: %+v", p)
		}
	}
}

func TestMarkSeenNotifiesSenderWithMessageID(t *testing.T) {
	env := newTestEnv()
	env.store.setUnseen("alice", "bob", 1)

	env.seenSvc.MarkSeen(context.Background(), "alice", "bob", "m42")

	notices := seenNotices(env.hub, domain.UserChannel("bob"))
	if len(notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(notices))
	}
	if notices[0].MessageID != "m42" || notices[0].AllMessages {
		t.Fatalf("unexpected notice: %+v", notices[0])
	}
}

func TestSeenSyncStoreFailureStillNotifies(t *testing.T) {
	env := newTestEnv()
	env.store.err = errors.New("connection reset")

	if got := env.seenSvc.MarkMessagesSeen(context.Background(), "bob", "alice"); got != 0 {
		t.Fatalf("failed sync reported %d rows", got)
	}
	if got := len(seenNotices(env.hub, domain.UserChannel("bob"))); got != 1 {
		t.Fatalf("notification must go out even when the store write fails, got %d", got)
	}
}

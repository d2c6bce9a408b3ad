package services

import (
	"context"
	"testing"
	"time"

	"chatpulse/internal/core/domain"
)

func statusBroadcasts(hub *fakeHub, online bool) []emitted {
	var out []emitted
	for _, e := range hub.snapshot() {
		if e.kind != "broadcast" || e.event != domain.EventUserStatusChanged {
			continue
		}
		if p, ok := e.data.(domain.UserStatusChangedPayload); ok && p.IsOnline == online {
			out = append(out, e)
		}
	}
	return out
}

func TestJoinUserRoomBroadcastsOnline(t *testing.T) {
	env := newTestEnv()
	defer env.presenceSvc.Stop()

	env.presenceSvc.JoinUserRoom(context.Background(), "conn-1", "alice")

	if got := len(statusBroadcasts(env.hub, true)); got != 1 {
		t.Fatalf("expected 1 online broadcast, got %d", got)
	}
	rec, ok := env.presence.Get("alice")
	if !ok {
		t.Fatal("presence record missing after join")
	}
	if !rec.IsOnline || rec.ConnectionID != "conn-1" {
		t.Fatalf("unexpected record: online=%v conn=%q", rec.IsOnline, rec.ConnectionID)
	}
}

func TestJoinUserRoomDebouncesRapidRejoins(t *testing.T) {
	env := newTestEnv()
	defer env.presenceSvc.Stop()
	ctx := context.Background()

	env.presenceSvc.JoinUserRoom(ctx, "conn-1", "alice")
	env.presenceSvc.JoinUserRoom(ctx, "conn-2", "alice")

	if got := len(statusBroadcasts(env.hub, true)); got != 1 {
		t.Fatalf("expected 1 online broadcast within debounce window, got %d", got)
	}
	rec, _ := env.presence.Get("alice")
	if rec.ConnectionID != "conn-2" {
		t.Fatalf("rapid rejoin should rebind connection, got %q", rec.ConnectionID)
	}

	time.Sleep(env.cfg.StatusDebounce + 50*time.Millisecond)
	env.presenceSvc.JoinUserRoom(ctx, "conn-3", "alice")
	if got := len(statusBroadcasts(env.hub, true)); got != 2 {
		t.Fatalf("expected 2 online broadcasts after window expiry, got %d", got)
	}
}

func TestDisconnectMarksOfflineAfterGrace(t *testing.T) {
	env := newTestEnv()
	defer env.presenceSvc.Stop()
	ctx := context.Background()

	env.presenceSvc.JoinUserRoom(ctx, "conn-1", "alice")
	env.presenceSvc.Disconnect(ctx, "conn-1", "alice")

	if rec, _ := env.presence.Get("alice"); !rec.IsOnline {
		t.Fatal("user went offline before grace window elapsed")
	}

	time.Sleep(env.cfg.DisconnectGrace + 50*time.Millisecond)

	rec, ok := env.presence.Get("alice")
	if !ok || rec.IsOnline {
		t.Fatalf("expected offline record after grace, got ok=%v online=%v", ok, rec.IsOnline)
	}
	if rec.LastSeen.IsZero() {
		t.Fatal("lastSeen not refreshed on offline transition")
	}
	if got := len(statusBroadcasts(env.hub, false)); got != 1 {
		t.Fatalf("expected 1 offline broadcast, got %d", got)
	}
}

func TestReconnectCancelsPendingOffline(t *testing.T) {
	env := newTestEnv()
	defer env.presenceSvc.Stop()
	ctx := context.Background()

	env.presenceSvc.JoinUserRoom(ctx, "conn-1", "alice")
	env.presenceSvc.Disconnect(ctx, "conn-1", "alice")
	env.presenceSvc.JoinUserRoom(ctx, "conn-2", "alice")

	time.Sleep(env.cfg.DisconnectGrace + 50*time.Millisecond)

	rec, _ := env.presence.Get("alice")
	if !rec.IsOnline {
		t.Fatal("reconnect within grace should keep user online")
	}
	if got := len(statusBroadcasts(env.hub, false)); got != 0 {
		t.Fatalf("expected no offline broadcast, got %d", got)
	}
}

func TestStaleDisconnectDoesNotOverrideNewerConnection(t *testing.T) {
	env := newTestEnv()
	defer env.presenceSvc.Stop()
	ctx := context.Background()

	env.presenceSvc.JoinUserRoom(ctx, "conn-1", "alice")
	// New connection binds before the old one reports its disconnect.
	env.presenceSvc.JoinUserRoom(ctx, "conn-2", "alice")
	env.presenceSvc.Disconnect(ctx, "conn-1", "alice")

	time.Sleep(env.cfg.DisconnectGrace + 50*time.Millisecond)

	rec, _ := env.presence.Get("alice")
	if !rec.IsOnline {
		t.Fatal("offline transition for a superseded connection must be a no-op")
	}
}

func TestOfflineInRoomNotifiesPeerAndClearsMembership(t *testing.T) {
	env := newTestEnv()
	defer env.presenceSvc.Stop()
	defer env.roomSvc.Stop()
	ctx := context.Background()

	env.presenceSvc.JoinUserRoom(ctx, "conn-1", "alice")
	env.roomSvc.JoinRoom(ctx, "conn-1", "bob", "alice")
	env.presenceSvc.Disconnect(ctx, "conn-1", "alice")

	time.Sleep(env.cfg.DisconnectGrace + 50*time.Millisecond)

	notices := env.hub.onChannel(domain.UserChannel("bob"), domain.EventUserStatusChanged)
	found := false
	for _, e := range notices {
		if p, ok := e.data.(domain.UserStatusChangedPayload); ok && !p.IsOnline && p.RoomID == "bob" {
			found = true
		}
	}
	if !found {
		t.Fatal("peer was not told the user dropped out of the open conversation")
	}
	for _, m := range env.rooms.Members("bob") {
		if m == "alice" {
			t.Fatal("room membership not cleared on offline transition")
		}
	}
}

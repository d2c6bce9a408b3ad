package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chatpulse/internal/config"
	"chatpulse/internal/core/contracts"
	"chatpulse/internal/core/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RoomService drives the open-conversation state between two users. A "room"
// is keyed by the peer's user id: JoinRoom(roomID, userID) means userID
// opened the conversation with roomID.
type RoomService struct {
	log      *slog.Logger
	cfg      *config.EngineConfig
	presence contracts.PresenceStore
	rooms    contracts.RoomStore
	hub      contracts.Broadcaster
	seen     *SeenService

	mu           sync.Mutex
	settleTimers map[string]*time.Timer // keyed by joining user id
}

func NewRoomService(
	log *slog.Logger,
	cfg *config.EngineConfig,
	presence contracts.PresenceStore,
	rooms contracts.RoomStore,
	hub contracts.Broadcaster,
	seen *SeenService,
) *RoomService {
	return &RoomService{
		log:          log,
		cfg:          cfg,
		presence:     presence,
		rooms:        rooms,
		hub:          hub,
		seen:         seen,
		settleTimers: make(map[string]*time.Timer),
	}
}

// JoinRoom moves the user into the peer's conversation: leaves any previous
// room with a notice to that peer, updates presence and membership, sends
// chat-local presence notices both ways, and after the settle delay issues
// the seen-state instructions.
func (s *RoomService) JoinRoom(ctx context.Context, connID, roomID, userID string) {
	ctx, span := tracer.Start(ctx, "RoomService.JoinRoom", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("room_id", roomID),
	))
	defer span.End()
	if roomID == "" || userID == "" {
		return
	}

	now := time.Now()

	// Step out of the previous conversation first.
	if rec, ok := s.presence.Get(userID); ok && rec.CurrentRoom != "" {
		prev := rec.CurrentRoom
		s.hub.Leave(domain.ChatChannel(prev, userID), connID)
		s.rooms.Remove(prev, userID)
		s.hub.Emit(ctx, domain.UserChannel(prev), domain.EventUserStatusChanged, domain.UserStatusChangedPayload{
			UserID:   userID,
			IsOnline: false,
			RoomID:   prev,
		}, connID)
	}

	s.hub.Join(domain.ChatChannel(roomID, userID), connID)
	s.presence.Upsert(userID, func(rec *domain.PresenceRecord, _ bool) {
		rec.ConnectionID = connID
		rec.IsOnline = true
		rec.CurrentRoom = roomID
		rec.LastSeen = now
	})
	s.rooms.Add(roomID, userID)

	// Tell the peer this user is chat-locally present.
	s.hub.Emit(ctx, domain.UserChannel(roomID), domain.EventUserStatusChanged, domain.UserStatusChangedPayload{
		UserID:   userID,
		IsOnline: true,
		RoomID:   roomID,
	}, connID)

	// Reciprocal notice: tell the joiner whether the peer has this chat open.
	if peer, ok := s.presence.Get(roomID); ok && peer.IsOnline {
		s.hub.EmitToConn(ctx, connID, domain.EventUserStatusChanged, domain.UserStatusChangedPayload{
			UserID:   roomID,
			IsOnline: peer.CurrentRoom == userID,
			RoomID:   userID,
		})
	}

	s.scheduleSettle(roomID, userID)
	s.log.InfoContext(ctx, "rooms - join room", "user_id", userID, "room_id", roomID)
}

// scheduleSettle arms the per-user settle timer. A newer join for the same
// user supersedes a pending one. After the delay both presence records are
// re-read: messages from the peer to the joiner are always marked seen
// (opening a chat reads the peer's backlog); under mutual co-presence the
// joiner's own messages to the peer are marked seen as well.
func (s *RoomService) scheduleSettle(roomID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.settleTimers[userID]; ok {
		prev.Stop()
	}
	s.settleTimers[userID] = time.AfterFunc(s.cfg.SettleDelay, func() {
		s.mu.Lock()
		delete(s.settleTimers, userID)
		s.mu.Unlock()

		ctx := context.Background()
		rec, recOK := s.presence.Get(userID)
		peer, peerOK := s.presence.Get(roomID)

		s.seen.MarkMessagesSeen(ctx, roomID, userID)

		mutual := recOK && peerOK &&
			rec.CurrentRoom == roomID && peer.CurrentRoom == userID
		if mutual {
			s.seen.MarkMessagesSeen(ctx, userID, roomID)
		}
		s.log.Debug("rooms - settle - seen instructions issued",
			"user_id", userID, "room_id", roomID, "mutual", mutual)
	})
}

// LeaveRoom closes the conversation on the user's side.
func (s *RoomService) LeaveRoom(ctx context.Context, connID, roomID, userID string) {
	ctx, span := tracer.Start(ctx, "RoomService.LeaveRoom", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.String("room_id", roomID),
	))
	defer span.End()
	if roomID == "" || userID == "" {
		return
	}

	s.hub.Leave(domain.ChatChannel(roomID, userID), connID)
	now := time.Now()
	s.presence.Mutate(userID, func(rec *domain.PresenceRecord) {
		rec.CurrentRoom = ""
		rec.LastSeen = now
	})
	s.rooms.Remove(roomID, userID)

	s.hub.Emit(ctx, domain.UserChannel(roomID), domain.EventUserStatusChanged, domain.UserStatusChangedPayload{
		UserID:   userID,
		IsOnline: false,
		RoomID:   roomID,
	}, connID)
	s.log.InfoContext(ctx, "rooms - leave room", "user_id", userID, "room_id", roomID)
}

// Stop cancels pending settle timers, used on shutdown.
func (s *RoomService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, t := range s.settleTimers {
		t.Stop()
		delete(s.settleTimers, userID)
	}
}

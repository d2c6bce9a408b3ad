package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chatpulse/internal/config"
	"chatpulse/internal/core/contracts"
	"chatpulse/internal/core/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("chatpulse-engine")

// PresenceService owns the online/offline lifecycle of users: the debounced
// online broadcast on join and the grace-delayed offline transition on
// disconnect. Pending offline timers are cancellable and keyed by user id,
// so a reconnect cancels the transition instead of racing the re-check.
type PresenceService struct {
	log      *slog.Logger
	cfg      *config.EngineConfig
	presence contracts.PresenceStore
	rooms    contracts.RoomStore
	hub      contracts.Broadcaster

	mu            sync.Mutex
	offlineTimers map[string]*time.Timer
}

func NewPresenceService(
	log *slog.Logger,
	cfg *config.EngineConfig,
	presence contracts.PresenceStore,
	rooms contracts.RoomStore,
	hub contracts.Broadcaster,
) *PresenceService {
	return &PresenceService{
		log:           log,
		cfg:           cfg,
		presence:      presence,
		rooms:         rooms,
		hub:           hub,
		offlineTimers: make(map[string]*time.Timer),
	}
}

// JoinUserRoom constructs or refreshes the user's presence record. If the
// last broadcast is older than the debounce window the record is reset and
// "user is online" goes out to everyone else; a rapid re-join only refreshes
// the connection id.
func (s *PresenceService) JoinUserRoom(ctx context.Context, connID, userID string) {
	ctx, span := tracer.Start(ctx, "PresenceService.JoinUserRoom", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()
	if userID == "" {
		return
	}

	s.cancelPendingOffline(userID)

	now := time.Now()
	broadcast := false
	s.presence.Upsert(userID, func(rec *domain.PresenceRecord, existed bool) {
		if !existed || now.Sub(rec.LastStatusUpdateAt) > s.cfg.StatusDebounce {
			rec.ConnectionID = connID
			rec.IsOnline = true
			rec.CurrentRoom = ""
			rec.LastSeen = now
			rec.LastStatusUpdateAt = now
			broadcast = true
			return
		}
		// Rapid refresh: keep the record, just rebind the connection.
		rec.ConnectionID = connID
		rec.IsOnline = true
	})
	if broadcast {
		s.hub.Broadcast(ctx, domain.EventUserStatusChanged, domain.UserStatusChangedPayload{
			UserID:   userID,
			IsOnline: true,
		}, connID)
		s.log.InfoContext(ctx, "presence - join user room - online broadcast", "user_id", userID)
	}
}

// Disconnect schedules the offline transition after the grace window. The
// transition only fires if the record still points at this connection; a
// reconnect in the meantime cancels the timer outright.
func (s *PresenceService) Disconnect(ctx context.Context, connID, userID string) {
	_, span := tracer.Start(ctx, "PresenceService.Disconnect", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()
	if userID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.offlineTimers[userID]; ok {
		prev.Stop()
	}
	s.offlineTimers[userID] = time.AfterFunc(s.cfg.DisconnectGrace, func() {
		s.markOffline(connID, userID)
	})
}

func (s *PresenceService) markOffline(connID, userID string) {
	ctx := context.Background()
	s.mu.Lock()
	delete(s.offlineTimers, userID)
	s.mu.Unlock()

	now := time.Now()
	marked := false
	var room string
	s.presence.Mutate(userID, func(rec *domain.PresenceRecord) {
		if rec.ConnectionID != connID {
			// Superseded by a newer connection.
			return
		}
		rec.IsOnline = false
		rec.LastSeen = now
		room = rec.CurrentRoom
		marked = true
	})
	if !marked {
		return
	}

	s.hub.Broadcast(ctx, domain.EventUserStatusChanged, domain.UserStatusChangedPayload{
		UserID:   userID,
		IsOnline: false,
	}, connID)
	if room != "" {
		s.hub.Emit(ctx, domain.UserChannel(room), domain.EventUserStatusChanged, domain.UserStatusChangedPayload{
			UserID:   userID,
			IsOnline: false,
			RoomID:   room,
		}, connID)
		s.rooms.Remove(room, userID)
	}
	s.log.Info("presence - disconnect - marked offline", "user_id", userID, "room", room)
}

func (s *PresenceService) cancelPendingOffline(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.offlineTimers[userID]; ok {
		t.Stop()
		delete(s.offlineTimers, userID)
	}
}

// Stop cancels all pending offline timers, used on shutdown.
func (s *PresenceService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, t := range s.offlineTimers {
		t.Stop()
		delete(s.offlineTimers, userID)
	}
}

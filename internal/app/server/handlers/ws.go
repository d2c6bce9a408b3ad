package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"chatpulse/internal/app/registry"
	"chatpulse/internal/app/server/ws"
	"chatpulse/internal/core/domain"
	"chatpulse/internal/core/services"
	"chatpulse/internal/platform/ratelimiter"
	"chatpulse/pkg/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WSHandler upgrades connections and dispatches inbound event envelopes to
// the engine services. Events from one connection are handled in arrival
// order; no ordering holds across connections.
type WSHandler struct {
	hub      *registry.Registry
	presence *services.PresenceService
	rooms    *services.RoomService
	relay    *services.RelayService
	seen     *services.SeenService
	guard    *services.StatusGuard
	limiter  *ratelimiter.MapLimiter
}

func NewWSHandler(
	hub *registry.Registry,
	presence *services.PresenceService,
	rooms *services.RoomService,
	relay *services.RelayService,
	seen *services.SeenService,
	guard *services.StatusGuard,
	limiter *ratelimiter.MapLimiter,
) *WSHandler {
	return &WSHandler{
		hub:      hub,
		presence: presence,
		rooms:    rooms,
		relay:    relay,
		seen:     seen,
		guard:    guard,
		limiter:  limiter,
	}
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	if log == nil {
		log = slog.Default()
	}
	span := trace.SpanFromContext(r.Context())
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing user_id")
		http.Error(w, "Unauthorized: User ID missing", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// All origins are accepted; access is gated by the token check.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", "err", err)
		cancel()
		return
	}
	conn.SetCloseHandler(func(code int, text string) error {
		cancel()
		return nil
	})

	connID := uuid.NewString()
	socket := ws.NewWebSocket(ctx, conn)
	client := ws.NewClient(ctx, socket, connID, userID)
	s.hub.Register(client)
	log.InfoContext(r.Context(), "ws handler - connection established",
		"conn_id", connID, "user_id", userID)

	defer func() {
		s.cleanup(ctx, connID)
		cancel()
	}()

	socket.ReadLoop(func(data []byte) {
		s.dispatch(ctx, log, client, connID, userID, data)
	})
}

// cleanup releases everything a connection holds. Any event that wrote the
// connection into a presence record also bound it, so the offline transition
// is scheduled whenever a record can exist.
func (s *WSHandler) cleanup(ctx context.Context, connID string) {
	if owner, bound := s.hub.Owner(connID); bound {
		s.presence.Disconnect(ctx, connID, owner)
	}
	s.limiter.Forget(connID)
	s.hub.Unregister(connID)
}

// ensureBound registers the connection's owner if no event has done so yet.
func (s *WSHandler) ensureBound(connID, userID string) {
	if _, ok := s.hub.Owner(connID); !ok {
		s.hub.Bind(connID, userID)
	}
}

// dispatch routes one inbound envelope. Malformed identifiers make the
// operation a silent no-op; only guard rejections produce a reply error.
func (s *WSHandler) dispatch(ctx context.Context, log *slog.Logger, client *ws.RuntimeClient, connID, userID string, raw []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.ErrorContext(ctx, "ws handler - bad envelope", "conn_id", connID, "err", err)
		return
	}

	switch env.Event {
	case domain.EventJoinUserRoom:
		var p domain.JoinUserRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.UserID != userID {
			// The identity layer authenticated userID; a mismatching join is dropped.
			return
		}
		s.hub.Bind(connID, userID)
		s.presence.JoinUserRoom(ctx, connID, userID)

	case domain.EventJoinRoom:
		var p domain.JoinRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.UserID != userID {
			return
		}
		// JoinRoom writes this connection into the presence record, so the
		// owner must be bound even without a prior join_user_room.
		s.ensureBound(connID, userID)
		s.rooms.JoinRoom(ctx, connID, p.RoomID, p.UserID)

	case domain.EventLeaveRoom:
		var p domain.LeaveRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.UserID != userID {
			return
		}
		s.rooms.LeaveRoom(ctx, connID, p.RoomID, p.UserID)

	case domain.EventSendMessage:
		if !s.limiter.Allow(connID, time.Now()) {
			s.reply(ctx, client, env.ID, domain.EventError, domain.ErrorPayload{
				Code:    "rate_limited",
				Message: "too many messages",
			})
			return
		}
		var p domain.SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.SenderID != userID {
			return
		}
		s.relay.SendMessage(ctx, connID, p)

	case domain.EventMarkMessagesSeen:
		var p domain.MarkMessagesSeenPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ReceiverID != userID {
			return
		}
		s.seen.MarkMessagesSeen(ctx, p.SenderID, p.ReceiverID)

	case domain.EventDeleteMessage:
		var p domain.DeleteMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.SenderID != userID {
			return
		}
		s.relay.DeleteMessage(ctx, connID, p)

	case domain.EventGetUserStatus:
		var p domain.GetUserStatusPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		snap, err := s.guard.GetUserStatus(ctx, connID, p.UserID)
		if err != nil {
			s.reply(ctx, client, env.ID, domain.EventUserStatus, domain.UserStatusPayload{
				UserID: p.UserID,
				Error:  "Rate limited",
			})
			return
		}
		out := domain.UserStatusPayload{
			UserID:      snap.UserID,
			IsOnline:    snap.IsOnline,
			CurrentRoom: snap.CurrentRoom,
		}
		if !snap.LastSeen.IsZero() {
			out.LastSeen = &snap.LastSeen
		}
		s.reply(ctx, client, env.ID, domain.EventUserStatus, out)

	default:
		log.DebugContext(ctx, "ws handler - unknown event", "event", env.Event)
	}
}

// reply writes a correlated envelope straight to the origin connection.
func (s *WSHandler) reply(ctx context.Context, client *ws.RuntimeClient, id, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	raw, err := json.Marshal(domain.Envelope{Event: event, ID: id, Data: payload})
	if err != nil {
		return
	}
	_ = client.Send(ctx, raw)
}

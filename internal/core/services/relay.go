package services

import (
	"context"
	"log/slog"
	"time"

	"chatpulse/internal/core/contracts"
	"chatpulse/internal/core/domain"
	"chatpulse/internal/platform/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RelayService forwards message events between the two parties. The relay
// never persists message content; it only annotates the delivery with the
// seen decision and triggers the seen synchronizer when both sides are
// co-present in the conversation.
type RelayService struct {
	log      *slog.Logger
	presence contracts.PresenceStore
	hub      contracts.Broadcaster
	seen     *SeenService
	metrics  *metrics.Metrics
}

func NewRelayService(
	log *slog.Logger,
	presence contracts.PresenceStore,
	hub contracts.Broadcaster,
	seen *SeenService,
	m *metrics.Metrics,
) *RelayService {
	return &RelayService{log: log, presence: presence, hub: hub, seen: seen, metrics: m}
}

// SendMessage relays one outbound message. Fan-out targets both room-scoped
// channels (the two sides name the channel asymmetrically) plus the
// receiver's personal channel for cross-screen badge updates.
func (s *RelayService) SendMessage(ctx context.Context, connID string, p domain.SendMessagePayload) {
	ctx, span := tracer.Start(ctx, "RelayService.SendMessage", trace.WithAttributes(
		attribute.String("sender_id", p.SenderID),
		attribute.String("receiver_id", p.ReceiverID),
	))
	defer span.End()
	if p.SenderID == "" || p.ReceiverID == "" {
		return
	}

	now := time.Now()
	s.presence.Mutate(p.SenderID, func(rec *domain.PresenceRecord) {
		rec.LastSeen = now
	})

	sender, senderOK := s.presence.Get(p.SenderID)
	receiver, receiverOK := s.presence.Get(p.ReceiverID)

	// Mutual co-presence is the sole condition for immediate seen-marking.
	shouldMarkSeen := receiverOK && receiver.IsOnline &&
		receiver.CurrentRoom == p.SenderID &&
		senderOK && sender.CurrentRoom == p.ReceiverID

	out := domain.ReceiveMessagePayload{
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Content:    p.Content,
		Timestamp:  p.Timestamp,
		MessageID:  p.MessageID,
		IsSeen:     shouldMarkSeen,
	}
	s.hub.Emit(ctx, domain.ChatChannel(p.ReceiverID, p.SenderID), domain.EventReceiveMessage, out, connID)
	s.hub.Emit(ctx, domain.ChatChannel(p.SenderID, p.ReceiverID), domain.EventReceiveMessage, out, connID)
	s.hub.Emit(ctx, domain.UserChannel(p.ReceiverID), domain.EventReceiveMessage, out, connID)
	s.metrics.MessagesRelayed.Inc()

	if shouldMarkSeen {
		s.seen.MarkSeen(ctx, p.ReceiverID, p.SenderID, p.MessageID)
		// Direct ack to the originating connection on top of the personal
		// channel emit above; clients apply both idempotently.
		s.hub.EmitToConn(ctx, connID, domain.EventMessagesSeen, domain.MessagesSeenPayload{
			SenderID:   p.SenderID,
			ReceiverID: p.ReceiverID,
			MessageID:  p.MessageID,
			Timestamp:  time.Now(),
		})
	}
	s.log.InfoContext(ctx, "relay - message forwarded",
		"sender_id", p.SenderID, "receiver_id", p.ReceiverID, "seen", shouldMarkSeen)
}

// DeleteMessage fans out a deletion notice; the durable delete happens
// through the request/response API, not here.
func (s *RelayService) DeleteMessage(ctx context.Context, connID string, p domain.DeleteMessagePayload) {
	ctx, span := tracer.Start(ctx, "RelayService.DeleteMessage", trace.WithAttributes(
		attribute.String("message_id", p.MessageID),
	))
	defer span.End()
	if p.MessageID == "" || p.ChatID == "" || p.SenderID == "" {
		return
	}

	out := domain.MessageDeletedPayload{
		MessageID: p.MessageID,
		ChatID:    p.ChatID,
		SenderID:  p.SenderID,
	}
	s.hub.Emit(ctx, domain.ChatChannel(p.ChatID, p.SenderID), domain.EventMessageDeleted, out, connID)
	s.hub.Emit(ctx, domain.ChatChannel(p.SenderID, p.ChatID), domain.EventMessageDeleted, out, connID)
	s.hub.Emit(ctx, domain.UserChannel(p.ChatID), domain.EventMessageDeleted, out, connID)
	s.hub.Emit(ctx, domain.UserChannel(p.SenderID), domain.EventMessageDeleted, out, connID)
	// Confirmation back to the origin.
	s.hub.EmitToConn(ctx, connID, domain.EventMessageDeleted, out)
}

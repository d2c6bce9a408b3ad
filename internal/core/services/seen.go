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

// SeenService performs the durable bulk seen-state write and notifies the
// sender. The store write is best-effort: on failure it is logged and not
// retried; the notification still goes out because the relay has already
// delivered the message as seen. Receivers must treat the notifications as
// idempotent.
type SeenService struct {
	log     *slog.Logger
	store   domain.MessageStore
	hub     contracts.Broadcaster
	metrics *metrics.Metrics
}

func NewSeenService(
	log *slog.Logger,
	store domain.MessageStore,
	hub contracts.Broadcaster,
	m *metrics.Metrics,
) *SeenService {
	return &SeenService{log: log, store: store, hub: hub, metrics: m}
}

// MarkSeen flips every unseen sender→receiver message durably and notifies
// the sender's personal channel. messageID identifies the message that
// triggered the sync, for the sender's client to reconcile a single entry.
func (s *SeenService) MarkSeen(ctx context.Context, receiverID, senderID, messageID string) int64 {
	ctx, span := tracer.Start(ctx, "SeenService.MarkSeen", trace.WithAttributes(
		attribute.String("sender_id", senderID),
		attribute.String("receiver_id", receiverID),
	))
	defer span.End()

	updated := s.bulkMarkSeen(ctx, receiverID, senderID)
	s.hub.Emit(ctx, domain.UserChannel(senderID), domain.EventMessagesSeen, domain.MessagesSeenPayload{
		SenderID:   senderID,
		ReceiverID: receiverID,
		MessageID:  messageID,
		Timestamp:  time.Now(),
	}, "")
	return updated
}

// MarkMessagesSeen is the whole-conversation variant: the sender is told to
// reconcile its entire local view via the allMessages flag.
func (s *SeenService) MarkMessagesSeen(ctx context.Context, senderID, receiverID string) int64 {
	ctx, span := tracer.Start(ctx, "SeenService.MarkMessagesSeen", trace.WithAttributes(
		attribute.String("sender_id", senderID),
		attribute.String("receiver_id", receiverID),
	))
	defer span.End()

	updated := s.bulkMarkSeen(ctx, receiverID, senderID)
	s.hub.Emit(ctx, domain.UserChannel(senderID), domain.EventMessagesSeen, domain.MessagesSeenPayload{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		AllMessages: true,
		Timestamp:   time.Now(),
	}, "")
	return updated
}

func (s *SeenService) bulkMarkSeen(ctx context.Context, receiverID, senderID string) int64 {
	updated, err := s.store.BulkMarkSeen(ctx, receiverID, senderID)
	if err != nil {
		// Leaves a durable inconsistency window; the relay already delivered.
		s.metrics.SeenSyncErrors.Inc()
		s.log.ErrorContext(ctx, "seen - bulk mark seen failed",
			"sender_id", senderID, "receiver_id", receiverID, "err", err)
		return 0
	}
	s.metrics.SeenSyncs.Inc()
	return updated
}

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chatpulse/internal/core/domain"
	"chatpulse/internal/core/services"
	"chatpulse/pkg/middleware"

	"github.com/google/uuid"
)

// MessageHandler is the request/response side of the message store: history,
// unread counts, durable insert and delete. The realtime fan-out for sends
// and deletes still flows through the websocket events.
type MessageHandler struct {
	store domain.MessageStore
	relay *services.RelayService
}

func NewMessageHandler(store domain.MessageStore, relay *services.RelayService) *MessageHandler {
	return &MessageHandler{store: store, relay: relay}
}

func requestLogger(r *http.Request) *slog.Logger {
	if log, ok := r.Context().Value(middleware.LoggerKey).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}

// History returns the full two-way conversation with ?peer=<id>, oldest first.
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, _ := r.Context().Value(middleware.UserIDKey).(string)
	peerID := r.URL.Query().Get("peer")
	if peerID == "" {
		http.Error(w, "peer required", http.StatusBadRequest)
		return
	}
	msgs, err := h.store.History(r.Context(), userID, peerID)
	if err != nil {
		log.ErrorContext(r.Context(), "messages - history failed", "peer", peerID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// Unread returns per-sender unseen counts for the authenticated user.
func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, _ := r.Context().Value(middleware.UserIDKey).(string)
	counts, err := h.store.UnreadCounts(r.Context(), userID)
	if err != nil {
		log.ErrorContext(r.Context(), "messages - unread counts failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unread": counts})
}

// Send persists a new message. Delivery happens separately over the
// websocket send_message event.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, _ := r.Context().Value(middleware.UserIDKey).(string)
	var req struct {
		ReceiverID string `json:"receiverId"`
		Content    string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverID == "" || req.Content == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		SentAt:     time.Now(),
	}
	if err := h.store.InsertMessage(r.Context(), msg); err != nil {
		log.ErrorContext(r.Context(), "messages - insert failed", "receiver", req.ReceiverID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Delete removes a message the caller sent, then fans out the deletion
// notice to both parties' channels.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)
	userID, _ := r.Context().Value(middleware.UserIDKey).(string)
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}
	msg, err := h.store.FindMessage(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		log.ErrorContext(r.Context(), "messages - find failed", "message_id", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if msg.SenderID != userID {
		http.Error(w, domain.ErrNotMessageOwner.Error(), http.StatusForbidden)
		return
	}
	if err := h.store.DeleteMessage(r.Context(), id); err != nil {
		log.ErrorContext(r.Context(), "messages - delete failed", "message_id", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.relay.DeleteMessage(r.Context(), "", domain.DeleteMessagePayload{
		MessageID: id.String(),
		ChatID:    msg.ReceiverID,
		SenderID:  msg.SenderID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

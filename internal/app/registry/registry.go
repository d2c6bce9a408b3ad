package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"chatpulse/internal/core/contracts"
	"chatpulse/internal/core/domain"
	"chatpulse/internal/platform/metrics"
)

// Registry binds live transport sessions to authenticated users and fans
// events out over named channels. It keeps an explicit reverse index
// (connection id → user id) so disconnect handling never scans the presence
// map.
type Registry struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	clients     map[string]contracts.Client            // conn id → client
	owners      map[string]string                      // conn id → user id
	channels    map[string]map[string]contracts.Client // channel → conn id → client
	memberships map[string]map[string]struct{}         // conn id → channel names
}

func NewRegistry(log *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		log:         log,
		metrics:     m,
		clients:     make(map[string]contracts.Client),
		owners:      make(map[string]string),
		channels:    make(map[string]map[string]contracts.Client),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Register adds a freshly upgraded connection with no owner yet.
func (h *Registry) Register(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
	h.memberships[c.ID()] = make(map[string]struct{})
	h.metrics.OpenConnections.Inc()
}

// Bind assigns the owner and joins the user's personal channel. Called on
// the explicit join-as-user event, after the identity layer authenticated
// the user.
func (h *Registry) Bind(connID, userID string) {
	h.mu.Lock()
	h.owners[connID] = userID
	h.mu.Unlock()
	h.Join(domain.UserChannel(userID), connID)
}

// Owner returns the user bound to a connection, if any.
func (h *Registry) Owner(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	userID, ok := h.owners[connID]
	return userID, ok
}

// Unregister drops the connection from every channel and closes it.
func (h *Registry) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		for channel := range h.memberships[connID] {
			if members := h.channels[channel]; members != nil {
				delete(members, connID)
				if len(members) == 0 {
					delete(h.channels, channel)
				}
			}
		}
		delete(h.memberships, connID)
		delete(h.owners, connID)
		delete(h.clients, connID)
	}
	h.mu.Unlock()
	if ok {
		c.Close()
		h.metrics.OpenConnections.Dec()
	}
}

func (h *Registry) Join(channel, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[string]contracts.Client)
	}
	h.channels[channel][connID] = c
	h.memberships[connID][channel] = struct{}{}
}

func (h *Registry) Leave(channel, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members := h.channels[channel]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	if chans := h.memberships[connID]; chans != nil {
		delete(chans, channel)
	}
}

func (h *Registry) Emit(ctx context.Context, channel, event string, data any, exceptConn string) {
	raw, err := encode(event, data)
	if err != nil {
		h.log.ErrorContext(ctx, "registry - emit - encode failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, c := range h.channels[channel] {
		if connID == exceptConn {
			continue
		}
		_ = c.Send(ctx, raw)
	}
}

func (h *Registry) EmitToConn(ctx context.Context, connID, event string, data any) {
	raw, err := encode(event, data)
	if err != nil {
		h.log.ErrorContext(ctx, "registry - emit to conn - encode failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	_ = c.Send(ctx, raw)
}

func (h *Registry) Broadcast(ctx context.Context, event string, data any, exceptConn string) {
	raw, err := encode(event, data)
	if err != nil {
		h.log.ErrorContext(ctx, "registry - broadcast - encode failed", "event", event, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, c := range h.clients {
		if connID == exceptConn {
			continue
		}
		_ = c.Send(ctx, raw)
	}
}

func encode(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(domain.Envelope{Event: event, Data: payload})
}

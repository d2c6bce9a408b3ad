package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"chatpulse/internal/config"
	"chatpulse/internal/core/domain"
	"chatpulse/internal/platform/metrics"
	"chatpulse/internal/plugins/memory"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// emitted captures one fan-out call on the fake hub.
type emitted struct {
	kind    string // "emit", "conn" or "broadcast"
	channel string
	connID  string
	event   string
	data    any
	except  string
}

type fakeHub struct {
	mu     sync.Mutex
	events []emitted
	joins  []string
	leaves []string
}

func (f *fakeHub) Join(channel, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, channel)
}

func (f *fakeHub) Leave(channel, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, channel)
}

func (f *fakeHub) Emit(_ context.Context, channel, event string, data any, exceptConn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{kind: "emit", channel: channel, event: event, data: data, except: exceptConn})
}

func (f *fakeHub) EmitToConn(_ context.Context, connID, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{kind: "conn", connID: connID, event: event, data: data})
}

func (f *fakeHub) Broadcast(_ context.Context, event string, data any, exceptConn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{kind: "broadcast", event: event, data: data, except: exceptConn})
}

func (f *fakeHub) snapshot() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emitted, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeHub) count(kind, event string) int {
	n := 0
	for _, e := range f.snapshot() {
		if e.kind == kind && e.event == event {
			n++
		}
	}
	return n
}

func (f *fakeHub) onChannel(channel, event string) []emitted {
	var out []emitted
	for _, e := range f.snapshot() {
		if e.kind == "emit" && e.channel == channel && e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// fakeStore implements domain.MessageStore with an in-memory unseen counter
// per (receiver, sender) pair. BulkMarkSeen drains the counter, so a second
// call for the same pair reports zero.
type fakeStore struct {
	mu     sync.Mutex
	unseen map[string]int64
	calls  []string
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{unseen: make(map[string]int64)}
}

func pairKey(receiverID, senderID string) string {
	return receiverID + "<-" + senderID
}

func (f *fakeStore) setUnseen(receiverID, senderID string, n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unseen[pairKey(receiverID, senderID)] = n
}

func (f *fakeStore) BulkMarkSeen(_ context.Context, receiverID, senderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey(receiverID, senderID)
	f.calls = append(f.calls, key)
	if f.err != nil {
		return 0, f.err
	}
	n := f.unseen[key]
	f.unseen[key] = 0
	return n, nil
}

func (f *fakeStore) markCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeStore) FindMessage(context.Context, uuid.UUID) (*domain.Message, error) {
	return nil, domain.ErrMessageNotFound
}
func (f *fakeStore) InsertMessage(context.Context, *domain.Message) error { return nil }
func (f *fakeStore) DeleteMessage(context.Context, uuid.UUID) error       { return nil }
func (f *fakeStore) History(context.Context, string, string) ([]domain.Message, error) {
	return nil, nil
}
func (f *fakeStore) UnreadCounts(context.Context, string) ([]domain.UnreadCount, error) {
	return nil, nil
}

func testEngineConfig() *config.EngineConfig {
	return &config.EngineConfig{
		StatusDebounce:    200 * time.Millisecond,
		DisconnectGrace:   50 * time.Millisecond,
		SettleDelay:       20 * time.Millisecond,
		StatusCooldown:    100 * time.Millisecond,
		JanitorInterval:   time.Hour,
		PresenceRetention: time.Hour,
		CooldownRetention: 5 * time.Minute,
	}
}

// testEnv wires the whole engine against fakes with shrunken windows.
type testEnv struct {
	cfg       *config.EngineConfig
	hub       *fakeHub
	store     *fakeStore
	presence  *memory.PresenceMap
	rooms     *memory.RoomMap
	cooldowns *memory.CooldownMap

	presenceSvc *PresenceService
	roomSvc     *RoomService
	relaySvc    *RelayService
	seenSvc     *SeenService
	guardSvc    *StatusGuard
	janitor     *Janitor
}

func newTestEnv() *testEnv {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testEngineConfig()
	hub := &fakeHub{}
	store := newFakeStore()
	presence := memory.NewPresenceMap()
	rooms := memory.NewRoomMap()
	cooldowns := memory.NewCooldownMap()
	m := metrics.New(prometheus.NewRegistry())

	seenSvc := NewSeenService(log, store, hub, m)
	env := &testEnv{
		cfg:         cfg,
		hub:         hub,
		store:       store,
		presence:    presence,
		rooms:       rooms,
		cooldowns:   cooldowns,
		seenSvc:     seenSvc,
		presenceSvc: NewPresenceService(log, cfg, presence, rooms, hub),
		roomSvc:     NewRoomService(log, cfg, presence, rooms, hub, seenSvc),
		relaySvc:    NewRelayService(log, presence, hub, seenSvc, m),
		guardSvc:    NewStatusGuard(log, cfg, presence, cooldowns, m),
		janitor:     NewJanitor(log, cfg, presence, cooldowns, m),
	}
	return env
}

package services

import (
	"context"
	"log/slog"
	"time"

	"chatpulse/internal/config"
	"chatpulse/internal/core/contracts"
	"chatpulse/internal/core/domain"
	"chatpulse/internal/platform/metrics"
)

// StatusGuard throttles repeated status queries per (requesting connection,
// target user) pair. A rejected request gets a structured error, never a
// stale snapshot.
type StatusGuard struct {
	log       *slog.Logger
	cfg       *config.EngineConfig
	presence  contracts.PresenceStore
	cooldowns contracts.CooldownStore
	metrics   *metrics.Metrics
}

func NewStatusGuard(
	log *slog.Logger,
	cfg *config.EngineConfig,
	presence contracts.PresenceStore,
	cooldowns contracts.CooldownStore,
	m *metrics.Metrics,
) *StatusGuard {
	return &StatusGuard{log: log, cfg: cfg, presence: presence, cooldowns: cooldowns, metrics: m}
}

func cooldownKey(connID, targetID string) string {
	return connID + ":" + targetID
}

// GetUserStatus returns a presence snapshot for the target, or
// domain.ErrRateLimited if this connection asked about the same target
// within the cooldown window. Unknown users read as offline.
func (g *StatusGuard) GetUserStatus(ctx context.Context, connID, targetID string) (domain.StatusSnapshot, error) {
	if targetID == "" {
		return domain.StatusSnapshot{}, domain.ErrInvalidUserID
	}

	now := time.Now()
	key := cooldownKey(connID, targetID)
	if last, ok := g.cooldowns.Last(key); ok && now.Sub(last) < g.cfg.StatusCooldown {
		g.metrics.RateLimited.Inc()
		g.log.DebugContext(ctx, "guard - status query rate limited",
			"conn_id", connID, "target_id", targetID)
		return domain.StatusSnapshot{}, domain.ErrRateLimited
	}
	g.cooldowns.Set(key, now)

	snap := domain.StatusSnapshot{UserID: targetID}
	if rec, ok := g.presence.Get(targetID); ok {
		snap.IsOnline = rec.IsOnline
		snap.CurrentRoom = rec.CurrentRoom
		snap.LastSeen = rec.LastSeen
	}
	return snap, nil
}

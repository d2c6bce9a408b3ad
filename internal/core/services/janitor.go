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

// Janitor is the periodic sweep: it evicts presence records that have been
// offline beyond the retention window and purges stale cooldown entries.
// Pure housekeeping; it never flips isOnline.
type Janitor struct {
	log       *slog.Logger
	cfg       *config.EngineConfig
	presence  contracts.PresenceStore
	cooldowns contracts.CooldownStore
	metrics   *metrics.Metrics
}

func NewJanitor(
	log *slog.Logger,
	cfg *config.EngineConfig,
	presence contracts.PresenceStore,
	cooldowns contracts.CooldownStore,
	m *metrics.Metrics,
) *Janitor {
	return &Janitor{log: log, cfg: cfg, presence: presence, cooldowns: cooldowns, metrics: m}
}

// Run blocks, sweeping on the configured interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.log.Info("janitor - stopped")
			return
		case <-ticker.C:
			evicted, purged := j.Sweep(time.Now())
			j.log.Info("janitor - sweep complete", "evicted", evicted, "purged", purged)
		}
	}
}

// Sweep runs one pass at the given time and reports how many presence
// records were evicted and how many cooldown entries purged.
func (j *Janitor) Sweep(now time.Time) (evicted, purged int) {
	var stale []string
	j.presence.Range(func(rec domain.PresenceRecord) bool {
		if !rec.IsOnline && !rec.LastSeen.IsZero() && now.Sub(rec.LastSeen) > j.cfg.PresenceRetention {
			stale = append(stale, rec.UserID)
		}
		return true
	})
	for _, userID := range stale {
		j.presence.Delete(userID)
	}
	evicted = len(stale)
	if evicted > 0 {
		j.metrics.PresenceEvicted.Add(float64(evicted))
	}

	purged = j.cooldowns.PurgeBefore(now.Add(-j.cfg.CooldownRetention))
	return evicted, purged
}

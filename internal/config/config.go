package config

import "time"

type Config struct {
	Service     *ServiceConfig
	Postgres    *PostgresConfig
	Engine      *EngineConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	SecretToken string
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// EngineConfig holds the timing windows of the coordination engine.
// Every window is a config field so tests can shrink them.
type EngineConfig struct {
	// StatusDebounce suppresses repeated online broadcasts for the same user.
	StatusDebounce time.Duration
	// DisconnectGrace delays the offline transition to absorb rapid reconnects.
	DisconnectGrace time.Duration
	// SettleDelay runs before the seen-state evaluation after a room join.
	SettleDelay time.Duration
	// StatusCooldown rate-limits status queries per (connection, target) pair.
	StatusCooldown time.Duration
	// JanitorInterval is the period of the background sweep.
	JanitorInterval time.Duration
	// PresenceRetention is how long offline presence records are kept.
	PresenceRetention time.Duration
	// CooldownRetention is how long stale cooldown entries are kept.
	CooldownRetention time.Duration
	// MessageRate and MessageBurst bound the per-connection send rate.
	MessageRate  float64
	MessageBurst int
}

type TracerConfig struct {
	Address string
}

type LoggerConfig struct {
	Level  string
	Format string
}

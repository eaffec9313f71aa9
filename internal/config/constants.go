package config

import "time"

// Postgres pool. SQLite always runs on a single connection.
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// StartupPingTimeout bounds the first round-trip to postgres and redis.
const StartupPingTimeout = 5 * time.Second

// DecisionWindow is how long a pending decision accepts a submission.
const DecisionWindow = 5 * time.Minute

// CleanupJobInterval is how often expired decisions are swept when
// DECISION_RETENTION_HOURS is set.
const CleanupJobInterval = 15 * time.Minute

const (
	DefaultRateLimitPerMin = 60
	RateLimitWindow        = time.Minute
)

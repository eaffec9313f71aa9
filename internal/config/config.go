package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/claude-afk/afk/internal/util"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var logLevels = []string{"debug", "info", "warn", "error"}

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	DatabaseDriver         string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL"`
	VAPIDPublicKey         string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey        string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject           string `env:"VAPID_SUBJECT"`
	EncryptionKey          string `env:"ENCRYPTION_KEY"`
	PublicBaseURL          string `env:"PUBLIC_BASE_URL" envDefault:""`
	NotifyRateLimitPerMin  int    `env:"NOTIFY_RATE_LIMIT_PER_MIN" envDefault:"60"`
	PairingRateLimitPerMin int    `env:"PAIRING_RATE_LIMIT_PER_MIN" envDefault:"10"`
	PushTTLSeconds         int    `env:"PUSH_TTL_SECONDS" envDefault:"300"`
	StaticDir              string `env:"STATIC_DIR" envDefault:"static/app"`
	DecisionRetentionHours int    `env:"DECISION_RETENTION_HOURS" envDefault:"0"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) PushTTL() time.Duration {
	return time.Duration(c.PushTTLSeconds) * time.Second
}

// DecisionRetention returns zero when the retention job is disabled.
func (c *Config) DecisionRetention() time.Duration {
	if c.DecisionRetentionHours <= 0 {
		return 0
	}
	return time.Duration(c.DecisionRetentionHours) * time.Hour
}

func (c *Config) PushConfigured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != "" && c.VAPIDSubject != ""
}

func (c *Config) Validate(isProduction bool) error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DatabaseDriver)
	}

	if c.EncryptionKey != "" {
		if _, err := util.NewSealer(c.EncryptionKey); err != nil {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32): %w", err)
		}
	}

	if !util.IsValidEnum(c.LogLevel, logLevels...) {
		log.Warn().Str("level", c.LogLevel).Msg("unknown LOG_LEVEL, using info")
		c.LogLevel = "info"
	}

	if c.NotifyRateLimitPerMin <= 0 {
		c.NotifyRateLimitPerMin = DefaultRateLimitPerMin
	}
	if c.PairingRateLimitPerMin <= 0 {
		c.PairingRateLimitPerMin = 10
	}

	if !c.PushConfigured() {
		log.Warn().Msg("VAPID keys are not fully configured: push dispatch will fail until VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY and VAPID_SUBJECT are set")
	}

	if isProduction {
		if c.DatabaseDriver == DriverSQLite {
			log.Warn().Msg("DATABASE_DRIVER is sqlite in production: a single instance must own the database file")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: push subscriptions will not be encrypted at rest")
		}
		if c.PublicBaseURL == "" {
			log.Warn().Msg("PUBLIC_BASE_URL is empty: initiate responses will not carry a pairing URL")
		}
	}

	return nil
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &cfg, nil
}

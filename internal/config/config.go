package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config captures the configuration for the reservation engine. Values load
// from an optional YAML file with environment overrides.
type Config struct {
	Env       string `yaml:"env" env:"RESERVE_ENV" env-default:"local"`
	SQLiteDSN string `yaml:"sqlite_dsn" env:"RESERVE_SQLITE_DSN" env-default:"file:reservations.db?_pragma=foreign_keys(1)"`
	RedisAddr string `yaml:"redis_addr" env:"RESERVE_REDIS_ADDR" env-default:""`
	Engine    Engine `yaml:"engine"`
}

// Engine holds the expansion and availability ceilings threaded into the
// orchestrator and checker at construction. Nothing reads these ambiently
// mid-algorithm.
type Engine struct {
	// MaxOccurrences caps how many occurrence dates a recurrence may expand
	// to. Sequences a caller explicitly required beyond the cap fail hard.
	MaxOccurrences int `yaml:"max_occurrences" env:"RESERVE_MAX_OCCURRENCES" env-default:"100"`

	// MaxFreeBusyChecks caps how many occurrences are checked against
	// attendee free-busy data, bounding worst-case latency against the
	// external calendar system.
	MaxFreeBusyChecks int `yaml:"max_freebusy_checks" env:"RESERVE_MAX_FREEBUSY_CHECKS" env-default:"25"`

	// FreeBusyCacheTTL bounds how long a free-busy lookup result is reused.
	FreeBusyCacheTTL time.Duration `yaml:"freebusy_cache_ttl" env:"RESERVE_FREEBUSY_CACHE_TTL" env-default:"5m"`

	// FreeBusyPerSecond rate-limits calls to the external calendar's
	// free-busy endpoint.
	FreeBusyPerSecond float64 `yaml:"freebusy_per_second" env:"RESERVE_FREEBUSY_PER_SECOND" env-default:"10"`

	// LockTTL bounds how long the advisory series lock is held when a locker
	// is configured.
	LockTTL time.Duration `yaml:"lock_ttl" env:"RESERVE_LOCK_TTL" env-default:"30s"`
}

// Load reads configuration from the given YAML file path, falling back to
// environment variables and defaults when the path is empty or missing.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		return cfg, cfg.validate()
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Engine.MaxOccurrences < 1 {
		return fmt.Errorf("config: max_occurrences must be positive, got %d", c.Engine.MaxOccurrences)
	}
	if c.Engine.MaxFreeBusyChecks < 1 {
		return fmt.Errorf("config: max_freebusy_checks must be positive, got %d", c.Engine.MaxFreeBusyChecks)
	}
	return nil
}

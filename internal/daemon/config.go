// Package daemon holds the outpost process configuration.
//
// Values come from three layers, later ones winning:
//
//  1. DefaultConfig
//  2. a TOML file (outpost.toml)
//  3. OUTPOST_* environment variables
package daemon

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/outpost-game/outpost/internal/app/resolver"
	"github.com/outpost-game/outpost/internal/app/reward"
	"github.com/outpost-game/outpost/internal/app/stats"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OUTPOST_"

// Config is the full process configuration.
type Config struct {
	API      APIConfig      `toml:"api" envPrefix:"API_"`
	Storage  StorageConfig  `toml:"storage" envPrefix:"STORAGE_"`
	Metrics  MetricsConfig  `toml:"metrics" envPrefix:"METRICS_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
	Story    StoryConfig    `toml:"story" envPrefix:"STORY_"`
	Resolver ResolverConfig `toml:"resolver" envPrefix:"RESOLVER_"`
	Rewards  RewardsConfig  `toml:"rewards" envPrefix:"REWARDS_"`
	Formula  stats.Params   `toml:"formula"`
}

// APIConfig is the HTTP listener.
type APIConfig struct {
	Host string `toml:"host" env:"HOST"`
	Port int    `toml:"port" env:"PORT"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Dir string `toml:"dir" env:"DIR"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" env:"ENABLED"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
	JSON  bool   `toml:"json" env:"JSON"`
}

// StoryConfig points at milestone content. An empty file disables stories.
type StoryConfig struct {
	ContentFile string `toml:"content_file" env:"CONTENT_FILE"`
}

// ResolverConfig tunes action resolution.
type ResolverConfig struct {
	ConflictRetries int   `toml:"conflict_retries" env:"CONFLICT_RETRIES"`
	Seed            int64 `toml:"seed" env:"SEED"` // 0 draws a random seed at startup
}

// RewardsConfig tunes the drop table.
type RewardsConfig struct {
	MaxScale float64 `toml:"max_scale" env:"MAX_SCALE"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	rc := resolver.DefaultConfig()
	return Config{
		API:      APIConfig{Host: "127.0.0.1", Port: 8080},
		Storage:  StorageConfig{Dir: "data"},
		Metrics:  MetricsConfig{Enabled: true},
		Log:      LogConfig{Level: "info"},
		Resolver: ResolverConfig{ConflictRetries: rc.ConflictRetries},
		Rewards:  RewardsConfig{MaxScale: rc.Rewards.MaxScale},
		Formula:  rc.Stats,
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty), then the environment.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("read config %s: unknown keys %v", path, undecoded)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	if c.Resolver.ConflictRetries < 0 {
		errs = append(errs, errors.New("resolver.conflict_retries must be >= 0"))
	}
	if c.Rewards.MaxScale < 0 {
		errs = append(errs, errors.New("rewards.max_scale must be >= 0"))
	}
	f := c.Formula
	if f.MinCost < 1 || f.BaseCost < f.MinCost {
		errs = append(errs, errors.New("formula: need 1 <= min_cost <= base_cost"))
	}
	if f.MinRate < 0 || f.MinRate > 1 {
		errs = append(errs, errors.New("formula.min_rate must be within [0, 1]"))
	}
	if f.InjuredMultiplier < 1 {
		errs = append(errs, errors.New("formula.injured_multiplier must be >= 1"))
	}
	return errors.Join(errs...)
}

// ListenAddr returns host:port for the HTTP server.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// ResolverSettings assembles the resolver configuration.
func (c Config) ResolverSettings() resolver.Config {
	rw := reward.DefaultConfig()
	rw.MaxScale = c.Rewards.MaxScale
	return resolver.Config{
		Stats:           c.Formula,
		Rewards:         rw,
		ConflictRetries: c.Resolver.ConflictRetries,
	}
}

// ParseListenAddr splits a --listen value. A bare ":port" keeps host empty.
func ParseListenAddr(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("listen address %q: invalid port", addr)
	}
	return host, port, nil
}

// Package config describes the goal bot configuration: the shared core
// settings plus storage, session, verification and web link options.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/goalbot/core/config"
	"github.com/m3rciful/goalbot/core/database"
	"github.com/m3rciful/goalbot/core/telegram/session"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// StorageConfig selects where participants and goals live.
type StorageConfig struct {
	Backend string `yaml:"backend" envconfig:"STORAGE_BACKEND"`
}

// SessionConfig configures the category selection cache.
type SessionConfig struct {
	Backend    string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	RedisURL   string `yaml:"redis_url" envconfig:"REDIS_URL"`
	TTLMinutes int    `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
	KeyPrefix  string `yaml:"key_prefix" envconfig:"SESSION_KEY_PREFIX"`
}

// TTL returns the configured TTL as a duration.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// VerifyConfig configures the account linking HTTP endpoint.
type VerifyConfig struct {
	// Listen is the address of the HTTP server; empty disables it.
	Listen string `yaml:"listen" envconfig:"VERIFY_LISTEN"`
	APIKey string `yaml:"api_key" envconfig:"VERIFY_API_KEY"`
}

// WebConfig points at the web frontend.
type WebConfig struct {
	Host string `yaml:"host" envconfig:"WEB_HOST"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Storage  StorageConfig   `yaml:"storage"`
	Database database.Config `yaml:"database"`
	Session  SessionConfig   `yaml:"session"`
	Verify   VerifyConfig    `yaml:"verify"`
	Web      WebConfig       `yaml:"web"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads .env when present, then the YAML file at path, then environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the configuration and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = StoragePostgres
		fallthrough
	case StoragePostgres:
		if err := c.Database.Normalize(); err != nil {
			return err
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid storage.backend %q; allowed: postgres, memory", c.Storage.Backend)
	}

	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	switch c.Session.Backend {
	case "":
		c.Session.Backend = SessionMemory
	case SessionMemory:
	case SessionRedis:
		if strings.TrimSpace(c.Session.RedisURL) == "" {
			return fmt.Errorf("session.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", c.Session.Backend)
	}
	if c.Session.TTLMinutes < 0 {
		return fmt.Errorf("session.ttl_minutes must be >= 0")
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = int(session.DefaultTTL / time.Minute)
	}

	c.Web.Host = strings.TrimRight(strings.TrimSpace(c.Web.Host), "/")
	c.Verify.Listen = strings.TrimSpace(c.Verify.Listen)
	c.Verify.APIKey = strings.TrimSpace(c.Verify.APIKey)
	return nil
}

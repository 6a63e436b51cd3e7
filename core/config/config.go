package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIURL is the public Telegram Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"
	// DefaultLongPollTimeoutSeconds is used when telegram.longpoll_timeout_seconds is zero.
	DefaultLongPollTimeoutSeconds = 30
	// DefaultRetryDelayMS is the pause after a failed poll iteration.
	DefaultRetryDelayMS = 3000
	// MaxLongPollTimeoutSeconds mirrors the upper bound accepted by getUpdates.
	MaxLongPollTimeoutSeconds = 50
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token  string `yaml:"token" envconfig:"BOT_TOKEN"`
	APIURL string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// RetryDelayMS is the pause between a failed iteration and the next poll.
	RetryDelayMS int `yaml:"retry_delay_ms" envconfig:"TELEGRAM_RETRY_DELAY_MS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills dst from the YAML file at path and then applies environment overrides.
// dst may be any struct that embeds or contains Config.
func Decode(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	api := strings.TrimRight(strings.TrimSpace(cfg.Telegram.APIURL), "/")
	if api == "" {
		api = DefaultAPIURL
	}
	if !strings.HasPrefix(api, "http://") && !strings.HasPrefix(api, "https://") {
		return fmt.Errorf("telegram.api_url must start with http:// or https://, got %q", cfg.Telegram.APIURL)
	}
	cfg.Telegram.APIURL = api

	switch {
	case cfg.Telegram.LongPollTimeoutSeconds < 0:
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	case cfg.Telegram.LongPollTimeoutSeconds == 0:
		cfg.Telegram.LongPollTimeoutSeconds = DefaultLongPollTimeoutSeconds
	case cfg.Telegram.LongPollTimeoutSeconds > MaxLongPollTimeoutSeconds:
		cfg.Telegram.LongPollTimeoutSeconds = MaxLongPollTimeoutSeconds
	}

	if cfg.Telegram.RetryDelayMS < 0 {
		return fmt.Errorf("telegram.retry_delay_ms must be >= 0")
	}
	if cfg.Telegram.RetryDelayMS == 0 {
		cfg.Telegram.RetryDelayMS = DefaultRetryDelayMS
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "", "json", "kv", "text", "pretty":
	default:
		return fmt.Errorf("invalid logging.format %q; allowed: json, kv", cfg.Logging.Format)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m3rciful/goalbot/core/telegram/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: file-token
logging:
  level: debug
database:
  host: db
  name: goals
session:
  backend: redis
  redis_url: redis://localhost:6379/0
verify:
  listen: ":8081"
web:
  host: https://goals.example.com/
`)
	t.Setenv("VERIFY_API_KEY", "from-env")
	t.Chdir(t.TempDir())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "file-token" || cfg.CoreConfig().Logging.Level != "debug" {
		t.Fatalf("core config not decoded: %+v", cfg.Config)
	}
	if cfg.Storage.Backend != StoragePostgres || cfg.Database.Port != "5432" {
		t.Fatalf("storage defaults: %+v %+v", cfg.Storage, cfg.Database)
	}
	if cfg.Session.Backend != SessionRedis || cfg.Session.TTL() != session.DefaultTTL {
		t.Fatalf("session: %+v", cfg.Session)
	}
	if cfg.Verify.APIKey != "from-env" || cfg.Web.Host != "https://goals.example.com" {
		t.Fatalf("verify/web: %+v %+v", cfg.Verify, cfg.Web)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: memory\n")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BOT_TOKEN=dotenv-token\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("BOT_TOKEN") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "dotenv-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestNormalizeRejects(t *testing.T) {
	base := func() Config {
		var c Config
		c.Telegram.Token = "t"
		c.Storage.Backend = StorageMemory
		return c
	}
	cases := map[string]func(*Config){
		"postgres without host": func(c *Config) { c.Storage.Backend = "" },
		"bad storage":           func(c *Config) { c.Storage.Backend = "mongo" },
		"redis without url":     func(c *Config) { c.Session.Backend = SessionRedis },
		"bad session":           func(c *Config) { c.Session.Backend = "file" },
		"negative ttl":          func(c *Config) { c.Session.TTLMinutes = -1 },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		if err := cfg.Normalize(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	cfg := base()
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("memory config: %v", err)
	}
	if cfg.Session.Backend != SessionMemory {
		t.Fatalf("session default = %q", cfg.Session.Backend)
	}
}

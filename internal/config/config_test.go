package config

import (
	"testing"
	"time"
)

func TestLoadSuccess(t *testing.T) {
	t.Setenv("CHURCH_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("CHURCH_SESSION_SECRET", "secret")
	t.Setenv("CHURCH_REDIS_ADDR", "redis:6379")
	t.Setenv("CHURCH_REQUEST_TIMEOUT", "5s")
	t.Setenv("CHURCH_SEARCH_MAX", "25")
	t.Setenv("CHURCH_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("unexpected redis addr: %q", cfg.RedisAddr)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.RequestTimeout)
	}
	if cfg.SearchMax != 25 {
		t.Fatalf("unexpected search max: %d", cfg.SearchMax)
	}
}

func TestValidateErrors(t *testing.T) {
	valid := Config{
		TelegramToken:  "t",
		RedisAddr:      "localhost:6379",
		SessionSecret:  "s",
		RequestTimeout: time.Second,
		SearchMax:      10,
		LogLevel:       "info",
	}
	mutations := []func(*Config){
		func(c *Config) { c.TelegramToken = "" },
		func(c *Config) { c.RedisAddr = "" },
		func(c *Config) { c.SessionSecret = "" },
		func(c *Config) { c.RequestTimeout = 0 },
		func(c *Config) { c.SearchMax = 0 },
		func(c *Config) { c.LogLevel = "trace" },
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for i, mutate := range mutations {
		cfg := valid
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, cfg)
		}
	}
}

func TestDefaultsWhenEnvInvalid(t *testing.T) {
	t.Setenv("CHURCH_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("CHURCH_SESSION_SECRET", "secret")
	t.Setenv("CHURCH_REQUEST_TIMEOUT", "oops")
	t.Setenv("CHURCH_REDIS_DB", "oops")
	t.Setenv("CHURCH_SEARCH_MAX", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("timeout fallback not applied: %v", cfg.RequestTimeout)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("redis db fallback not applied: %d", cfg.RedisDB)
	}
	if cfg.SearchMax != 10 {
		t.Fatalf("search max fallback not applied: %d", cfg.SearchMax)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramToken string
	// RedisAddr is the cache backend; "none" selects the in-process cache,
	// which loses sessions on restart.
	RedisAddr      string
	RedisDB        int
	SessionSecret  string
	RoomTablesPath string
	RequestTimeout time.Duration
	SearchMax      int
	RefreshCron    string
	LogLevel       string
}

func Load() (Config, error) {
	cfg := Config{
		TelegramToken:  strings.TrimSpace(os.Getenv("CHURCH_TELEGRAM_TOKEN")),
		RedisAddr:      getenvDefault("CHURCH_REDIS_ADDR", "localhost:6379"),
		RedisDB:        getenvInt("CHURCH_REDIS_DB", 0),
		SessionSecret:  strings.TrimSpace(os.Getenv("CHURCH_SESSION_SECRET")),
		RoomTablesPath: strings.TrimSpace(os.Getenv("CHURCH_ROOM_TABLES")),
		RequestTimeout: getenvDuration("CHURCH_REQUEST_TIMEOUT", 30*time.Second),
		SearchMax:      getenvInt("CHURCH_SEARCH_MAX", 10),
		RefreshCron:    getenvDefault("CHURCH_REFRESH_CRON", "@every 6h"),
		LogLevel:       getenvDefault("CHURCH_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.New("CHURCH_TELEGRAM_TOKEN is required")
	}
	if c.RedisAddr == "" {
		return errors.New("redis address is required, use \"none\" for the in-memory cache")
	}
	if c.SessionSecret == "" {
		return errors.New("CHURCH_SESSION_SECRET is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be > 0")
	}
	if c.SearchMax <= 0 {
		return errors.New("search result limit must be > 0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

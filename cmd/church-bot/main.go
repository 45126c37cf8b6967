package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Craeckie/church-bot/internal/app"
	"github.com/Craeckie/church-bot/internal/booking"
	"github.com/Craeckie/church-bot/internal/bot"
	"github.com/Craeckie/church-bot/internal/cache"
	"github.com/Craeckie/church-bot/internal/churchtools"
	"github.com/Craeckie/church-bot/internal/config"
	"github.com/Craeckie/church-bot/internal/domain"
	"github.com/Craeckie/church-bot/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level(cfg.LogLevel)}))

	var store cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "none" {
		redisStore := cache.NewRedis(cfg.RedisAddr, cfg.RedisDB)
		defer redisStore.Close()
		if err := redisStore.Ping(ctx); err != nil {
			return fmt.Errorf("redis at %s: %w", cfg.RedisAddr, err)
		}
		store = redisStore
	} else {
		logger.Warn("running with the in-memory cache, sessions are lost on restart")
	}

	tables := booking.DefaultRoomTables()
	if cfg.RoomTablesPath != "" {
		tables, err = booking.LoadRoomTables(cfg.RoomTablesPath)
		if err != nil {
			return err
		}
	}

	client := churchtools.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, store, logger)
	sessions := session.NewStore(store, cfg.SessionSecret)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	logger.Info("connected to telegram", "account", api.Self.UserName)

	b := bot.New(bot.Options{
		API:       api,
		Client:    client,
		Sessions:  sessions,
		Cache:     store,
		Tables:    tables,
		SearchMax: cfg.SearchMax,
		Log:       logger,
	})
	refresher := app.NewRefresher(sessions, client, logger).WithWarmup(func(ctx context.Context, login domain.LoginData) {
		churchtools.NewRoomSource(client, login).Fetch(ctx)
		churchtools.NewCalendarSource(client, login).Fetch(ctx)
	})
	application := app.New(cfg, api, b, refresher, logger)
	return application.Run(ctx)
}

func level(v string) slog.Level {
	switch v {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

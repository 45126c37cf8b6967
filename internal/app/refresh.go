package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/Craeckie/church-bot/internal/domain"
	"github.com/Craeckie/church-bot/internal/session"
)

// LoginRefresher renews an upstream session so the stored cookies stay warm.
type LoginRefresher interface {
	Login(ctx context.Context, login domain.LoginData, force bool) (map[string]string, error)
}

// Refresher walks all stored sessions on a cron schedule and re-logs each
// one in, so users do not hit a cold login on their next request.
type Refresher struct {
	sessions *session.Store
	client   LoginRefresher
	warm     func(ctx context.Context, login domain.LoginData)
	logger   *slog.Logger
}

func NewRefresher(sessions *session.Store, client LoginRefresher, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{sessions: sessions, client: client, logger: logger}
}

// WithWarmup sets a hook run after each successful renewal, used to prefetch
// booking data into the cache while the session is fresh.
func (r *Refresher) WithWarmup(warm func(ctx context.Context, login domain.LoginData)) *Refresher {
	r.warm = warm
	return r
}

// Run blocks until ctx is cancelled. The schedule accepts the cron/v3
// syntax including descriptors like "@every 6h".
func (r *Refresher) Run(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		r.RefreshAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

// RefreshAll renews every stored session once. Failures are logged and
// skipped, a broken login must not block the other chats.
func (r *Refresher) RefreshAll(ctx context.Context) {
	chatIDs, err := r.sessions.ChatIDs(ctx)
	if err != nil {
		r.logger.Error("list sessions", "error", err)
		return
	}
	for _, chatID := range chatIDs {
		if ctx.Err() != nil {
			return
		}
		login, err := r.sessions.Load(ctx, chatID)
		if err != nil {
			r.logger.Warn("load session", "chat_id", chatID, "error", err)
			continue
		}
		if _, err := r.client.Login(ctx, login, false); err != nil {
			r.logger.Warn("refresh login", "chat_id", chatID, "error", err)
			continue
		}
		if r.warm != nil {
			r.warm(ctx, login)
		}
		r.logger.Debug("session refreshed", "chat_id", chatID)
	}
}

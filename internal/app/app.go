// Package app ties the bot, the session refresher and the Telegram update
// feed into one run loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Craeckie/church-bot/internal/config"
)

// UpdateFeed is the incoming half of the Telegram API.
type UpdateFeed interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// UpdateHandler consumes the update channel until its context ends.
type UpdateHandler interface {
	Run(ctx context.Context, updates tgbotapi.UpdatesChannel)
}

type Application struct {
	cfg       config.Config
	feed      UpdateFeed
	bot       UpdateHandler
	refresher *Refresher
	logger    *slog.Logger
}

func New(cfg config.Config, feed UpdateFeed, bot UpdateHandler, refresher *Refresher, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	return &Application{cfg: cfg, feed: feed, bot: bot, refresher: refresher, logger: logger}
}

func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	wg := sync.WaitGroup{}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := a.feed.GetUpdatesChan(updateConfig)

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.bot.Run(ctx, updates)
	}()

	if a.refresher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.refresher.Run(ctx, a.cfg.RefreshCron); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("refresher: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		cancel()
		a.feed.StopReceivingUpdates()
		wg.Wait()
		return err
	case <-ctx.Done():
		a.feed.StopReceivingUpdates()
		wg.Wait()
		return nil
	}
}

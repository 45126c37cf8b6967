package app

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Craeckie/church-bot/internal/cache"
	"github.com/Craeckie/church-bot/internal/config"
	"github.com/Craeckie/church-bot/internal/domain"
	"github.com/Craeckie/church-bot/internal/session"
)

type fakeFeed struct {
	mu      sync.Mutex
	updates chan tgbotapi.Update
	stopped bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{updates: make(chan tgbotapi.Update)}
}

func (f *fakeFeed) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeFeed) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.updates)
	}
}

func (f *fakeFeed) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakeHandler struct {
	done chan struct{}
}

func (h *fakeHandler) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
		}
	}
}

func testConfig() config.Config {
	return config.Config{
		TelegramToken:  "token",
		RedisAddr:      "localhost:6379",
		SessionSecret:  "secret",
		RequestTimeout: time.Second,
		SearchMax:      10,
		RefreshCron:    "@every 1h",
		LogLevel:       "info",
	}
}

func TestApplicationRunCancel(t *testing.T) {
	feed := newFakeFeed()
	handler := &fakeHandler{done: make(chan struct{})}
	application := New(testConfig(), feed, handler, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !feed.wasStopped() {
		t.Error("feed was not stopped")
	}
	select {
	case <-handler.done:
	case <-time.After(time.Second):
		t.Error("handler did not shut down")
	}
}

func TestApplicationRunBadCron(t *testing.T) {
	feed := newFakeFeed()
	handler := &fakeHandler{done: make(chan struct{})}
	store := session.NewStore(cache.NewMemory(), "secret")
	refresher := NewRefresher(store, loginFunc(func(context.Context, domain.LoginData, bool) (map[string]string, error) {
		return nil, nil
	}), nil)

	cfg := testConfig()
	cfg.RefreshCron = "not a schedule"
	application := New(cfg, feed, handler, refresher, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := application.Run(ctx)
	if err == nil {
		t.Fatal("Run returned nil, want schedule error")
	}
}

type loginFunc func(ctx context.Context, login domain.LoginData, force bool) (map[string]string, error)

func (f loginFunc) Login(ctx context.Context, login domain.LoginData, force bool) (map[string]string, error) {
	return f(ctx, login, force)
}

func TestRefreshAll(t *testing.T) {
	store := session.NewStore(cache.NewMemory(), "secret")
	ctx := context.Background()
	for _, chatID := range []int64{1, 2} {
		login := domain.LoginData{URL: "https://demo.church.tools/", Token: "tok", PersonID: "5", ChatID: chatID}
		if err := store.Save(ctx, login); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	var mu sync.Mutex
	refreshed := map[int64]bool{}
	client := loginFunc(func(_ context.Context, login domain.LoginData, force bool) (map[string]string, error) {
		if force {
			t.Error("refresh must not force a new login")
		}
		mu.Lock()
		refreshed[login.ChatID] = true
		mu.Unlock()
		return map[string]string{}, nil
	})

	warmed := 0
	refresher := NewRefresher(store, client, nil).WithWarmup(func(context.Context, domain.LoginData) {
		warmed++
	})
	refresher.RefreshAll(ctx)

	if len(refreshed) != 2 || !refreshed[1] || !refreshed[2] {
		t.Errorf("refreshed = %v, want chats 1 and 2", refreshed)
	}
	if warmed != 2 {
		t.Errorf("warmup ran %d times, want 2", warmed)
	}
}

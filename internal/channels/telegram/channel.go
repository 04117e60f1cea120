// Package telegram connects the relay to Telegram via the Bot API
// using long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"

	"github.com/clipgrab/tikrelay/internal/config"
	"github.com/clipgrab/tikrelay/internal/pipeline"
	"github.com/clipgrab/tikrelay/internal/ratelimit"
	"github.com/clipgrab/tikrelay/internal/store"
)

// scheduler is the queue surface the channel needs.
type scheduler interface {
	Enqueue(req pipeline.Request)
	Depth() (waiting, running int)
}

// Channel receives Telegram updates and feeds admitted requests to the
// scheduler.
type Channel struct {
	bot        *telego.Bot
	cfg        config.TelegramConfig
	limiter    *ratelimit.Limiter
	store      *store.Store
	sched      scheduler
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates the Telegram channel. The bot client is shared with the
// pipeline's sender, so it is constructed by the caller.
func New(bot *telego.Bot, cfg config.TelegramConfig, limiter *ratelimit.Limiter, st *store.Store, sched scheduler) *Channel {
	return &Channel{
		bot:     bot,
		cfg:     cfg,
		limiter: limiter,
		store:   st,
		sched:   sched,
	}
}

// Start begins long polling for updates. It does not block; Stop shuts
// the polling goroutine down.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	slog.Info("telegram bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(pollCtx, update.Message)
				} else {
					slog.Debug("telegram update skipped (no message)", "update_id", update.UpdateID)
				}
			}
		}
	}()

	return nil
}

// Stop cancels long polling and waits for the polling goroutine so
// Telegram releases the getUpdates lock before a new instance starts.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")

	if c.pollCancel != nil {
		c.pollCancel()
	}

	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}

	return nil
}

package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/clipgrab/tikrelay/internal/match"
	"github.com/clipgrab/tikrelay/internal/pipeline"
)

const (
	msgBanned      = "🚫 Bạn đã bị chặn khỏi bot này."
	msgRateLimited = "⏳ Bạn gửi quá nhanh. Vui lòng chờ vài giây rồi thử lại."
)

// handleMessage is the admission path: commands are routed, plain text
// is scanned for a video link, and admitted requests go to the
// scheduler. Everything else is ignored silently.
func (c *Channel) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		c.handleCommand(ctx, msg, text)
		return
	}

	url, ok := match.Find(text)
	if !ok {
		return
	}

	if notice := c.admit(msg, url); notice != "" {
		c.reply(ctx, msg, notice)
	}
}

// admit runs the moderation and rate checks for one link request and
// enqueues it when both pass. A non-empty return is the reply owed to
// the sender; an admitted request stays silent until the pipeline
// posts its processing notice.
func (c *Channel) admit(msg *telego.Message, url string) string {
	userID := msg.From.ID
	if c.store.IsBanned(userID) {
		return msgBanned
	}

	if !c.limiter.Allow(userID) {
		slog.Info("request rate limited", "user_id", userID)
		return msgRateLimited
	}

	c.store.RecordAttempt(userID, displayName(msg.From))

	c.sched.Enqueue(pipeline.Request{
		ChatID:     msg.Chat.ID,
		UserID:     userID,
		Username:   displayName(msg.From),
		SourceURL:  url,
		MessageID:  msg.MessageID,
		EnqueuedAt: time.Now(),
	})
	return ""
}

// reply sends a threaded reply to msg. Failures are logged, never fatal.
func (c *Channel) reply(ctx context.Context, msg *telego.Message, text string) {
	params := tu.Message(tu.ID(msg.Chat.ID), text)
	params.ReplyParameters = &telego.ReplyParameters{MessageID: msg.MessageID}
	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		slog.Warn("failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

// displayName prefers the @username, falling back to the first name so
// every stats row has something readable.
func displayName(u *telego.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	"golang.org/x/time/rate"
)

const msgHelp = `👋 Gửi link TikTok vào đây, bot sẽ trả lại video không logo.

Hỗ trợ các dạng link:
• tiktok.com/@user/video/...
• vt.tiktok.com/... và vm.tiktok.com/...

Giới hạn: video tối đa 50 MB, 3 yêu cầu mỗi 10 giây.`

const msgAdminOnly = "⛔ Lệnh này chỉ dành cho quản trị viên."

// broadcastRate paces outbound broadcast messages to stay under the
// Bot API's ~30 msg/s global ceiling with headroom for normal traffic.
var broadcastRate = rate.Limit(20)

// handleCommand routes slash commands. /start is public; everything
// else requires the configured admin ID.
func (c *Channel) handleCommand(ctx context.Context, msg *telego.Message, text string) {
	cmd, args := splitCommand(text)

	if cmd == "/start" || cmd == "/help" {
		c.reply(ctx, msg, msgHelp)
		return
	}

	if c.cfg.AdminID == 0 || msg.From.ID != c.cfg.AdminID {
		c.reply(ctx, msg, msgAdminOnly)
		return
	}

	switch cmd {
	case "/stats":
		c.cmdStats(ctx, msg)
	case "/users":
		c.cmdUsers(ctx, msg)
	case "/queue":
		c.cmdQueue(ctx, msg)
	case "/ban":
		c.cmdBan(ctx, msg, args)
	case "/unban":
		c.cmdUnban(ctx, msg, args)
	case "/broadcast":
		c.cmdBroadcast(ctx, msg, args)
	default:
		slog.Debug("unknown command ignored", "command", cmd, "user_id", msg.From.ID)
	}
}

// splitCommand separates "/cmd@botname args" into a lowercase command
// and its trimmed argument string.
func splitCommand(text string) (cmd, args string) {
	parts := strings.SplitN(text, " ", 2)
	cmd = parts[0]
	if at := strings.Index(cmd, "@"); at != -1 {
		cmd = cmd[:at]
	}
	cmd = strings.ToLower(cmd)
	if len(parts) == 2 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args
}

func (c *Channel) cmdStats(ctx context.Context, msg *telego.Message) {
	agg := c.store.Snapshot()
	waiting, running := c.sched.Depth()

	c.reply(ctx, msg, fmt.Sprintf(
		"📊 Thống kê\nTổng yêu cầu: %d\nThành công: %d\nThất bại: %d\nNgười dùng: %d\nHàng đợi: %d chờ / %d đang chạy",
		agg.TotalRequests, agg.Succeeded, agg.Failed, len(c.store.Users()), waiting, running))
}

func (c *Channel) cmdUsers(ctx context.Context, msg *telego.Message) {
	users := c.store.Users()
	if len(users) == 0 {
		c.reply(ctx, msg, "Chưa có người dùng nào.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👥 %d người dùng (mới nhất trước):\n", len(users))
	for i, u := range users {
		if i >= 25 {
			fmt.Fprintf(&b, "… và %d người khác", len(users)-i)
			break
		}
		name := u.DisplayName
		if name == "" {
			name = strconv.FormatInt(u.ID, 10)
		}
		fmt.Fprintf(&b, "%s (%d) — %d video, %s\n",
			name, u.ID, u.Downloads, u.LastUsed.Format("2006-01-02 15:04"))
	}
	c.reply(ctx, msg, b.String())
}

func (c *Channel) cmdQueue(ctx context.Context, msg *telego.Message) {
	waiting, running := c.sched.Depth()
	c.reply(ctx, msg, fmt.Sprintf("📥 Hàng đợi: %d chờ, %d đang chạy.", waiting, running))
}

func (c *Channel) cmdBan(ctx context.Context, msg *telego.Message, args string) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		c.reply(ctx, msg, "Cú pháp: /ban <user_id>")
		return
	}
	if !c.store.Ban(id) {
		c.reply(ctx, msg, "Không thể chặn quản trị viên.")
		return
	}
	slog.Info("user banned", "user_id", id, "by", msg.From.ID)
	c.reply(ctx, msg, fmt.Sprintf("🚫 Đã chặn người dùng %d.", id))
}

func (c *Channel) cmdUnban(ctx context.Context, msg *telego.Message, args string) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		c.reply(ctx, msg, "Cú pháp: /unban <user_id>")
		return
	}
	c.store.Unban(id)
	slog.Info("user unbanned", "user_id", id, "by", msg.From.ID)
	c.reply(ctx, msg, fmt.Sprintf("✅ Đã bỏ chặn người dùng %d.", id))
}

// cmdBroadcast fans the message out to every known user. Delivery runs
// in its own goroutine so a large user list never stalls the polling
// loop; per-recipient failures are logged and counted, not retried.
func (c *Channel) cmdBroadcast(ctx context.Context, msg *telego.Message, args string) {
	if args == "" {
		c.reply(ctx, msg, "Cú pháp: /broadcast <nội dung>")
		return
	}

	users := c.store.Users()
	if len(users) == 0 {
		c.reply(ctx, msg, "Chưa có người dùng nào để gửi.")
		return
	}

	go func() {
		limiter := rate.NewLimiter(broadcastRate, 1)
		start := time.Now()
		delivered := 0
		for _, u := range users {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
			if _, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
				ChatID: telego.ChatID{ID: u.ID},
				Text:   args,
			}); err != nil {
				slog.Warn("broadcast delivery failed", "user_id", u.ID, "error", err)
				continue
			}
			delivered++
		}
		slog.Info("broadcast finished",
			"delivered", delivered, "total", len(users), "elapsed", time.Since(start))
		c.reply(ctx, msg, fmt.Sprintf("📣 Đã gửi %d/%d người dùng.", delivered, len(users)))
	}()
}

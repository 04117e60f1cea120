// Package pipeline runs one admitted request end to end: resolve the
// link, verify the payload size, download to transient storage, relay
// the file to the chat, and clean up.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clipgrab/tikrelay/internal/resolver"
	"github.com/clipgrab/tikrelay/internal/verify"
)

// Request is one admitted relay job. Immutable once created.
type Request struct {
	ChatID     int64
	UserID     int64
	Username   string
	SourceURL  string
	MessageID  int
	EnqueuedAt time.Time
}

// Messenger is the chat-platform surface the pipeline needs.
type Messenger interface {
	// SendNotice sends a status message replying to the originating
	// message and returns its ID for later edit/delete.
	SendNotice(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	EditNotice(ctx context.Context, chatID int64, noticeID int, text string) error
	DeleteNotice(ctx context.Context, chatID int64, noticeID int) error
	// SendVideo uploads a local file as a video reply with a caption.
	SendVideo(ctx context.Context, chatID int64, replyTo int, filePath, caption string) error
}

// Resolver yields a direct media URL for a source link.
type Resolver interface {
	Resolve(ctx context.Context, videoURL string) (*resolver.Result, error)
}

// SizeChecker enforces the payload ceiling before download.
type SizeChecker interface {
	Check(ctx context.Context, mediaURL string) error
}

// Outcomes records terminal pipeline results.
type Outcomes interface {
	RecordOutcome(success bool)
}

// Failure classification beyond what resolver/verify already carry.
var (
	ErrDownloadFailed = errors.New("media download failed")
	ErrUploadFailed   = errors.New("video upload failed")
	ErrUnexpected     = errors.New("unexpected pipeline error")
)

// User-facing strings. The bot's audience is Vietnamese, matching the
// processing notice it has always shown.
const (
	msgProcessing    = "⏳ Đang tải video không logo..."
	msgResolveFailed = "❌ Không lấy được video. Link không hợp lệ hoặc dịch vụ đang quá tải, vui lòng thử lại sau."
	msgTooLarge      = "❌ Video quá lớn (%.0f MB). Telegram chỉ cho phép tối đa %d MB."
	msgDownloadFail  = "❌ Tải video thất bại. Vui lòng kiểm tra lại đường truyền và thử lại."
	msgUploadFail    = "❌ Gửi video thất bại. Vui lòng thử lại sau."
	msgGenericFail   = "❌ Có lỗi xảy ra khi tải video. Vui lòng thử lại hoặc link không hợp lệ."
	msgSizeTip       = "\n\n💡 Mẹo: video dài hoặc chất lượng cao có thể vượt giới hạn 50 MB của bot."
)

const downloadTimeout = 60 * time.Second

// Pipeline executes requests. All collaborators are injected.
type Pipeline struct {
	resolver Resolver
	verifier SizeChecker
	msgr     Messenger
	stats    Outcomes
	client   *http.Client
	dir      string
	tracer   trace.Tracer
}

// New creates a Pipeline. dir is the transient staging directory; empty
// means the OS temp dir.
func New(res Resolver, ver SizeChecker, msgr Messenger, stats Outcomes, dir string) *Pipeline {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Pipeline{
		resolver: res,
		verifier: ver,
		msgr:     msgr,
		stats:    stats,
		client:   &http.Client{Timeout: downloadTimeout},
		dir:      dir,
		tracer:   otel.Tracer("tikrelay/pipeline"),
	}
}

// Run takes the request to a terminal outcome. The error is the
// classified failure, already reported to the user; callers only log it.
// Exactly one outcome is recorded per request, no matter how Run exits.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.Int64("chat.id", req.ChatID),
			attribute.Int64("user.id", req.UserID),
			attribute.String("source.url", req.SourceURL),
		))
	defer span.End()

	noticeID, err := p.msgr.SendNotice(ctx, req.ChatID, req.MessageID, msgProcessing)
	if err != nil {
		// The chat may be unreachable, but the relay itself can still
		// succeed; carry on without a notice to edit.
		slog.Warn("failed to send processing notice", "chat_id", req.ChatID, "error", err)
		noticeID = 0
	}

	runErr := p.execute(ctx, req, span)

	p.report(ctx, req, noticeID, runErr)
	p.stats.RecordOutcome(runErr == nil)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return runErr
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// execute performs resolve → verify → download → upload. Panics are
// contained here so a misbehaving provider can never take down the
// scheduler loop.
func (p *Pipeline) execute(ctx context.Context, req Request, span trace.Span) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panic", "source_url", req.SourceURL, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
		}
	}()

	res, err := p.resolver.Resolve(ctx, req.SourceURL)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	span.AddEvent("resolved")

	if err := p.verifier.Check(ctx, res.MediaURL); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	span.AddEvent("verified")

	path, err := p.download(ctx, res.MediaURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	// Transient file is scoped to this execution: remove on every exit
	// path, success or error. Its own failure is only logged.
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove transient file", "path", path, "error", rmErr)
		}
	}()
	span.AddEvent("downloaded")

	if err := p.msgr.SendVideo(ctx, req.ChatID, req.MessageID, path, caption(res)); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	span.AddEvent("uploaded")

	return nil
}

// download streams the media to a uniquely named file in the staging
// dir. The name carries a timestamp and a random suffix so concurrent
// executions never collide.
func (p *Pipeline) download(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media status %d", resp.StatusCode)
	}

	name := fmt.Sprintf("tikrelay_%d_%s.mp4", time.Now().UnixNano(), uuid.NewString()[:8])
	path := filepath.Join(p.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create transient file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("stream media: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close transient file: %w", err)
	}

	return path, nil
}

// report deletes the processing notice on success or edits it in place
// to a classified user-facing message on failure.
func (p *Pipeline) report(ctx context.Context, req Request, noticeID int, runErr error) {
	if noticeID == 0 {
		return
	}

	if runErr == nil {
		if err := p.msgr.DeleteNotice(ctx, req.ChatID, noticeID); err != nil {
			slog.Warn("failed to delete processing notice", "chat_id", req.ChatID, "error", err)
		}
		return
	}

	if err := p.msgr.EditNotice(ctx, req.ChatID, noticeID, UserMessage(runErr)); err != nil {
		slog.Warn("failed to edit processing notice", "chat_id", req.ChatID, "error", err)
	}
}

// UserMessage maps a classified pipeline error to the localized,
// non-technical text shown in the chat.
func UserMessage(err error) string {
	var tooLarge *verify.TooLargeError
	switch {
	case errors.As(err, &tooLarge):
		return fmt.Sprintf(msgTooLarge, tooLarge.SizeMB, tooLarge.LimitMB)
	case errors.Is(err, resolver.ErrExhausted):
		return msgResolveFailed + msgSizeTip
	case errors.Is(err, ErrDownloadFailed):
		return msgDownloadFail
	case errors.Is(err, ErrUploadFailed):
		return msgUploadFail + msgSizeTip
	default:
		return msgGenericFail + msgSizeTip
	}
}

func caption(res *resolver.Result) string {
	title := strings.TrimSpace(res.Title)
	author := strings.TrimSpace(res.Author)
	switch {
	case title != "" && author != "":
		return fmt.Sprintf("%s\n— %s", title, author)
	case title != "":
		return title
	case author != "":
		return "— " + author
	default:
		return ""
	}
}

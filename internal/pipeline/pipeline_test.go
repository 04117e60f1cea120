package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipgrab/tikrelay/internal/resolver"
	"github.com/clipgrab/tikrelay/internal/verify"
)

// fakeMessenger records every chat interaction.
type fakeMessenger struct {
	mu          sync.Mutex
	noticeErr   error
	videoErr    error
	notices     []string
	edits       []string
	deleted     []int
	sentVideos  []string // file paths at send time
	sentCaption string
	fileExisted bool
}

func (m *fakeMessenger) SendNotice(_ context.Context, _ int64, _ int, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.noticeErr != nil {
		return 0, m.noticeErr
	}
	m.notices = append(m.notices, text)
	return 77, nil
}

func (m *fakeMessenger) EditNotice(_ context.Context, _ int64, _ int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, text)
	return nil
}

func (m *fakeMessenger) DeleteNotice(_ context.Context, _ int64, noticeID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, noticeID)
	return nil
}

func (m *fakeMessenger) SendVideo(_ context.Context, _ int64, _ int, filePath, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoErr != nil {
		return m.videoErr
	}
	m.sentVideos = append(m.sentVideos, filePath)
	m.sentCaption = caption
	_, statErr := os.Stat(filePath)
	m.fileExisted = statErr == nil
	return nil
}

type fakeResolver struct {
	res *resolver.Result
	err error
}

func (r *fakeResolver) Resolve(context.Context, string) (*resolver.Result, error) {
	return r.res, r.err
}

type fakeChecker struct{ err error }

func (c *fakeChecker) Check(context.Context, string) error { return c.err }

type fakeOutcomes struct {
	mu        sync.Mutex
	succeeded int
	failed    int
}

func (o *fakeOutcomes) RecordOutcome(success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if success {
		o.succeeded++
	} else {
		o.failed++
	}
}

func testRequest() Request {
	return Request{
		ChatID:     10,
		UserID:     20,
		Username:   "ann",
		SourceURL:  "https://vt.tiktok.com/ABC123/",
		MessageID:  5,
		EnqueuedAt: time.Now(),
	}
}

func TestRunSuccess(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "fake video bytes")
	}))
	defer media.Close()

	msgr := &fakeMessenger{}
	outcomes := &fakeOutcomes{}
	dir := t.TempDir()

	p := New(
		&fakeResolver{res: &resolver.Result{MediaURL: media.URL + "/v.mp4", Title: "cat clip", Author: "ann"}},
		&fakeChecker{},
		msgr,
		outcomes,
		dir,
	)

	if err := p.Run(context.Background(), testRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(msgr.notices) != 1 || msgr.notices[0] != msgProcessing {
		t.Errorf("processing notice not sent: %v", msgr.notices)
	}
	if len(msgr.sentVideos) != 1 {
		t.Fatalf("expected one video send, got %d", len(msgr.sentVideos))
	}
	if !msgr.fileExisted {
		t.Error("transient file must exist at upload time")
	}
	if !strings.Contains(msgr.sentCaption, "cat clip") || !strings.Contains(msgr.sentCaption, "ann") {
		t.Errorf("caption = %q, want title and author", msgr.sentCaption)
	}
	if len(msgr.deleted) != 1 || msgr.deleted[0] != 77 {
		t.Errorf("processing notice should be deleted on success, got %v", msgr.deleted)
	}
	if len(msgr.edits) != 0 {
		t.Errorf("no edits expected on success, got %v", msgr.edits)
	}
	if outcomes.succeeded != 1 || outcomes.failed != 0 {
		t.Errorf("outcomes = %d/%d, want 1/0", outcomes.succeeded, outcomes.failed)
	}

	// Transient file is gone after the run.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir not cleaned up: %d files left", len(entries))
	}
}

func TestRunResolutionFailed(t *testing.T) {
	msgr := &fakeMessenger{}
	outcomes := &fakeOutcomes{}

	p := New(
		&fakeResolver{err: fmt.Errorf("resolve: %w", resolver.ErrExhausted)},
		&fakeChecker{},
		msgr,
		outcomes,
		t.TempDir(),
	)

	err := p.Run(context.Background(), testRequest())
	if !errors.Is(err, resolver.ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if len(msgr.edits) != 1 || !strings.Contains(msgr.edits[0], "Không lấy được video") {
		t.Errorf("notice should be edited to resolution failure, got %v", msgr.edits)
	}
	if len(msgr.deleted) != 0 {
		t.Error("notice must not be deleted on failure")
	}
	if outcomes.failed != 1 {
		t.Errorf("failed outcomes = %d, want 1", outcomes.failed)
	}
}

func TestRunTooLargeAbortsBeforeDownload(t *testing.T) {
	var mediaHits int
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaHits++
	}))
	defer media.Close()

	msgr := &fakeMessenger{}
	outcomes := &fakeOutcomes{}

	p := New(
		&fakeResolver{res: &resolver.Result{MediaURL: media.URL + "/v.mp4"}},
		&fakeChecker{err: &verify.TooLargeError{SizeMB: 60, LimitMB: 50}},
		msgr,
		outcomes,
		t.TempDir(),
	)

	err := p.Run(context.Background(), testRequest())
	var tooLarge *verify.TooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("err = %v, want TooLargeError", err)
	}
	if mediaHits != 0 {
		t.Error("oversized media must not be downloaded")
	}
	if len(msgr.edits) != 1 || !strings.Contains(msgr.edits[0], "60 MB") {
		t.Errorf("user message should quote the measured size, got %v", msgr.edits)
	}
}

func TestRunDownloadFailed(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer media.Close()

	msgr := &fakeMessenger{}
	outcomes := &fakeOutcomes{}

	p := New(
		&fakeResolver{res: &resolver.Result{MediaURL: media.URL + "/v.mp4"}},
		&fakeChecker{},
		msgr,
		outcomes,
		t.TempDir(),
	)

	err := p.Run(context.Background(), testRequest())
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("err = %v, want ErrDownloadFailed", err)
	}
	if outcomes.failed != 1 {
		t.Errorf("failed outcomes = %d, want 1", outcomes.failed)
	}
}

func TestRunUploadFailedStillCleansUp(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "bytes")
	}))
	defer media.Close()

	msgr := &fakeMessenger{videoErr: errors.New("413 too big")}
	outcomes := &fakeOutcomes{}
	dir := t.TempDir()

	p := New(
		&fakeResolver{res: &resolver.Result{MediaURL: media.URL + "/v.mp4"}},
		&fakeChecker{},
		msgr,
		outcomes,
		dir,
	)

	err := p.Run(context.Background(), testRequest())
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Errorf("transient file must be removed even when upload fails, %d left", len(entries))
	}
}

func TestRunPanicClassifiedAsFailure(t *testing.T) {
	msgr := &fakeMessenger{}
	outcomes := &fakeOutcomes{}

	p := New(panicResolver{}, &fakeChecker{}, msgr, outcomes, t.TempDir())

	err := p.Run(context.Background(), testRequest())
	if !errors.Is(err, ErrUnexpected) {
		t.Fatalf("err = %v, want ErrUnexpected", err)
	}
	if outcomes.failed != 1 {
		t.Errorf("panic must still record exactly one failed outcome, got %d", outcomes.failed)
	}
	if len(msgr.edits) != 1 {
		t.Errorf("user must still get a failure message after a panic, got %v", msgr.edits)
	}
}

type panicResolver struct{}

func (panicResolver) Resolve(context.Context, string) (*resolver.Result, error) {
	panic("provider went sideways")
}

func TestRunNoticeFailureDoesNotAbort(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "bytes")
	}))
	defer media.Close()

	msgr := &fakeMessenger{noticeErr: errors.New("chat unreachable")}
	outcomes := &fakeOutcomes{}

	p := New(
		&fakeResolver{res: &resolver.Result{MediaURL: media.URL + "/v.mp4"}},
		&fakeChecker{},
		msgr,
		outcomes,
		t.TempDir(),
	)

	if err := p.Run(context.Background(), testRequest()); err != nil {
		t.Fatalf("Run should survive a failed notice, got %v", err)
	}
	if len(msgr.sentVideos) != 1 {
		t.Error("video should still be relayed without a notice")
	}
}

func TestUserMessageClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"resolution failed", fmt.Errorf("x: %w", resolver.ErrExhausted), "Không lấy được video"},
		{"too large", &verify.TooLargeError{SizeMB: 60, LimitMB: 50}, "60 MB"},
		{"download failed", fmt.Errorf("%w: boom", ErrDownloadFailed), "Tải video thất bại"},
		{"upload failed", fmt.Errorf("%w: boom", ErrUploadFailed), "Gửi video thất bại"},
		{"unexpected", errors.New("who knows"), "Có lỗi xảy ra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("UserMessage(%v) = %q, want substring %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestCaption(t *testing.T) {
	tests := []struct {
		name string
		res  resolver.Result
		want string
	}{
		{"both", resolver.Result{Title: "t", Author: "a"}, "t\n— a"},
		{"title only", resolver.Result{Title: "t"}, "t"},
		{"author only", resolver.Result{Author: "a"}, "— a"},
		{"neither", resolver.Result{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := caption(&tt.res); got != tt.want {
				t.Errorf("caption = %q, want %q", got, tt.want)
			}
		})
	}
}

// Package queue dispatches admitted requests to the relay pipeline
// under a fixed concurrency cap, strictly FIFO.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clipgrab/tikrelay/internal/pipeline"
)

// Runner executes one request to a terminal outcome.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) error
}

// Scheduler owns the waiting list and the running counter. A pipeline
// completion signals the dispatcher instead of re-entering it, so a
// freed slot is always claimed by the earliest waiting request.
type Scheduler struct {
	mu      sync.Mutex
	cap     int
	runner  Runner
	waiting []pipeline.Request
	running int
	wake    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Scheduler with the given concurrency cap.
func New(capacity int, runner Runner) *Scheduler {
	if capacity <= 0 {
		capacity = 1
	}
	return &Scheduler{
		cap:    capacity,
		runner: runner,
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue appends the request to the waiting list and returns
// immediately; it never blocks the event source.
func (s *Scheduler) Enqueue(req pipeline.Request) {
	s.mu.Lock()
	s.waiting = append(s.waiting, req)
	depth := len(s.waiting)
	s.mu.Unlock()

	slog.Debug("request enqueued",
		"user_id", req.UserID, "chat_id", req.ChatID, "queue_depth", depth)
	s.signal()
}

// Depth returns the current waiting and running counts.
func (s *Scheduler) Depth() (waiting, running int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting), s.running
}

// Run is the dispatcher loop. It blocks until ctx is cancelled, then
// waits for in-flight pipelines to reach their terminal outcome.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("scheduler started", "concurrency", s.cap)
	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler draining in-flight requests")
			s.wg.Wait()
			slog.Info("scheduler stopped")
			return
		case <-s.wake:
			s.advance(ctx)
		}
	}
}

// signal nudges the dispatcher; a pending nudge is enough, extra ones
// coalesce.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// advance launches waiting requests while capacity allows. Each launch
// decrements the running count on completion, even on an unexpected
// error, and signals so the freed slot is reused at once.
func (s *Scheduler) advance(ctx context.Context) {
	// In-flight work must drain, not abort, when the dispatcher context
	// is cancelled at shutdown; per-call HTTP timeouts bound the drain.
	runCtx := context.WithoutCancel(ctx)

	for {
		s.mu.Lock()
		if s.running >= s.cap || len(s.waiting) == 0 {
			s.mu.Unlock()
			return
		}
		req := s.waiting[0]
		s.waiting = s.waiting[1:]
		s.running++
		s.mu.Unlock()

		s.wg.Add(1)
		go func(req pipeline.Request) {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				s.running--
				s.mu.Unlock()
				s.signal()
			}()

			if err := s.runner.Run(runCtx, req); err != nil {
				slog.Warn("request finished with failure",
					"user_id", req.UserID, "source_url", req.SourceURL, "error", err)
			}
		}(req)
	}
}

// Package ratelimit implements per-user sliding-window admission control.
package ratelimit

import (
	"sync"
	"time"
)

// maxTrackedUsers caps the number of tracked users so the window map
// cannot grow without bound over the process lifetime.
const maxTrackedUsers = 4096

type window struct {
	resetAt time.Time
	count   int
}

// Limiter admits up to a fixed number of requests per user within a
// fixed window. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[int64]*window
	now     func() time.Time
}

// New creates a Limiter admitting max requests per user per window.
func New(win time.Duration, max int) *Limiter {
	return &Limiter{
		window:  win,
		max:     max,
		entries: make(map[int64]*window),
		now:     time.Now,
	}
}

// Allow reports whether the user may issue another request now.
// A user with no window, or whose window has expired, starts a fresh
// window and is admitted.
func (l *Limiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Prune expired windows when approaching the cap.
	if len(l.entries) >= maxTrackedUsers {
		for id, w := range l.entries {
			if now.After(w.resetAt) {
				delete(l.entries, id)
			}
		}
		// Hard eviction if still at cap.
		for len(l.entries) >= maxTrackedUsers {
			for id := range l.entries {
				delete(l.entries, id)
				break
			}
		}
	}

	w, ok := l.entries[userID]
	if !ok || now.After(w.resetAt) {
		l.entries[userID] = &window{resetAt: now.Add(l.window), count: 1}
		return true
	}

	if w.count < l.max {
		w.count++
		return true
	}
	return false
}

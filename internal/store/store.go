// Package store keeps moderation and usage state for the process
// lifetime. Nothing here is persisted; a restart resets everything.
package store

import (
	"sort"
	"sync"
	"time"
)

// UserEntry is a per-user usage record.
type UserEntry struct {
	ID          int64
	DisplayName string
	Downloads   int64
	LastUsed    time.Time
}

// Aggregate holds process-lifetime counters.
type Aggregate struct {
	TotalRequests int64
	Succeeded     int64
	Failed        int64
}

// Store is the moderation and stats state container.
// Safe for concurrent use from the admission path and pipeline
// completion callbacks.
type Store struct {
	mu      sync.Mutex
	adminID int64
	banned  map[int64]struct{}
	users   map[int64]*UserEntry
	agg     Aggregate
	now     func() time.Time
}

// New creates an empty Store. adminID is exempt from bans (0 = no admin).
func New(adminID int64) *Store {
	return &Store{
		adminID: adminID,
		banned:  make(map[int64]struct{}),
		users:   make(map[int64]*UserEntry),
		now:     time.Now,
	}
}

// Ban adds the user to the ban set. Banning the admin is a no-op;
// the return value reports whether the ban was applied.
func (s *Store) Ban(userID int64) bool {
	if s.adminID != 0 && userID == s.adminID {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banned[userID] = struct{}{}
	return true
}

// Unban removes the user from the ban set.
func (s *Store) Unban(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.banned, userID)
}

// IsBanned reports whether the user is banned.
func (s *Store) IsBanned(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.banned[userID]
	return ok
}

// RecordAttempt counts an admitted request for the user, creating the
// usage entry on first sight. displayName refreshes on every call so
// renamed users show their current handle.
func (s *Store) RecordAttempt(userID int64, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agg.TotalRequests++

	u, ok := s.users[userID]
	if !ok {
		u = &UserEntry{ID: userID}
		s.users[userID] = u
	}
	u.DisplayName = displayName
	u.Downloads++
	u.LastUsed = s.now()
}

// RecordOutcome counts one terminal pipeline outcome.
func (s *Store) RecordOutcome(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.agg.Succeeded++
	} else {
		s.agg.Failed++
	}
}

// Snapshot returns a copy of the aggregate counters.
func (s *Store) Snapshot() Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg
}

// Users returns all known users, most recently active first.
func (s *Store) Users() []UserEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]UserEntry, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUsed.After(out[j].LastUsed)
	})
	return out
}

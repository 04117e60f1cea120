package store

import (
	"testing"
	"time"
)

func TestBanUnban(t *testing.T) {
	s := New(100)

	if !s.Ban(7) {
		t.Fatal("ban of regular user should be applied")
	}
	if !s.IsBanned(7) {
		t.Error("user 7 should be banned")
	}

	s.Unban(7)
	if s.IsBanned(7) {
		t.Error("user 7 should be unbanned")
	}
}

func TestBanAdminIsNoOp(t *testing.T) {
	s := New(100)

	if s.Ban(100) {
		t.Error("banning the admin must be rejected")
	}
	if s.IsBanned(100) {
		t.Error("admin must not end up in the ban set")
	}
}

func TestBanWithNoAdminConfigured(t *testing.T) {
	s := New(0)
	// With no admin configured every ID is bannable, including 0.
	if !s.Ban(5) {
		t.Error("ban should be applied when no admin is configured")
	}
}

func TestRecordAttempt(t *testing.T) {
	s := New(0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.RecordAttempt(1, "alice")
	s.RecordAttempt(1, "alice_renamed")
	s.RecordAttempt(2, "bob")

	agg := s.Snapshot()
	if agg.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", agg.TotalRequests)
	}

	users := s.Users()
	if len(users) != 2 {
		t.Fatalf("len(Users()) = %d, want 2", len(users))
	}
	for _, u := range users {
		if u.ID == 1 {
			if u.Downloads != 2 {
				t.Errorf("user 1 downloads = %d, want 2", u.Downloads)
			}
			if u.DisplayName != "alice_renamed" {
				t.Errorf("display name not refreshed: %q", u.DisplayName)
			}
		}
	}
}

func TestUsersSortedByLastUsed(t *testing.T) {
	s := New(0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	s.RecordAttempt(1, "old")
	now = base.Add(time.Minute)
	s.RecordAttempt(2, "recent")

	users := s.Users()
	if users[0].ID != 2 {
		t.Errorf("most recently active user should sort first, got %d", users[0].ID)
	}
}

func TestRecordOutcome(t *testing.T) {
	s := New(0)

	s.RecordOutcome(true)
	s.RecordOutcome(true)
	s.RecordOutcome(false)

	agg := s.Snapshot()
	if agg.Succeeded != 2 || agg.Failed != 1 {
		t.Errorf("outcome counters = %d/%d, want 2/1", agg.Succeeded, agg.Failed)
	}
}

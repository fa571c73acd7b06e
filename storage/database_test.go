package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/messaging"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	log, _ := logger.New(logger.Config{Level: "error", Format: "text"})
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), log)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTargetQueue(t *testing.T) {
	db := testDB(t)

	if err := db.AddTarget("alice", "hey there"); err != nil {
		t.Fatalf("AddTarget: %v", err)
	}
	if err := db.AddTarget("bob", "hello"); err != nil {
		t.Fatalf("AddTarget: %v", err)
	}

	targets, err := db.GetPendingTargets(10)
	if err != nil {
		t.Fatalf("GetPendingTargets: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 pending targets, got %d", len(targets))
	}
	if targets[0].Username != "alice" {
		t.Errorf("expected oldest target first, got %q", targets[0].Username)
	}

	if err := db.UpdateTargetStatus("alice", TargetSent); err != nil {
		t.Fatalf("UpdateTargetStatus: %v", err)
	}

	targets, _ = db.GetPendingTargets(10)
	if len(targets) != 1 || targets[0].Username != "bob" {
		t.Errorf("expected only bob pending, got %v", targets)
	}
}

func TestAddTargetRequeuesExisting(t *testing.T) {
	db := testDB(t)

	db.AddTarget("alice", "first message")
	db.UpdateTargetStatus("alice", TargetFailed)

	if err := db.AddTarget("alice", "second message"); err != nil {
		t.Fatalf("AddTarget re-add: %v", err)
	}

	targets, _ := db.GetPendingTargets(10)
	if len(targets) != 1 {
		t.Fatalf("expected alice requeued, got %d targets", len(targets))
	}
	if targets[0].Message != "second message" {
		t.Errorf("expected message refreshed, got %q", targets[0].Message)
	}
}

func TestRecordOutcomeUpdatesStats(t *testing.T) {
	db := testDB(t)
	db.AddTarget("alice", "hey")
	db.AddTarget("bob", "hey")

	db.RecordOutcome(messaging.Outcome{
		Username:  "alice",
		Status:    true,
		SentVia:   messaging.ChannelStory,
		Timestamp: time.Now(),
	})
	db.RecordOutcome(messaging.Outcome{
		Username:    "bob",
		Status:      false,
		ErrorCode:   messaging.ErrCodeNoMessagingOption,
		ErrorReason: "no channel available",
		Timestamp:   time.Now(),
	})

	stats, err := db.GetTodayStats()
	if err != nil {
		t.Fatalf("GetTodayStats: %v", err)
	}
	if stats.MessagesSent != 1 {
		t.Errorf("expected 1 message sent, got %d", stats.MessagesSent)
	}
	if stats.MessagesFailed != 1 {
		t.Errorf("expected 1 message failed, got %d", stats.MessagesFailed)
	}

	// Successful delivery marks the target done; failed one leaves the queue too
	targets, _ := db.GetPendingTargets(10)
	if len(targets) != 0 {
		t.Errorf("expected no pending targets after outcomes, got %d", len(targets))
	}

	contacted, err := db.HasContacted("alice")
	if err != nil {
		t.Fatalf("HasContacted: %v", err)
	}
	if !contacted {
		t.Error("expected alice marked as contacted")
	}
	contacted, _ = db.HasContacted("bob")
	if contacted {
		t.Error("failed delivery should not count as contacted")
	}
}

func TestGetTodayStatsEmpty(t *testing.T) {
	db := testDB(t)

	stats, err := db.GetTodayStats()
	if err != nil {
		t.Fatalf("GetTodayStats: %v", err)
	}
	if stats.MessagesSent != 0 || stats.ProfilesViewed != 0 {
		t.Errorf("expected zero stats for fresh database, got %+v", stats)
	}
}

func TestRecordActivityAccumulates(t *testing.T) {
	db := testDB(t)

	if err := db.RecordActivity(3, 5, 1); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}
	if err := db.RecordActivity(2, 0, 0); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	stats, err := db.GetTodayStats()
	if err != nil {
		t.Fatalf("GetTodayStats: %v", err)
	}
	if stats.ProfilesViewed != 5 {
		t.Errorf("profiles viewed = %d, expected 5", stats.ProfilesViewed)
	}
	if stats.PostsLiked != 5 {
		t.Errorf("posts liked = %d, expected 5", stats.PostsLiked)
	}
	if stats.FollowsMade != 1 {
		t.Errorf("follows made = %d, expected 1", stats.FollowsMade)
	}
	if stats.MessagesSent != 0 {
		t.Errorf("messages sent = %d, expected untouched 0", stats.MessagesSent)
	}
}

func TestCookieFileRoundTrip(t *testing.T) {
	db := testDB(t)
	path := filepath.Join(t.TempDir(), "cookies.json")

	saved := []*SessionCookie{
		{Name: "sessionid", Value: "abc123", Domain: ".instagram.com", Path: "/", Expires: time.Now().Add(24 * time.Hour).Unix(), HTTPOnly: true, Secure: true},
		{Name: "csrftoken", Value: "tok", Domain: ".instagram.com", Path: "/"},
	}

	if err := db.SaveCookiesToFile(saved, path); err != nil {
		t.Fatalf("SaveCookiesToFile: %v", err)
	}

	loaded, err := db.LoadCookiesFromFile(path)
	if err != nil {
		t.Fatalf("LoadCookiesFromFile: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(loaded))
	}
	if loaded[0].Name != "sessionid" || loaded[0].Value != "abc123" || !loaded[0].HTTPOnly {
		t.Errorf("cookie fields not preserved: %+v", loaded[0])
	}
}

func TestLoadCookiesFromMissingFile(t *testing.T) {
	db := testDB(t)

	cookies, err := db.LoadCookiesFromFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("expected nil error for missing file, got %v", err)
	}
	if cookies != nil {
		t.Errorf("expected nil cookies for missing file, got %v", cookies)
	}
}

func TestCookieDatabaseRoundTrip(t *testing.T) {
	db := testDB(t)

	saved := []*SessionCookie{
		{Name: "sessionid", Value: "v1", Domain: ".instagram.com", Path: "/", Secure: true},
	}
	if err := db.SaveCookies(saved); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}

	// Second save replaces, never appends
	if err := db.SaveCookies(saved); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}

	loaded, err := db.LoadCookies()
	if err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 cookie after re-save, got %d", len(loaded))
	}
	if loaded[0].Value != "v1" || !loaded[0].Secure {
		t.Errorf("cookie fields not preserved: %+v", loaded[0])
	}
}

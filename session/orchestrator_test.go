package session

import (
	"context"
	"testing"
	"time"

	"github.com/instaflow/instagram-outreach/behavior"
	"github.com/instaflow/instagram-outreach/browsing"
	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/engagement"
	"github.com/instaflow/instagram-outreach/feed"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/messaging"
	"github.com/instaflow/instagram-outreach/profile"
	"github.com/instaflow/instagram-outreach/stealth"
)

// ---------------------------------------------------------------------------
// fakes

type fakeHuman struct {
	perform bool
}

func (f *fakeHuman) HumanDelay(ctx context.Context, min, max float64, dist stealth.Distribution) float64 {
	return min
}
func (f *fakeHuman) ShouldPerform(probability float64) bool {
	if probability >= 1.0 {
		return true
	}
	if probability <= 0 {
		return false
	}
	return f.perform
}
func (f *fakeHuman) RandomInt(min, max int) int        { return min }
func (f *fakeHuman) RandomFloat(min, max float64) float64 { return min }

type fakeBrowser struct {
	snapshots   map[string]*profile.Snapshot
	unreachable map[string]bool
	noReels     bool
	visited     []string
	browsedWith map[string]behavior.Pattern
}

func (f *fakeBrowser) NavigateToProfile(ctx context.Context, username string) bool {
	f.visited = append(f.visited, username)
	return !f.unreachable[username]
}
func (f *fakeBrowser) CheckProfile(ctx context.Context, username string) *profile.Snapshot {
	snap, ok := f.snapshots[username]
	if !ok {
		return &profile.Snapshot{Username: username, IsPrivate: true}
	}
	return snap
}
func (f *fakeBrowser) BrowseProfile(ctx context.Context, username string, pattern behavior.Pattern) browsing.BrowseResult {
	if f.browsedWith == nil {
		f.browsedWith = make(map[string]behavior.Pattern)
	}
	f.browsedWith[username] = pattern
	return browsing.BrowseResult{Browsed: true, Profile: f.CheckProfile(ctx, username)}
}
func (f *fakeBrowser) ScrollFeed(ctx context.Context, minScrolls, maxScrolls int, readCaptions bool) {}
func (f *fakeBrowser) ViewStories(ctx context.Context, maxStories int) bool                          { return false }
func (f *fakeBrowser) ViewRandomPost(ctx context.Context) bool                                       { return true }
func (f *fakeBrowser) NavigateToExplore(ctx context.Context) bool                                    { return true }
func (f *fakeBrowser) NavigateToReels(ctx context.Context) bool                                      { return !f.noReels }
func (f *fakeBrowser) NavigateToHashtag(ctx context.Context, tag string) bool                        { return true }
func (f *fakeBrowser) ReturnToHomeFeed(ctx context.Context) bool                                     { return true }

type fakeEngager struct {
	counters *engagement.Counters
	stats    engagement.Stats
	calls    int
}

func (f *fakeEngager) LikePost(ctx context.Context) bool { return true }
func (f *fakeEngager) EngageWithUserContent(ctx context.Context, username string, likeProbability, followProbability float64, maxPostsToLike int) engagement.Stats {
	f.calls++
	return f.stats
}
func (f *fakeEngager) Counters() *engagement.Counters { return f.counters }

type fakeFeed struct{}

func (f *fakeFeed) BrowseHomeFeed(ctx context.Context, duration time.Duration, likeProbability, browseProfileProbability float64) feed.Stats {
	return feed.Stats{PostsViewed: 3, PostsLiked: 1, TimeSpent: duration}
}
func (f *fakeFeed) ExploreDiscoverFeed(ctx context.Context, duration time.Duration, likeProbability float64) feed.Stats {
	return feed.Stats{PostsViewed: 2, TimeSpent: duration}
}
func (f *fakeFeed) DiscoverSimilarProfiles(ctx context.Context, username string, count int) []string {
	return nil
}

type fakeStrategy struct {
	channel   messaging.Channel
	available bool
	outcome   messaging.Outcome
	calls     int
}

func (f *fakeStrategy) Channel() messaging.Channel { return f.channel }
func (f *fakeStrategy) Available(s *profile.Snapshot) bool {
	return f.available
}
func (f *fakeStrategy) Send(ctx context.Context, username, message string) messaging.Outcome {
	f.calls++
	out := f.outcome
	out.Username = username
	out.SentVia = f.channel
	out.Timestamp = time.Now()
	return out
}

// ---------------------------------------------------------------------------

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Session.PreEngage = false
	cfg.Session.DistractionChance = 0
	return cfg
}

func newTestOrchestrator(cfg *config.Config, browser *fakeBrowser, engager *fakeEngager, channels []messaging.Strategy) *Orchestrator {
	log, _ := logger.New(logger.Config{Level: "error", Format: "text"})
	if engager.counters == nil {
		engager.counters = engagement.NewCounters(30, 100)
	}
	return New(cfg, Deps{
		Human:    &fakeHuman{},
		Browser:  browser,
		Engager:  engager,
		Feed:     &fakeFeed{},
		Channels: channels,
		Library:  behavior.NewLibrary(log),
	}, log)
}

func TestCascadeFallsThroughOnFailure(t *testing.T) {
	highlight := &fakeStrategy{
		channel:   messaging.ChannelHighlight,
		available: true,
		outcome:   messaging.Outcome{Status: false, ErrorCode: messaging.ErrCodeReplyBoxNotFound, ErrorReason: "restricted"},
	}
	story := &fakeStrategy{
		channel:   messaging.ChannelStory,
		available: true,
		outcome:   messaging.Outcome{Status: true},
	}
	dm := &fakeStrategy{
		channel:   messaging.ChannelDM,
		available: true,
		outcome:   messaging.Outcome{Status: true},
	}

	o := newTestOrchestrator(testConfig(), &fakeBrowser{}, &fakeEngager{}, []messaging.Strategy{dm, story, highlight})

	snapshot := &profile.Snapshot{
		Username:         "alice",
		HasMessageButton: true,
		HasStoryRing:     true,
		HasHighlights:    true,
	}

	outcome := o.SendMessageWithNaturalBehavior(context.Background(), "alice", "hey", snapshot)

	if !outcome.Status {
		t.Fatalf("expected delivery success, got %+v", outcome)
	}
	if outcome.SentVia != messaging.ChannelStory {
		t.Errorf("sent via %s, expected Story after Highlight failure", outcome.SentVia)
	}
	if highlight.calls != 1 {
		t.Errorf("highlight attempted %d times, expected 1 (priority first)", highlight.calls)
	}
	if story.calls != 1 {
		t.Errorf("story attempted %d times, expected 1", story.calls)
	}
	if dm.calls != 0 {
		t.Errorf("dm attempted %d times, expected 0 (story succeeded)", dm.calls)
	}
}

func TestCascadeExhaustionReportsLastError(t *testing.T) {
	fail := messaging.Outcome{Status: false, ErrorCode: messaging.ErrCodeTimeout, ErrorReason: "slow"}
	highlight := &fakeStrategy{channel: messaging.ChannelHighlight, available: true, outcome: fail}
	dm := &fakeStrategy{channel: messaging.ChannelDM, available: true, outcome: messaging.Outcome{Status: false, ErrorCode: messaging.ErrCodeSendFailed, ErrorReason: "boom"}}

	o := newTestOrchestrator(testConfig(), &fakeBrowser{}, &fakeEngager{}, []messaging.Strategy{highlight, dm})

	snapshot := &profile.Snapshot{Username: "bob", HasMessageButton: true, HasHighlights: true}
	outcome := o.SendMessageWithNaturalBehavior(context.Background(), "bob", "hey", snapshot)

	if outcome.Status {
		t.Fatal("expected terminal failure after cascade exhaustion")
	}
	if outcome.ErrorCode != messaging.ErrCodeSendFailed {
		t.Errorf("error code = %s, expected the last channel's code", outcome.ErrorCode)
	}
	if highlight.calls != 1 || dm.calls != 1 {
		t.Errorf("attempt counts highlight=%d dm=%d, expected 1 each", highlight.calls, dm.calls)
	}
}

func TestPrivateProfileSkipsStrategies(t *testing.T) {
	highlight := &fakeStrategy{channel: messaging.ChannelHighlight, available: true, outcome: messaging.Outcome{Status: true}}

	browser := &fakeBrowser{snapshots: map[string]*profile.Snapshot{
		"carol": {Username: "carol", IsPrivate: true},
	}}
	o := newTestOrchestrator(testConfig(), browser, &fakeEngager{}, []messaging.Strategy{highlight})

	outcome := o.ProcessTarget(context.Background(), Target{Username: "carol", Message: "hi"})

	if outcome.Status {
		t.Fatal("expected failure for private profile")
	}
	if outcome.ErrorCode != messaging.ErrCodePrivateProfile {
		t.Errorf("error code = %s, expected PRIVATE_PROFILE", outcome.ErrorCode)
	}
	if highlight.calls != 0 {
		t.Errorf("strategy invoked %d times for a private profile", highlight.calls)
	}
	if len(o.State().Outcomes) != 1 {
		t.Errorf("outcome records = %d, expected exactly 1", len(o.State().Outcomes))
	}
}

func TestUnreachableProfileReportsNotFound(t *testing.T) {
	highlight := &fakeStrategy{channel: messaging.ChannelHighlight, available: true, outcome: messaging.Outcome{Status: true}}

	browser := &fakeBrowser{unreachable: map[string]bool{"ghost": true}}
	o := newTestOrchestrator(testConfig(), browser, &fakeEngager{}, []messaging.Strategy{highlight})

	outcome := o.ProcessTarget(context.Background(), Target{Username: "ghost", Message: "hi"})

	if outcome.Status {
		t.Fatal("expected failure for unreachable profile")
	}
	if outcome.ErrorCode != messaging.ErrCodeProfileNotFound {
		t.Errorf("error code = %s, expected PROFILE_NOT_FOUND", outcome.ErrorCode)
	}
	if highlight.calls != 0 {
		t.Errorf("strategy invoked %d times for an unreachable profile", highlight.calls)
	}
}

func TestExplicitModeRestrictsChannel(t *testing.T) {
	cfg := testConfig()
	cfg.Session.MessageMode = "dm"

	highlight := &fakeStrategy{channel: messaging.ChannelHighlight, available: true, outcome: messaging.Outcome{Status: true}}
	dm := &fakeStrategy{channel: messaging.ChannelDM, available: true, outcome: messaging.Outcome{Status: true}}

	o := newTestOrchestrator(cfg, &fakeBrowser{}, &fakeEngager{}, []messaging.Strategy{highlight, dm})

	snapshot := &profile.Snapshot{Username: "dave", HasMessageButton: true, HasHighlights: true}
	outcome := o.SendMessageWithNaturalBehavior(context.Background(), "dave", "hey", snapshot)

	if outcome.SentVia != messaging.ChannelDM {
		t.Errorf("sent via %s, expected DM in explicit dm mode", outcome.SentVia)
	}
	if highlight.calls != 0 {
		t.Error("highlight attempted despite explicit dm mode")
	}
}

func TestNoChannelAvailable(t *testing.T) {
	dm := &fakeStrategy{channel: messaging.ChannelDM, available: false}

	o := newTestOrchestrator(testConfig(), &fakeBrowser{}, &fakeEngager{}, []messaging.Strategy{dm})

	snapshot := &profile.Snapshot{Username: "erin"}
	outcome := o.SendMessageWithNaturalBehavior(context.Background(), "erin", "hey", snapshot)

	if outcome.Status {
		t.Fatal("expected failure with no channels available")
	}
	if outcome.ErrorCode != messaging.ErrCodeNoMessagingOption {
		t.Errorf("error code = %s, expected NO_MESSAGING_OPTION", outcome.ErrorCode)
	}
	if dm.calls != 0 {
		t.Error("unavailable strategy was invoked")
	}
}

func TestSimulateNaturalSessionDrainsTargets(t *testing.T) {
	highlight := &fakeStrategy{channel: messaging.ChannelHighlight, available: true, outcome: messaging.Outcome{Status: true}}

	browser := &fakeBrowser{snapshots: map[string]*profile.Snapshot{
		"alice": {Username: "alice", IsPrivate: false, HasHighlights: true, FollowerCount: 5000, PostCount: 12},
		"carol": {Username: "carol", IsPrivate: true},
	}}
	engager := &fakeEngager{stats: engagement.Stats{PostsLiked: 2, Followed: true}}

	o := newTestOrchestrator(testConfig(), browser, engager, []messaging.Strategy{highlight})
	o.minTargetTime = 0

	targets := []Target{
		{Username: "alice", Message: "hello alice"},
		{Username: "carol", Message: "hello carol"},
	}
	state := o.SimulateNaturalSession(context.Background(), targets, 150*time.Millisecond)

	if state.MessagesSent != 1 {
		t.Errorf("messages sent = %d, expected 1 (alice)", state.MessagesSent)
	}
	if state.MessagesFailed != 1 {
		t.Errorf("messages failed = %d, expected 1 (carol, private)", state.MessagesFailed)
	}
	if len(state.Outcomes) != 2 {
		t.Fatalf("outcome records = %d, expected one per target", len(state.Outcomes))
	}
	if state.Outcomes[0].Username != "alice" || !state.Outcomes[0].Status {
		t.Errorf("first outcome = %+v, expected alice success", state.Outcomes[0])
	}
	if state.Outcomes[1].ErrorCode != messaging.ErrCodePrivateProfile {
		t.Errorf("second outcome code = %s, expected PRIVATE_PROFILE", state.Outcomes[1].ErrorCode)
	}
	if state.EndedAt.IsZero() {
		t.Error("session end time not recorded")
	}
}

func TestTargetBrowseUsesSizeAdjustedPattern(t *testing.T) {
	browser := &fakeBrowser{snapshots: map[string]*profile.Snapshot{
		"bigshot": {Username: "bigshot", FollowerCount: 200000, PostCount: 40, HasHighlights: true},
	}}
	o := newTestOrchestrator(testConfig(), browser, &fakeEngager{}, nil)

	log, _ := logger.New(logger.Config{Level: "error", Format: "text"})
	base := behavior.NewLibrary(log).GetPattern(testConfig().Session.BehaviorType)

	o.InteractWithTargetUser(context.Background(), "bigshot")

	got, ok := browser.browsedWith["bigshot"]
	if !ok {
		t.Fatal("profile was never browsed")
	}
	if got.MaxPostsPerProfile != base.MaxPostsPerProfile+2 {
		t.Errorf("browse used max posts %d, expected %d for a 200k-follower account",
			got.MaxPostsPerProfile, base.MaxPostsPerProfile+2)
	}
	if got.MaxTimePerProfile <= base.MaxTimePerProfile {
		t.Errorf("browse used max time %.1f, expected more than base %.1f",
			got.MaxTimePerProfile, base.MaxTimePerProfile)
	}
	wantFollow := base.FollowProbability * 1.5
	if wantFollow > 0.95 {
		wantFollow = 0.95
	}
	if got.FollowProbability != wantFollow {
		t.Errorf("browse used follow probability %.3f, expected %.3f", got.FollowProbability, wantFollow)
	}
}

func TestWatchReelsCountsReels(t *testing.T) {
	browser := &fakeBrowser{}
	o := newTestOrchestrator(testConfig(), browser, &fakeEngager{}, nil)

	o.watchReels(context.Background())

	// fakeHuman.RandomInt returns min, so two clips are watched
	if o.State().ReelsWatched != 2 {
		t.Errorf("reels watched = %d, expected 2", o.State().ReelsWatched)
	}
	if o.State().StoriesViewed != 0 {
		t.Errorf("stories viewed = %d, expected 0 on the reels surface", o.State().StoriesViewed)
	}
}

func TestWatchReelsFallsBackToStories(t *testing.T) {
	browser := &fakeBrowser{noReels: true}
	o := newTestOrchestrator(testConfig(), browser, &fakeEngager{}, nil)

	o.watchReels(context.Background())

	if o.State().ReelsWatched != 0 {
		t.Errorf("reels watched = %d, expected 0 when the reels surface is unavailable", o.State().ReelsWatched)
	}
}

func TestSessionHonorsContextCancellation(t *testing.T) {
	o := newTestOrchestrator(testConfig(), &fakeBrowser{}, &fakeEngager{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	o.SimulateNaturalSession(ctx, nil, 10*time.Second)
	if time.Since(start) > 2*time.Second {
		t.Error("cancelled session did not stop promptly")
	}
}

func TestPostsLikedAccumulation(t *testing.T) {
	highlight := &fakeStrategy{channel: messaging.ChannelHighlight, available: true, outcome: messaging.Outcome{Status: true}}

	browser := &fakeBrowser{snapshots: map[string]*profile.Snapshot{
		"alice": {Username: "alice", HasHighlights: true, FollowerCount: 200, PostCount: 3},
	}}
	engager := &fakeEngager{stats: engagement.Stats{PostsLiked: 2}}

	o := newTestOrchestrator(testConfig(), browser, engager, []messaging.Strategy{highlight})
	// Force the probabilistic engage branch on
	o.human = &fakeHuman{perform: true}

	o.ProcessTarget(context.Background(), Target{Username: "alice", Message: "hi"})

	if o.State().PostsLiked != 2 {
		t.Errorf("posts liked = %d, expected 2 folded from engagement stats", o.State().PostsLiked)
	}
	if engager.calls != 1 {
		t.Errorf("engage calls = %d, expected 1", engager.calls)
	}
}

// Package session orchestrates one outreach session: natural browsing
// interleaved with goal-directed target interactions and message
// delivery. One orchestrator owns one automation surface for its
// lifetime; parallelism means running independent orchestrators against
// independent browser contexts, never sharing one.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
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

// Humanizer supplies randomized timing and choice primitives
type Humanizer interface {
	HumanDelay(ctx context.Context, min, max float64, dist stealth.Distribution) float64
	ShouldPerform(probability float64) bool
	RandomInt(min, max int) int
	RandomFloat(min, max float64) float64
}

// Browser performs non-goal-directed navigation
type Browser interface {
	NavigateToProfile(ctx context.Context, username string) bool
	CheckProfile(ctx context.Context, username string) *profile.Snapshot
	BrowseProfile(ctx context.Context, username string, pattern behavior.Pattern) browsing.BrowseResult
	ScrollFeed(ctx context.Context, minScrolls, maxScrolls int, readCaptions bool)
	ViewStories(ctx context.Context, maxStories int) bool
	ViewRandomPost(ctx context.Context) bool
	NavigateToExplore(ctx context.Context) bool
	NavigateToReels(ctx context.Context) bool
	NavigateToHashtag(ctx context.Context, tag string) bool
	ReturnToHomeFeed(ctx context.Context) bool
}

// Engager performs like/follow actions under daily caps
type Engager interface {
	LikePost(ctx context.Context) bool
	EngageWithUserContent(ctx context.Context, username string, likeProbability, followProbability float64, maxPostsToLike int) engagement.Stats
	Counters() *engagement.Counters
}

// FeedBrowser runs time-boxed feed loops
type FeedBrowser interface {
	BrowseHomeFeed(ctx context.Context, duration time.Duration, likeProbability, browseProfileProbability float64) feed.Stats
	ExploreDiscoverFeed(ctx context.Context, duration time.Duration, likeProbability float64) feed.Stats
	DiscoverSimilarProfiles(ctx context.Context, username string, count int) []string
}

// OutcomeRecorder persists delivery outcomes; may be nil when the caller
// does not want persistence.
type OutcomeRecorder interface {
	RecordOutcome(outcome messaging.Outcome) error
}

// Target is one outreach recipient with its resolved message text
type Target struct {
	Username string
	Message  string
}

// Deps bundles the orchestrator's collaborators
type Deps struct {
	Human    Humanizer
	Browser  Browser
	Engager  Engager
	Feed     FeedBrowser
	Channels []messaging.Strategy
	Library  *behavior.Library
	Recorder OutcomeRecorder
}

// Orchestrator runs the session state machine
type Orchestrator struct {
	config   *config.Config
	logger   *logger.Logger
	human    Humanizer
	browser  Browser
	engager  Engager
	feed     FeedBrowser
	channels []messaging.Strategy
	library  *behavior.Library
	recorder OutcomeRecorder
	pattern  behavior.Pattern
	picker   *actionPicker
	state    *State
	hashtags []string

	// minimum remaining time required to start a new target interaction
	minTargetTime time.Duration
}

// New creates a session orchestrator
func New(cfg *config.Config, deps Deps, log *logger.Logger) *Orchestrator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	pattern := deps.Library.GetPattern(cfg.Session.BehaviorType)

	return &Orchestrator{
		config:   cfg,
		logger:   log.WithModule("session"),
		human:    deps.Human,
		browser:  deps.Browser,
		engager:  deps.Engager,
		feed:     deps.Feed,
		channels: deps.Channels,
		library:  deps.Library,
		recorder: deps.Recorder,
		pattern:  pattern,
		picker:   newActionPicker(pattern.Name, rng),
		state:    newState(),
		hashtags: []string{"photography", "travel", "fitness", "food", "fashion", "art"},

		minTargetTime: time.Minute,
	}
}

// State exposes the session's accumulated stats
func (o *Orchestrator) State() *State {
	return o.state
}

// SimulateNaturalSession is the outermost loop: browse the feed once,
// then while time remains, drain the target queue one target per
// iteration (when any remain and more than a minute is left), otherwise
// perform a weighted random action. Each iteration has a small chance of
// a deliberate distraction so the pacing never looks mechanical.
func (o *Orchestrator) SimulateNaturalSession(ctx context.Context, targets []Target, duration time.Duration) *State {
	deadline := time.Now().Add(duration)
	o.logger.SessionAction("session_start", map[string]interface{}{
		"behavior": o.pattern.Name,
		"targets":  len(targets),
		"duration": duration.String(),
	})

	// Warm up like a person opening the app
	warmup := o.feedSliceDuration(deadline)
	if warmup > 0 {
		stats := o.feed.BrowseHomeFeed(ctx, warmup, o.pattern.LikeProbability, 0.1)
		o.state.FeedsBrowsed++
		o.foldFeedStats(stats)
	}

	queue := append([]Target(nil), targets...)

	for time.Now().Before(deadline) && ctx.Err() == nil {
		remaining := time.Until(deadline)

		if o.human.ShouldPerform(o.config.Session.DistractionChance) {
			o.injectDistraction(ctx)
		}

		if len(queue) > 0 && remaining > o.minTargetTime {
			target := queue[0]
			queue = queue[1:]
			o.ProcessTarget(ctx, target)
			continue
		}

		action := o.picker.Next(remaining)
		o.performAction(ctx, action, remaining)
		o.state.ActionsTaken++
	}

	o.state.EndedAt = time.Now()
	o.logger.SessionAction("session_complete", map[string]interface{}{
		"messages_sent":   o.state.MessagesSent,
		"messages_failed": o.state.MessagesFailed,
		"posts_liked":     o.state.PostsLiked,
		"duration":        o.state.Duration().String(),
		"unprocessed":     len(queue),
	})

	return o.state
}

// ProcessTarget runs the full outreach flow for one target: browse their
// profile naturally, then attempt delivery. Always yields exactly one
// recorded outcome.
func (o *Orchestrator) ProcessTarget(ctx context.Context, target Target) messaging.Outcome {
	snapshot := o.InteractWithTargetUser(ctx, target.Username)

	var outcome messaging.Outcome
	if snapshot == nil {
		outcome = messaging.Outcome{
			Username:    target.Username,
			Status:      false,
			ErrorCode:   messaging.ErrCodeProfileNotFound,
			ErrorReason: "profile unreachable",
			Timestamp:   time.Now(),
		}
	} else if snapshot.IsPrivate {
		outcome = messaging.Outcome{
			Username:    target.Username,
			Status:      false,
			ErrorCode:   messaging.ErrCodePrivateProfile,
			ErrorReason: "account is private",
			Timestamp:   time.Now(),
		}
	} else {
		outcome = o.SendMessageWithNaturalBehavior(ctx, target.Username, target.Message, snapshot)
	}

	o.state.RecordOutcome(outcome)
	if o.recorder != nil {
		if err := o.recorder.RecordOutcome(outcome); err != nil {
			o.logger.WithError(err).Warn("Failed to persist outcome")
		}
	}

	o.logger.MessageOutcome(target.Username, string(outcome.SentVia), outcome.Status, outcome.ErrorCode)
	return outcome
}

// InteractWithTargetUser checks the target's profile, derives a
// size-adjusted pattern from the follower count, and browses with that
// adjusted copy so bigger accounts get a deeper, longer look. Returns
// nil when the profile cannot be reached at all. Skips navigation when
// the page is already on the target.
func (o *Orchestrator) InteractWithTargetUser(ctx context.Context, username string) *profile.Snapshot {
	if !o.browser.NavigateToProfile(ctx, username) {
		return nil
	}

	snapshot := o.browser.CheckProfile(ctx, username)
	if snapshot == nil {
		snapshot = &profile.Snapshot{Username: username, IsPrivate: true, CheckedAt: time.Now()}
	}
	o.state.ProfilesVisited++

	if snapshot.IsPrivate {
		return snapshot
	}

	adjusted := o.library.AdjustForAccountSize(o.pattern, snapshot.FollowerCount)

	o.browser.BrowseProfile(ctx, username, adjusted)

	if snapshot.PostCount > 0 {
		o.browser.ViewRandomPost(ctx)
	}

	if o.human.ShouldPerform(adjusted.LikeProbability) {
		stats := o.engager.EngageWithUserContent(ctx, username, adjusted.LikeProbability, adjusted.FollowProbability, adjusted.MaxPostsPerProfile)
		o.state.PostsLiked += stats.PostsLiked
		if stats.Followed {
			o.state.FollowsMade++
		}
	}

	return snapshot
}

// SendMessageWithNaturalBehavior delivers the message through the first
// available channel in priority order, falling through to the next
// available channel on failure. Pre-engagement happens before any
// delivery attempt so the message is never the very first interaction.
func (o *Orchestrator) SendMessageWithNaturalBehavior(ctx context.Context, username, message string, snapshot *profile.Snapshot) messaging.Outcome {
	if snapshot.IsPrivate {
		return messaging.Outcome{
			Username:    username,
			Status:      false,
			ErrorCode:   messaging.ErrCodePrivateProfile,
			ErrorReason: "account is private",
			Timestamp:   time.Now(),
		}
	}

	if o.config.Session.PreEngage {
		stats := o.engager.EngageWithUserContent(ctx, username, o.pattern.LikeProbability, 0, o.pattern.MaxPostsPerProfile)
		o.state.PostsLiked += stats.PostsLiked
	}

	candidates := o.eligibleChannels(snapshot)
	if len(candidates) == 0 {
		return messaging.Outcome{
			Username:    username,
			Status:      false,
			ErrorCode:   messaging.ErrCodeNoMessagingOption,
			ErrorReason: "no messaging surface available",
			Timestamp:   time.Now(),
		}
	}

	var last messaging.Outcome
	for _, strategy := range candidates {
		o.human.HumanDelay(ctx, 1, 3, stealth.DistNormal)
		last = strategy.Send(ctx, username, message)
		if last.Status {
			return last
		}
		o.logger.WithFields(map[string]interface{}{
			"username": username,
			"channel":  string(strategy.Channel()),
			"code":     last.ErrorCode,
		}).Info("Channel failed, trying next")
	}

	return last
}

// eligibleChannels orders the available strategies by the configured
// channel priority. In auto mode every available channel joins the
// cascade; an explicit mode restricts it to the requested channel.
func (o *Orchestrator) eligibleChannels(snapshot *profile.Snapshot) []messaging.Strategy {
	mode := strings.ToLower(o.config.Session.MessageMode)

	byChannel := make(map[messaging.Channel]messaging.Strategy, len(o.channels))
	for _, strategy := range o.channels {
		byChannel[strategy.Channel()] = strategy
	}

	if mode != "" && mode != "auto" {
		want := messaging.Channel("")
		switch mode {
		case "dm":
			want = messaging.ChannelDM
		case "story":
			want = messaging.ChannelStory
		case "highlight":
			want = messaging.ChannelHighlight
		}
		if strategy, ok := byChannel[want]; ok && strategy.Available(snapshot) {
			return []messaging.Strategy{strategy}
		}
		return nil
	}

	ordered := make([]messaging.Strategy, 0, len(o.channels))
	for _, name := range o.config.Session.ChannelPriority {
		strategy, ok := byChannel[messaging.Channel(name)]
		if !ok {
			continue
		}
		if strategy.Available(snapshot) {
			ordered = append(ordered, strategy)
		}
	}
	return ordered
}

// BrowseHashtag scrolls a hashtag feed for roughly the given duration,
// opening ~25% of encountered posts, liking 40% of opened posts, and
// occasionally detouring to a poster's profile.
func (o *Orchestrator) BrowseHashtag(ctx context.Context, tag string, duration time.Duration) {
	if !o.browser.NavigateToHashtag(ctx, tag) {
		return
	}

	o.state.HashtagsBrowsed++

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		o.browser.ScrollFeed(ctx, 1, 2, false)

		if o.human.ShouldPerform(0.25) {
			if o.browser.ViewRandomPost(ctx) {
				o.state.PostsViewed++
				if o.human.ShouldPerform(0.4) {
					if o.engager.LikePost(ctx) {
						o.state.PostsLiked++
					}
				}
			}
		}

		if o.human.ShouldPerform(0.1) {
			o.browser.ReturnToHomeFeed(ctx)
			o.browser.NavigateToHashtag(ctx, tag)
		}

		o.human.HumanDelay(ctx, 2, 6, stealth.DistNormal)
	}

	o.logger.SessionAction("browse_hashtag", map[string]interface{}{"tag": tag})
}

// performAction dispatches one weighted action
func (o *Orchestrator) performAction(ctx context.Context, action Action, remaining time.Duration) {
	o.logger.SessionAction("action", map[string]interface{}{"kind": string(action)})

	switch action {
	case ActionBrowseFeed:
		stats := o.feed.BrowseHomeFeed(ctx, o.actionSlice(remaining), o.pattern.LikeProbability, 0.1)
		o.state.FeedsBrowsed++
		o.foldFeedStats(stats)
	case ActionExplore:
		stats := o.feed.ExploreDiscoverFeed(ctx, o.actionSlice(remaining), o.pattern.LikeProbability)
		o.foldFeedStats(stats)
	case ActionRandomProfile:
		o.visitRandomProfile(ctx)
	case ActionDiscoverSimilar:
		o.discoverAndVisit(ctx)
	case ActionCheckNotifications:
		o.checkNotifications(ctx)
	case ActionWatchReels:
		o.watchReels(ctx)
	case ActionBrowseHashtag:
		tag := o.hashtags[o.human.RandomInt(0, len(o.hashtags)-1)]
		o.BrowseHashtag(ctx, tag, o.actionSlice(remaining))
	case ActionSearchContent:
		o.browser.NavigateToExplore(ctx)
		o.browser.ScrollFeed(ctx, 2, 4, true)
	}
}

// visitRandomProfile wanders to a previously discovered or seeded profile
func (o *Orchestrator) visitRandomProfile(ctx context.Context) {
	// Without a discovery pool, wandering the explore surface stands in
	// for a random profile visit
	o.browser.NavigateToExplore(ctx)
	o.browser.ViewRandomPost(ctx)
	o.state.PostsViewed++
}

func (o *Orchestrator) discoverAndVisit(ctx context.Context) {
	if len(o.state.Outcomes) == 0 {
		o.browser.NavigateToExplore(ctx)
		o.browser.ScrollFeed(ctx, 2, 4, false)
		return
	}

	seed := o.state.Outcomes[o.human.RandomInt(0, len(o.state.Outcomes)-1)].Username
	similar := o.feed.DiscoverSimilarProfiles(ctx, seed, 2)
	for _, username := range similar {
		result := o.browser.BrowseProfile(ctx, username, o.pattern)
		if result.Browsed {
			o.state.ProfilesVisited++
		}
	}
}

func (o *Orchestrator) checkNotifications(ctx context.Context) {
	// A brief pause on the home surface reads as a notification check
	o.browser.ReturnToHomeFeed(ctx)
	o.human.HumanDelay(ctx, 3, 8, stealth.DistNormal)
}

// watchReels scrolls through a few clips on the reels surface, falling
// back to stories when reels cannot be opened.
func (o *Orchestrator) watchReels(ctx context.Context) {
	if !o.browser.NavigateToReels(ctx) {
		if o.browser.ViewStories(ctx, o.human.RandomInt(2, 5)) {
			o.state.StoriesViewed++
		}
		return
	}

	clips := o.human.RandomInt(2, 5)
	for i := 0; i < clips && ctx.Err() == nil; i++ {
		o.human.HumanDelay(ctx, 5, 20, stealth.DistNormal)
		o.browser.ScrollFeed(ctx, 1, 1, false)
		o.state.ReelsWatched++
	}
}

// injectDistraction breaks mechanical pacing with an idle pause, an
// abrupt return to the feed, or idle scrolling.
func (o *Orchestrator) injectDistraction(ctx context.Context) {
	o.state.Distractions++
	switch o.human.RandomInt(0, 2) {
	case 0:
		o.human.HumanDelay(ctx, 5, 20, stealth.DistExponential)
	case 1:
		o.browser.ReturnToHomeFeed(ctx)
	default:
		o.browser.ScrollFeed(ctx, 1, 3, false)
	}
	o.logger.SessionAction("distraction", nil)
}

// foldFeedStats merges a feed loop's stats into the session state
func (o *Orchestrator) foldFeedStats(stats feed.Stats) {
	o.state.PostsViewed += stats.PostsViewed
	o.state.PostsLiked += stats.PostsLiked
	o.state.ProfilesVisited += stats.ProfilesVisited
	if stats.Error != "" {
		o.logger.WithField("error", stats.Error).Warn("Feed loop ended with error")
	}
}

// feedSliceDuration sizes the opening feed browse
func (o *Orchestrator) feedSliceDuration(deadline time.Time) time.Duration {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0
	}
	slice := time.Duration(o.human.RandomFloat(0.05, 0.10) * float64(remaining))
	if slice > 2*time.Minute {
		slice = 2 * time.Minute
	}
	return slice
}

// actionSlice sizes one weighted action's time box
func (o *Orchestrator) actionSlice(remaining time.Duration) time.Duration {
	slice := time.Duration(o.human.RandomFloat(20, 60) * float64(time.Second))
	if slice > remaining {
		slice = remaining
	}
	return slice
}

// Summary renders a short human-readable session report
func (o *Orchestrator) Summary() string {
	s := o.state
	return fmt.Sprintf("sent=%d failed=%d liked=%d profiles=%d actions=%d duration=%s",
		s.MessagesSent, s.MessagesFailed, s.PostsLiked, s.ProfilesVisited, s.ActionsTaken, s.Duration().Round(time.Second))
}

// Package browsing performs non-goal-directed navigation: profile visits,
// feed scrolling, story watching. Everything here is best effort — a
// missing element or slow page yields false, never an abort.
package browsing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/instaflow/instagram-outreach/behavior"
	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/profile"
	"github.com/instaflow/instagram-outreach/stealth"
)

// maxProfileBrowseTime caps how long BrowseProfile dwells on one profile
// regardless of the behavior pattern's time range.
const maxProfileBrowseTime = 30 * time.Second

// BrowseResult summarizes one profile visit
type BrowseResult struct {
	Browsed    bool
	BrowseTime time.Duration
	Profile    *profile.Snapshot
}

// Controller drives human-like browsing on the automation surface
type Controller struct {
	page     *rod.Page
	config   *config.Config
	stealth  *stealth.StealthManager
	analyzer *profile.Analyzer
	logger   *logger.Logger
}

// NewController creates a browsing controller
func NewController(page *rod.Page, cfg *config.Config, sm *stealth.StealthManager, analyzer *profile.Analyzer, log *logger.Logger) *Controller {
	return &Controller{
		page:     page,
		config:   cfg,
		stealth:  sm,
		analyzer: analyzer,
		logger:   log.WithModule("browsing"),
	}
}

// NavigateToProfile goes to the target's profile page. No-ops if the page
// is already there. Navigation errors are swallowed and reported as false.
func (b *Controller) NavigateToProfile(ctx context.Context, username string) bool {
	targetURL := fmt.Sprintf("https://www.instagram.com/%s/", username)

	if info, err := b.page.Info(); err == nil {
		if normalizeURL(info.URL) == normalizeURL(targetURL) {
			return true
		}
	}

	if err := b.page.Navigate(targetURL); err != nil {
		b.logger.WithError(err).WithField("username", username).Warn("Profile navigation failed")
		return false
	}
	if err := b.page.WaitLoad(); err != nil {
		b.logger.WithError(err).Warn("Profile page load failed")
		return false
	}

	b.stealth.PageLoadDelay(ctx)
	b.logger.BrowserAction("navigate_profile", targetURL)
	return true
}

// CheckProfile probes the target's profile for capability signals
func (b *Controller) CheckProfile(ctx context.Context, username string) *profile.Snapshot {
	return b.analyzer.CheckProfile(ctx, username)
}

func normalizeURL(rawURL string) string {
	u := strings.TrimSuffix(rawURL, "/")
	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	return strings.ToLower(u)
}

// ScrollFeed performs a run of natural scroll actions. When readCaptions
// is set, each scroll has a 60% chance of an extra 2-8s reading pause.
func (b *Controller) ScrollFeed(ctx context.Context, minScrolls, maxScrolls int, readCaptions bool) {
	scrolls := b.stealth.RandomInt(minScrolls, maxScrolls)

	for i := 0; i < scrolls; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		distance, duration := b.stealth.ScrollParameters()
		if err := b.stealth.HumanScroll(b.page, "down", distance); err != nil {
			b.logger.WithError(err).Warn("Feed scroll failed")
			return
		}
		b.stealth.HumanDelay(ctx, duration, duration, stealth.DistUniform)

		if readCaptions && b.stealth.ShouldPerform(0.6) {
			b.stealth.HumanDelay(ctx, 2, 8, stealth.DistNormal)
		}
	}

	b.logger.SessionAction("scroll_feed", map[string]interface{}{"scrolls": scrolls})
}

// ViewStories opens the story ring if present and watches between 1 and
// maxStories stories, 3-8s each, with an 80% chance to advance and a 20%
// chance to bail early.
func (b *Controller) ViewStories(ctx context.Context, maxStories int) bool {
	ring, err := b.page.Timeout(3 * time.Second).Element(`header canvas`)
	if err != nil || ring == nil {
		return false
	}

	avatar, err := ring.Parent()
	if err != nil {
		return false
	}
	if err := b.stealth.ClickElement(b.page, avatar); err != nil {
		return false
	}
	b.stealth.PageLoadDelay(ctx)

	toWatch := b.stealth.RandomInt(1, maxStories)
	watched := 0
	for i := 0; i < toWatch; i++ {
		if ctx.Err() != nil {
			break
		}

		b.stealth.HumanDelay(ctx, 3, 8, stealth.DistUniform)
		watched++

		if !b.stealth.ShouldPerform(0.8) {
			break
		}
		b.page.Keyboard.Press(input.ArrowRight)
	}

	b.page.Keyboard.Press(input.Escape)
	b.stealth.ActionDelay(ctx)

	b.logger.SessionAction("view_stories", map[string]interface{}{"watched": watched})
	return watched > 0
}

// BrowseProfile visits a profile and browses it the way the behavior
// pattern prescribes: analyze, maybe watch stories, then scroll and open
// posts until a capped time budget elapses. Private profiles short-circuit
// with zero browse time.
func (b *Controller) BrowseProfile(ctx context.Context, username string, pattern behavior.Pattern) BrowseResult {
	result := BrowseResult{}

	if !b.NavigateToProfile(ctx, username) {
		result.Profile = &profile.Snapshot{Username: username, IsPrivate: true, CheckedAt: time.Now()}
		return result
	}

	result.Profile = b.analyzer.CheckProfile(ctx, username)
	result.Browsed = true

	if result.Profile.IsPrivate {
		b.logger.WithField("username", username).Info("Private profile, skipping browse")
		return result
	}

	budgetSeconds := b.stealth.RandomFloat(pattern.MinTimePerProfile, pattern.MaxTimePerProfile)
	budget := time.Duration(budgetSeconds * float64(time.Second))
	if budget > maxProfileBrowseTime {
		budget = maxProfileBrowseTime
	}

	start := time.Now()
	deadline := start.Add(budget)

	if result.Profile.HasStoryRing && b.stealth.ShouldPerform(pattern.ViewStoriesProbability) {
		b.ViewStories(ctx, 3)
	}

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			result.BrowseTime = time.Since(start)
			return result
		default:
		}

		b.ScrollProfile(ctx)
		b.stealth.HumanDelay(ctx, 1, 3, stealth.DistNormal)

		if b.stealth.ShouldPerform(pattern.OpenPostProbability) {
			b.ViewRandomPost(ctx)
		}
	}

	result.BrowseTime = time.Since(start)
	b.logger.SessionAction("browse_profile", map[string]interface{}{
		"username":    username,
		"browse_time": result.BrowseTime.Seconds(),
	})
	return result
}

// ViewRandomPost opens a random visible post, dwells on it, and closes it
func (b *Controller) ViewRandomPost(ctx context.Context) bool {
	posts, err := b.page.Timeout(3 * time.Second).Elements(`main a[href*="/p/"]`)
	if err != nil || len(posts) == 0 {
		return false
	}

	post := posts[b.stealth.RandomInt(0, len(posts)-1)]
	if err := b.stealth.ClickElement(b.page, post); err != nil {
		return false
	}
	b.stealth.PageLoadDelay(ctx)

	b.stealth.HumanDelay(ctx, 3, 10, stealth.DistNormal)

	b.page.Keyboard.Press(input.Escape)
	b.stealth.ActionDelay(ctx)
	return true
}

// ScrollProfile scrolls down the current profile page
func (b *Controller) ScrollProfile(ctx context.Context) bool {
	distance, duration := b.stealth.ScrollParameters()
	if err := b.stealth.HumanScroll(b.page, "down", distance); err != nil {
		return false
	}
	b.stealth.HumanDelay(ctx, duration, duration, stealth.DistUniform)
	return true
}

// NavigateToExplore opens the explore surface
func (b *Controller) NavigateToExplore(ctx context.Context) bool {
	if err := b.page.Navigate("https://www.instagram.com/explore/"); err != nil {
		return false
	}
	if err := b.page.WaitLoad(); err != nil {
		return false
	}
	b.stealth.PageLoadDelay(ctx)
	b.logger.BrowserAction("navigate_explore", "https://www.instagram.com/explore/")
	return true
}

// NavigateToReels opens the reels surface
func (b *Controller) NavigateToReels(ctx context.Context) bool {
	if err := b.page.Navigate("https://www.instagram.com/reels/"); err != nil {
		return false
	}
	if err := b.page.WaitLoad(); err != nil {
		return false
	}
	b.stealth.PageLoadDelay(ctx)
	b.logger.BrowserAction("navigate_reels", "https://www.instagram.com/reels/")
	return true
}

// NavigateToHashtag opens a hashtag feed
func (b *Controller) NavigateToHashtag(ctx context.Context, tag string) bool {
	url := fmt.Sprintf("https://www.instagram.com/explore/tags/%s/", strings.TrimPrefix(tag, "#"))
	if err := b.page.Navigate(url); err != nil {
		return false
	}
	if err := b.page.WaitLoad(); err != nil {
		return false
	}
	b.stealth.PageLoadDelay(ctx)
	b.logger.BrowserAction("navigate_hashtag", url)
	return true
}

// ReturnToHomeFeed navigates back to the home feed
func (b *Controller) ReturnToHomeFeed(ctx context.Context) bool {
	if err := b.page.Navigate("https://www.instagram.com/"); err != nil {
		return false
	}
	if err := b.page.WaitLoad(); err != nil {
		return false
	}
	b.stealth.PageLoadDelay(ctx)
	b.logger.BrowserAction("navigate_home", "https://www.instagram.com/")
	return true
}

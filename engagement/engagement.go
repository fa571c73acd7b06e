// Package engagement performs like/follow actions against profile and
// post pages, enforcing daily caps and verifying every action actually
// took effect before counting it.
package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/stealth"
)

// Counters tracks daily engagement totals against configured caps. It is
// owned by a single session and is not safe for concurrent use.
type Counters struct {
	followsToday int
	likesToday   int
	followLimit  int
	likeLimit    int
	lastReset    time.Time
}

// NewCounters creates counters with the given daily caps
func NewCounters(followLimit, likeLimit int) *Counters {
	return &Counters{
		followLimit: followLimit,
		likeLimit:   likeLimit,
		lastReset:   time.Now(),
	}
}

// checkReset zeroes the counters when the calendar day rolls over
func (c *Counters) checkReset() {
	now := time.Now()
	if now.YearDay() != c.lastReset.YearDay() || now.Year() != c.lastReset.Year() {
		c.followsToday = 0
		c.likesToday = 0
		c.lastReset = now
	}
}

// CanLike reports whether another like fits under the daily cap
func (c *Counters) CanLike() bool {
	c.checkReset()
	return c.likesToday < c.likeLimit
}

// CanFollow reports whether another follow fits under the daily cap
func (c *Counters) CanFollow() bool {
	c.checkReset()
	return c.followsToday < c.followLimit
}

// RecordLike counts one verified like
func (c *Counters) RecordLike() {
	c.checkReset()
	c.likesToday++
}

// RecordFollow counts one verified follow
func (c *Counters) RecordFollow() {
	c.checkReset()
	c.followsToday++
}

// LikesToday returns the current like count
func (c *Counters) LikesToday() int {
	c.checkReset()
	return c.likesToday
}

// FollowsToday returns the current follow count
func (c *Counters) FollowsToday() int {
	c.checkReset()
	return c.followsToday
}

// ResetDailyCounts zeroes both counters. Normally the day rollover does
// this automatically; an external scheduler may also force it.
func (c *Counters) ResetDailyCounts() {
	c.followsToday = 0
	c.likesToday = 0
	c.lastReset = time.Now()
}

// Stats summarizes one engage-with-content pass
type Stats struct {
	PostsLiked int
	Followed   bool
	Error      string
}

// Controller performs engagement actions on the automation surface
type Controller struct {
	page     *rod.Page
	config   *config.Config
	stealth  *stealth.StealthManager
	logger   *logger.Logger
	counters *Counters
}

// NewController creates an engagement controller
func NewController(page *rod.Page, cfg *config.Config, sm *stealth.StealthManager, counters *Counters, log *logger.Logger) *Controller {
	return &Controller{
		page:     page,
		config:   cfg,
		stealth:  sm,
		logger:   log.WithModule("engagement"),
		counters: counters,
	}
}

// Counters exposes the daily counters (for session stats reporting)
func (e *Controller) Counters() *Counters {
	return e.counters
}

// LikePost likes the currently visible post. Refuses before touching the
// page if the daily cap is reached. An already-liked post is success
// without incrementing the counter. The like only counts after the
// Unlike affordance confirms the state changed.
func (e *Controller) LikePost(ctx context.Context) bool {
	if !e.counters.CanLike() {
		e.logger.RateLimit("likes", e.counters.LikesToday(), e.config.Engagement.DailyLikeLimit)
		return false
	}

	// Already liked: the Unlike affordance is present
	if el, err := e.page.Timeout(2 * time.Second).Element(`svg[aria-label="Unlike"]`); err == nil && el != nil {
		e.logger.EngagementEvent("like_skipped_already_liked", "", true)
		return true
	}

	likeIcon, err := e.page.Timeout(4 * time.Second).Element(`section svg[aria-label="Like"]`)
	if err != nil || likeIcon == nil {
		e.logger.EngagementEvent("like", "", false)
		return false
	}

	button, err := likeIcon.Parent()
	if err != nil {
		return false
	}

	if err := e.stealth.ClickElement(e.page, button); err != nil {
		e.logger.WithError(err).Warn("Like click failed")
		return false
	}

	// Verify the like registered before counting it
	if _, err := e.page.Timeout(4 * time.Second).Element(`svg[aria-label="Unlike"]`); err != nil {
		e.logger.EngagementEvent("like_unverified", "", false)
		return false
	}

	e.counters.RecordLike()
	e.logger.EngagementEvent("like", "", true)
	e.stealth.ActionDelay(ctx)
	return true
}

// FollowUser follows the profile currently on screen, with the same
// cap/idempotence/verify contract as LikePost.
func (e *Controller) FollowUser(ctx context.Context, username string) bool {
	if !e.counters.CanFollow() {
		e.logger.RateLimit("follows", e.counters.FollowsToday(), e.config.Engagement.DailyFollowLimit)
		return false
	}

	// Already following or requested: success without incrementing
	if e.hasButton("^(Following|Requested)$", 2*time.Second) {
		e.logger.EngagementEvent("follow_skipped_already_following", username, true)
		return true
	}

	button, err := e.findButton("^(Follow|Follow Back)$", 4*time.Second)
	if err != nil {
		e.logger.EngagementEvent("follow", username, false)
		return false
	}

	if err := e.stealth.ClickElement(e.page, button); err != nil {
		e.logger.WithError(err).WithField("username", username).Warn("Follow click failed")
		return false
	}

	// Verify the state flipped before counting
	if !e.hasButton("^(Following|Requested)$", 5*time.Second) {
		e.logger.EngagementEvent("follow_unverified", username, false)
		return false
	}

	e.counters.RecordFollow()
	e.logger.EngagementEvent("follow", username, true)
	e.stealth.ActionDelay(ctx)
	return true
}

// UnfollowUser unfollows the profile currently on screen, confirming
// through the secondary dialog Instagram shows on unfollow.
func (e *Controller) UnfollowUser(ctx context.Context, username string) bool {
	button, err := e.findButton("^Following$", 4*time.Second)
	if err != nil {
		return false
	}

	if err := e.stealth.ClickElement(e.page, button); err != nil {
		return false
	}
	e.stealth.ActionDelay(ctx)

	// Confirmation control lives inside a dialog
	confirm, err := e.page.Timeout(4 * time.Second).ElementR(`div[role="dialog"] button, div[role="dialog"] div[role="button"]`, "^Unfollow$")
	if err != nil || confirm == nil {
		return false
	}
	if err := e.stealth.ClickElement(e.page, confirm); err != nil {
		return false
	}

	e.logger.EngagementEvent("unfollow", username, true)
	e.stealth.ActionDelay(ctx)
	return true
}

// EngageWithUserContent optionally follows the user, then likes a small
// randomly sampled subset of their visible posts. Failures are folded
// into the returned stats, never propagated.
func (e *Controller) EngageWithUserContent(ctx context.Context, username string, likeProbability, followProbability float64, maxPostsToLike int) Stats {
	stats := Stats{}

	if e.stealth.ShouldPerform(followProbability) {
		stats.Followed = e.FollowUser(ctx, username)
	}

	if maxPostsToLike < 1 {
		return stats
	}

	posts, err := e.page.Timeout(5 * time.Second).Elements(`main a[href*="/p/"]`)
	if err != nil || len(posts) == 0 {
		stats.Error = "no visible posts"
		return stats
	}

	count := e.stealth.EngagementCount(1, maxPostsToLike)
	if count > len(posts) {
		count = len(posts)
	}

	// Like a random subset, not the newest N in grid order
	for _, idx := range sampleIndexes(len(posts), count, e.stealth.RandomInt) {
		select {
		case <-ctx.Done():
			return stats
		default:
		}

		post := posts[idx]
		if err := e.stealth.ClickElement(e.page, post); err != nil {
			stats.Error = fmt.Sprintf("failed to open post: %v", err)
			break
		}
		e.stealth.PageLoadDelay(ctx)

		if e.stealth.ShouldPerform(likeProbability) {
			if e.LikePost(ctx) {
				stats.PostsLiked++
			}
		}

		// Dwell on the post briefly, then close the modal
		e.stealth.HumanDelay(ctx, 2, 6, stealth.DistNormal)
		e.page.Keyboard.Press(input.Escape)
		e.stealth.ActionDelay(ctx)
	}

	e.logger.SessionAction("engage_with_content", map[string]interface{}{
		"username":    username,
		"posts_liked": stats.PostsLiked,
		"followed":    stats.Followed,
	})

	return stats
}

// sampleIndexes returns count distinct indexes drawn from [0, n) by a
// Fisher-Yates shuffle using the supplied draw function.
func sampleIndexes(n, count int, draw func(min, max int) int) []int {
	if count > n {
		count = n
	}
	indexes := make([]int, n)
	for i := range indexes {
		indexes[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := draw(0, i)
		indexes[i], indexes[j] = indexes[j], indexes[i]
	}
	return indexes[:count]
}

// findButton locates a clickable control by visible text
func (e *Controller) findButton(pattern string, timeout time.Duration) (*rod.Element, error) {
	el, err := e.page.Timeout(timeout).ElementR(`button`, pattern)
	if err == nil && el != nil {
		return el, nil
	}
	return e.page.Timeout(timeout).ElementR(`div[role="button"]`, pattern)
}

func (e *Controller) hasButton(pattern string, timeout time.Duration) bool {
	el, err := e.findButton(pattern, timeout)
	return err == nil && el != nil
}

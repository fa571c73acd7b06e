// Package feed drives time-boxed browsing of the home and explore feeds.
// Loops here accumulate stats and convert any failure into a partial
// result with an error field instead of propagating it.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/engagement"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/stealth"
)

// Stats accumulates the outcome of one feed browsing loop
type Stats struct {
	PostsViewed     int
	PostsLiked      int
	ProfilesVisited int
	TimeSpent       time.Duration
	Error           string
}

// Controller browses the home and explore feeds
type Controller struct {
	page       *rod.Page
	config     *config.Config
	stealth    *stealth.StealthManager
	engagement *engagement.Controller
	logger     *logger.Logger
}

// NewController creates a feed controller
func NewController(page *rod.Page, cfg *config.Config, sm *stealth.StealthManager, eng *engagement.Controller, log *logger.Logger) *Controller {
	return &Controller{
		page:       page,
		config:     cfg,
		stealth:    sm,
		engagement: eng,
		logger:     log.WithModule("feed"),
	}
}

// BrowseHomeFeed scrolls the home feed for roughly the given duration:
// view a post, maybe like it, maybe detour to its author's profile, then
// scroll on. Returns partial stats with an error field if the surface
// misbehaves mid-loop.
func (f *Controller) BrowseHomeFeed(ctx context.Context, duration time.Duration, likeProbability, browseProfileProbability float64) Stats {
	stats := Stats{}
	start := time.Now()
	deadline := start.Add(duration)

	if err := f.page.Navigate("https://www.instagram.com/"); err != nil {
		stats.Error = fmt.Sprintf("failed to open home feed: %v", err)
		stats.TimeSpent = time.Since(start)
		return stats
	}
	f.page.WaitLoad()
	f.stealth.PageLoadDelay(ctx)

	for time.Now().Before(deadline) && ctx.Err() == nil {
		stats.PostsViewed++

		// Natural per-post viewing time
		f.stealth.HumanDelay(ctx, 3, 15, stealth.DistNormal)

		if f.stealth.ShouldPerform(likeProbability) {
			if f.engagement.LikePost(ctx) {
				stats.PostsLiked++
			}
		}

		if f.stealth.ShouldPerform(browseProfileProbability) {
			if err := f.detourToAuthor(ctx); err != nil {
				stats.Error = err.Error()
				break
			}
			stats.ProfilesVisited++
		}

		distance, scrollDur := f.stealth.ScrollParameters()
		if err := f.stealth.HumanScroll(f.page, "down", distance); err != nil {
			stats.Error = fmt.Sprintf("scroll failed: %v", err)
			break
		}
		f.stealth.HumanDelay(ctx, scrollDur, scrollDur, stealth.DistUniform)
	}

	stats.TimeSpent = time.Since(start)
	f.logger.SessionAction("browse_home_feed", map[string]interface{}{
		"posts_viewed": stats.PostsViewed,
		"posts_liked":  stats.PostsLiked,
		"time_spent":   stats.TimeSpent.Seconds(),
	})
	return stats
}

// detourToAuthor visits the current post's author profile briefly and
// returns to the feed at the remembered scroll position.
func (f *Controller) detourToAuthor(ctx context.Context) error {
	author, err := f.page.Timeout(3 * time.Second).Element(`article header a[href^="/"]`)
	if err != nil || author == nil {
		// No visible author link is not worth aborting the loop
		return nil
	}

	href, err := author.Attribute("href")
	if err != nil || href == nil {
		return nil
	}

	// Remember where we were in the feed
	scrollPos := 0.0
	if res, eerr := f.page.Eval(`() => window.scrollY`); eerr == nil {
		scrollPos = res.Value.Num()
	}

	if cerr := f.stealth.ClickElement(f.page, author); cerr != nil {
		return fmt.Errorf("author detour click failed: %w", cerr)
	}
	f.stealth.PageLoadDelay(ctx)

	// Short look around, then back to the feed
	f.stealth.HumanDelay(ctx, 3, 8, stealth.DistNormal)
	distance, _ := f.stealth.ScrollParameters()
	f.stealth.HumanScroll(f.page, "down", distance)

	if nerr := f.page.NavigateBack(); nerr != nil {
		return fmt.Errorf("failed to return to feed: %w", nerr)
	}
	f.page.WaitLoad()
	f.stealth.PageLoadDelay(ctx)

	if scrollPos > 0 {
		f.page.Eval(fmt.Sprintf(`() => window.scrollTo(0, %f)`, scrollPos))
	}
	return nil
}

// ExploreDiscoverFeed browses the explore grid for roughly the given
// duration, opening ~40% of encountered posts and occasionally (10%)
// visiting an opened post's author.
func (f *Controller) ExploreDiscoverFeed(ctx context.Context, duration time.Duration, likeProbability float64) Stats {
	stats := Stats{}
	start := time.Now()
	deadline := start.Add(duration)

	if err := f.page.Navigate("https://www.instagram.com/explore/"); err != nil {
		stats.Error = fmt.Sprintf("failed to open explore: %v", err)
		stats.TimeSpent = time.Since(start)
		return stats
	}
	f.page.WaitLoad()
	f.stealth.PageLoadDelay(ctx)

	for time.Now().Before(deadline) && ctx.Err() == nil {
		if f.stealth.ShouldPerform(0.4) {
			if err := f.openExplorePost(ctx, likeProbability, &stats); err != nil {
				stats.Error = err.Error()
				break
			}
		}

		distance, scrollDur := f.stealth.ScrollParameters()
		if err := f.stealth.HumanScroll(f.page, "down", distance); err != nil {
			stats.Error = fmt.Sprintf("scroll failed: %v", err)
			break
		}
		f.stealth.HumanDelay(ctx, scrollDur, scrollDur, stealth.DistUniform)
	}

	stats.TimeSpent = time.Since(start)
	f.logger.SessionAction("explore_feed", map[string]interface{}{
		"posts_viewed": stats.PostsViewed,
		"posts_liked":  stats.PostsLiked,
		"time_spent":   stats.TimeSpent.Seconds(),
	})
	return stats
}

func (f *Controller) openExplorePost(ctx context.Context, likeProbability float64, stats *Stats) error {
	posts, err := f.page.Timeout(3 * time.Second).Elements(`main a[href*="/p/"]`)
	if err != nil || len(posts) == 0 {
		return nil
	}

	post := posts[f.stealth.RandomInt(0, len(posts)-1)]
	if cerr := f.stealth.ClickElement(f.page, post); cerr != nil {
		return fmt.Errorf("explore post click failed: %w", cerr)
	}
	f.stealth.PageLoadDelay(ctx)
	stats.PostsViewed++

	f.stealth.HumanDelay(ctx, 3, 10, stealth.DistNormal)

	if f.stealth.ShouldPerform(likeProbability) {
		if f.engagement.LikePost(ctx) {
			stats.PostsLiked++
		}
	}

	// Occasionally wander to the author
	if f.stealth.ShouldPerform(0.1) {
		if err := f.detourToAuthor(ctx); err == nil {
			stats.ProfilesVisited++
		}
	}

	f.page.Keyboard.Press(input.Escape)
	f.stealth.ActionDelay(ctx)
	return nil
}

// DiscoverSimilarProfiles opens the target's followers list and samples
// up to count candidate handles from the first batch shown.
func (f *Controller) DiscoverSimilarProfiles(ctx context.Context, username string, count int) []string {
	url := fmt.Sprintf("https://www.instagram.com/%s/", username)
	if err := f.page.Navigate(url); err != nil {
		return nil
	}
	f.page.WaitLoad()
	f.stealth.PageLoadDelay(ctx)

	followersLink, err := f.page.Timeout(4 * time.Second).Element(`a[href*="/followers/"]`)
	if err != nil || followersLink == nil {
		return nil
	}
	if err := f.stealth.ClickElement(f.page, followersLink); err != nil {
		return nil
	}
	f.stealth.PageLoadDelay(ctx)

	links, err := f.page.Timeout(5 * time.Second).Elements(`div[role="dialog"] a[href^="/"]`)
	if err != nil {
		f.page.Keyboard.Press(input.Escape)
		return nil
	}

	seen := make(map[string]bool)
	candidates := make([]string, 0, 10)
	for _, link := range links {
		if len(candidates) >= 10 {
			break
		}
		href, herr := link.Attribute("href")
		if herr != nil || href == nil {
			continue
		}
		handle := strings.Trim(*href, "/")
		if handle == "" || strings.Contains(handle, "/") || handle == username || seen[handle] {
			continue
		}
		seen[handle] = true
		candidates = append(candidates, handle)
	}

	f.page.Keyboard.Press(input.Escape)
	f.stealth.ActionDelay(ctx)

	// Randomly sample count handles from the candidate pool
	if count < len(candidates) {
		for i := len(candidates) - 1; i > 0; i-- {
			j := f.stealth.RandomInt(0, i)
			candidates[i], candidates[j] = candidates[j], candidates[i]
		}
		candidates = candidates[:count]
	}

	f.logger.SessionAction("discover_similar", map[string]interface{}{
		"source":   username,
		"sampled":  len(candidates),
	})
	return candidates
}

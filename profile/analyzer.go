// Package profile inspects Instagram profile pages and extracts the
// capability signals the outreach flow depends on: privacy, messaging
// affordances, story ring, highlights, and audience counts.
package profile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/stealth"
)

// Snapshot captures everything the outreach flow needs to know about a
// profile at one point in time. A zero Snapshot is the conservative
// "closed" posture: private, no messaging surfaces.
type Snapshot struct {
	Username         string
	IsPrivate        bool
	HasMessageButton bool
	HasStoryRing     bool
	HasHighlights    bool
	IsVerified       bool
	FollowerCount    int
	FollowingCount   int
	PostCount        int
	CheckedAt        time.Time
}

// IsPublic reports whether the profile content is visible to the session.
func (s *Snapshot) IsPublic() bool {
	return !s.IsPrivate
}

// Reachable reports whether any messaging channel is plausibly available.
func (s *Snapshot) Reachable() bool {
	return !s.IsPrivate && (s.HasMessageButton || s.HasStoryRing || s.HasHighlights)
}

// Analyzer probes profile pages for capability signals
type Analyzer struct {
	page    *rod.Page
	config  *config.Config
	stealth *stealth.StealthManager
	logger  *logger.Logger
}

// NewAnalyzer creates a profile analyzer
func NewAnalyzer(page *rod.Page, cfg *config.Config, sm *stealth.StealthManager, log *logger.Logger) *Analyzer {
	return &Analyzer{
		page:    page,
		config:  cfg,
		stealth: sm,
		logger:  log.WithModule("profile"),
	}
}

// CheckProfile probes the target's profile page and returns a Snapshot.
// Each signal is probed independently; a failed probe leaves its field at
// the conservative default rather than failing the whole check. If the
// page cannot be reached at all, a closed snapshot is returned and the
// caller is expected to skip the target, not crash the session.
func (a *Analyzer) CheckProfile(ctx context.Context, username string) *Snapshot {
	snapshot := &Snapshot{
		Username:  username,
		IsPrivate: true,
		CheckedAt: time.Now(),
	}

	if err := a.ensureOnProfile(ctx, username); err != nil {
		a.logger.WithError(err).WithField("username", username).Warn("Profile unreachable, treating as closed")
		return snapshot
	}

	snapshot.IsPrivate = a.detectPrivate()
	snapshot.HasMessageButton = a.detectMessageButton()
	snapshot.HasStoryRing = a.detectStoryRing()
	snapshot.HasHighlights = a.detectHighlights()
	snapshot.IsVerified = a.detectVerified()
	a.extractCounts(snapshot)

	a.logger.WithFields(map[string]interface{}{
		"username":   username,
		"private":    snapshot.IsPrivate,
		"message":    snapshot.HasMessageButton,
		"story_ring": snapshot.HasStoryRing,
		"highlights": snapshot.HasHighlights,
		"followers":  snapshot.FollowerCount,
	}).Info("Profile analyzed")

	return snapshot
}

// ensureOnProfile navigates to the profile unless the page is already there
func (a *Analyzer) ensureOnProfile(ctx context.Context, username string) error {
	targetURL := fmt.Sprintf("https://www.instagram.com/%s/", username)

	info, err := a.page.Info()
	if err == nil && normalizeProfileURL(info.URL) == normalizeProfileURL(targetURL) {
		return nil
	}

	if err := a.page.Navigate(targetURL); err != nil {
		return fmt.Errorf("failed to navigate to profile: %w", err)
	}
	if err := a.page.WaitLoad(); err != nil {
		return fmt.Errorf("profile page failed to load: %w", err)
	}
	a.stealth.PageLoadDelay(ctx)

	// A profile header must be present, otherwise the handle is invalid
	// or Instagram served an error page
	if _, err := a.page.Timeout(8 * time.Second).Element("header section"); err != nil {
		return fmt.Errorf("profile header not found: %w", err)
	}
	return nil
}

func normalizeProfileURL(rawURL string) string {
	u := strings.TrimSuffix(rawURL, "/")
	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	return strings.ToLower(u)
}

// detectPrivate looks for the private-account marker
func (a *Analyzer) detectPrivate() bool {
	selectors := []string{
		`h2`,
		`span`,
	}
	for _, sel := range selectors {
		el, err := a.page.Timeout(3 * time.Second).ElementR(sel, "(?i)this account is private")
		if err == nil && el != nil {
			return true
		}
	}
	return false
}

// detectMessageButton looks for a Message affordance in the profile header
func (a *Analyzer) detectMessageButton() bool {
	selectors := []string{
		`div[role="button"]`,
		`button`,
	}
	for _, sel := range selectors {
		el, err := a.page.Timeout(3 * time.Second).ElementR(sel, "^Message$")
		if err == nil && el != nil {
			return true
		}
	}
	return false
}

// detectStoryRing checks for an active story ring around the profile avatar
func (a *Analyzer) detectStoryRing() bool {
	selectors := []string{
		`header canvas`,
		`div[role="button"] canvas`,
		`header div[role="button"] img[alt*="profile picture"]`,
	}
	for i, sel := range selectors {
		el, err := a.page.Timeout(2 * time.Second).Element(sel)
		if err != nil || el == nil {
			continue
		}
		// The bare avatar img is only a ring if wrapped in a canvas;
		// the first two selectors are authoritative
		if i < 2 {
			return true
		}
	}
	return false
}

// detectHighlights probes for story highlights using redundant strategies;
// any single hit counts. Instagram renders the highlight tray differently
// across account types and rollout buckets.
func (a *Analyzer) detectHighlights() bool {
	// Strategy 1: direct highlight links
	if el, err := a.page.Timeout(2 * time.Second).Element(`a[href*="/stories/highlights/"]`); err == nil && el != nil {
		return true
	}

	// Strategy 2: the highlight tray list under the profile header
	if els, err := a.page.Timeout(2 * time.Second).Elements(`header ~ div ul li div[role="button"] img`); err == nil && len(els) > 0 {
		return true
	}

	// Strategy 3: aria-labelled highlight buttons
	if el, err := a.page.Timeout(2 * time.Second).Element(`div[aria-label*="Highlight"]`); err == nil && el != nil {
		return true
	}

	// Strategy 4: tray list items with both an image and a title span
	if els, err := a.page.Timeout(2 * time.Second).Elements(`main ul li div[role="button"]`); err == nil {
		for _, el := range els {
			if img, ierr := el.Element("img"); ierr == nil && img != nil {
				return true
			}
		}
	}

	return false
}

// detectVerified checks for the verified badge next to the username
func (a *Analyzer) detectVerified() bool {
	el, err := a.page.Timeout(2 * time.Second).Element(`header svg[aria-label="Verified"]`)
	return err == nil && el != nil
}

// extractCounts parses post/follower/following counts from the header stats
func (a *Analyzer) extractCounts(snapshot *Snapshot) {
	items, err := a.page.Timeout(3 * time.Second).Elements(`header section ul li`)
	if err != nil || len(items) == 0 {
		return
	}

	for _, item := range items {
		text, terr := item.Text()
		if terr != nil {
			continue
		}
		lower := strings.ToLower(text)
		value := firstNumericToken(text)
		if value == "" {
			continue
		}
		count, perr := ParseAbbreviatedCount(value)
		if perr != nil {
			continue
		}
		switch {
		case strings.Contains(lower, "post"):
			snapshot.PostCount = count
		case strings.Contains(lower, "follower"):
			snapshot.FollowerCount = count
		case strings.Contains(lower, "following"):
			snapshot.FollowingCount = count
		}
	}
}

// firstNumericToken extracts the leading count token from a stats label
// like "11.1K followers"
func firstNumericToken(text string) string {
	for _, field := range strings.Fields(text) {
		if len(field) == 0 {
			continue
		}
		c := field[0]
		if c >= '0' && c <= '9' {
			return field
		}
	}
	return ""
}

// ParseAbbreviatedCount converts Instagram's abbreviated count strings to
// integers: "11.1K" -> 11100, "2M" -> 2000000, "1,234" -> 1234.
func ParseAbbreviatedCount(s string) (int, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("empty count string")
	}

	multiplier := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		multiplier = 1000
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1000000
		s = s[:len(s)-1]
	case 'B', 'b':
		multiplier = 1000000000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", s, err)
	}
	return int(value * multiplier), nil
}

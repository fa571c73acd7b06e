// Package behavior defines named browsing personas. A Pattern bundles the
// probabilities and time ranges that shape how aggressively a session
// engages with profiles and posts.
package behavior

import (
	"math"
	"math/rand"
	"time"

	"github.com/instaflow/instagram-outreach/logger"
)

// Pattern is a named bag of probabilities and ranges governing one
// session's engagement style. Values are copied on retrieval; a pattern
// is never mutated in place.
type Pattern struct {
	Name                   string
	ViewStoriesProbability float64
	OpenPostProbability    float64
	LikeProbability        float64
	FollowProbability      float64
	CommentProbability     float64
	ScrollSpeed            float64 // relative multiplier, 1.0 = normal
	MinTimePerProfile      float64 // seconds
	MaxTimePerProfile      float64 // seconds
	MaxPostsPerProfile     int
}

// DefaultPatternName is returned when an unknown pattern is requested.
const DefaultPatternName = "casual_browser"

var patterns = map[string]Pattern{
	"casual_browser": {
		Name:                   "casual_browser",
		ViewStoriesProbability: 0.4,
		OpenPostProbability:    0.3,
		LikeProbability:        0.25,
		FollowProbability:      0.05,
		CommentProbability:     0.02,
		ScrollSpeed:            1.0,
		MinTimePerProfile:      15,
		MaxTimePerProfile:      45,
		MaxPostsPerProfile:     2,
	},
	"power_user": {
		Name:                   "power_user",
		ViewStoriesProbability: 0.7,
		OpenPostProbability:    0.6,
		LikeProbability:        0.5,
		FollowProbability:      0.15,
		CommentProbability:     0.08,
		ScrollSpeed:            1.4,
		MinTimePerProfile:      25,
		MaxTimePerProfile:      70,
		MaxPostsPerProfile:     5,
	},
	"content_creator": {
		Name:                   "content_creator",
		ViewStoriesProbability: 0.8,
		OpenPostProbability:    0.5,
		LikeProbability:        0.4,
		FollowProbability:      0.1,
		CommentProbability:     0.12,
		ScrollSpeed:            1.1,
		MinTimePerProfile:      30,
		MaxTimePerProfile:      90,
		MaxPostsPerProfile:     4,
	},
	"business_account": {
		Name:                   "business_account",
		ViewStoriesProbability: 0.3,
		OpenPostProbability:    0.35,
		LikeProbability:        0.2,
		FollowProbability:      0.08,
		CommentProbability:     0.03,
		ScrollSpeed:            0.9,
		MinTimePerProfile:      20,
		MaxTimePerProfile:      50,
		MaxPostsPerProfile:     3,
	},
}

// Overrides holds optional explicit values for CustomPattern. Nil fields
// keep the base pattern's value.
type Overrides struct {
	ViewStoriesProbability *float64
	OpenPostProbability    *float64
	LikeProbability        *float64
	FollowProbability      *float64
	CommentProbability     *float64
}

// Library hands out behavior patterns and derives per-target variants.
type Library struct {
	logger *logger.Logger
	rand   *rand.Rand
}

// NewLibrary creates a pattern library
func NewLibrary(log *logger.Logger) *Library {
	return &Library{
		logger: log.WithModule("behavior"),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetPattern returns the named pattern, or the casual_browser default if
// the name is unknown. It never fails.
func (l *Library) GetPattern(name string) Pattern {
	if p, ok := patterns[name]; ok {
		return p
	}
	l.logger.WithField("pattern", name).Warn("Unknown behavior pattern, using default")
	return patterns[DefaultPatternName]
}

// PatternNames returns the available pattern names.
func (l *Library) PatternNames() []string {
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	return names
}

// AdjustForAccountSize returns a copy of p scaled for the target's
// follower count. Larger accounts get a higher follow probability and a
// deeper browse (humans linger on influential accounts); tiny accounts
// get a reduced follow probability.
func (l *Library) AdjustForAccountSize(p Pattern, followerCount int) Pattern {
	adjusted := p

	switch {
	case followerCount > 100000:
		adjusted.FollowProbability = math.Min(0.95, p.FollowProbability*1.5)
	case followerCount > 10000:
		adjusted.FollowProbability = p.FollowProbability * 1.25
	case followerCount < 1000:
		adjusted.FollowProbability = math.Max(0.01, p.FollowProbability*0.75)
	}

	if followerCount > 50000 {
		adjusted.MaxPostsPerProfile = p.MaxPostsPerProfile + 2
		adjusted.MinTimePerProfile = p.MinTimePerProfile * 1.3
		adjusted.MaxTimePerProfile = p.MaxTimePerProfile * 1.3
	}

	l.logger.WithFields(map[string]interface{}{
		"pattern":     p.Name,
		"followers":   followerCount,
		"follow_prob": adjusted.FollowProbability,
	}).Debug("Adjusted pattern for account size")

	return adjusted
}

// CustomPattern mixes a randomly chosen base pattern with explicit
// overrides, then jitters the time ranges by ±20% and the post count by
// ±30% so no two custom sessions share identical numbers.
func (l *Library) CustomPattern(overrides Overrides) Pattern {
	names := l.PatternNames()
	base := patterns[names[l.rand.Intn(len(names))]]
	custom := base
	custom.Name = "custom"

	if overrides.ViewStoriesProbability != nil {
		custom.ViewStoriesProbability = *overrides.ViewStoriesProbability
	}
	if overrides.OpenPostProbability != nil {
		custom.OpenPostProbability = *overrides.OpenPostProbability
	}
	if overrides.LikeProbability != nil {
		custom.LikeProbability = *overrides.LikeProbability
	}
	if overrides.FollowProbability != nil {
		custom.FollowProbability = *overrides.FollowProbability
	}
	if overrides.CommentProbability != nil {
		custom.CommentProbability = *overrides.CommentProbability
	}

	custom.MinTimePerProfile *= l.jitter(0.20)
	custom.MaxTimePerProfile *= l.jitter(0.20)
	if custom.MaxTimePerProfile < custom.MinTimePerProfile {
		custom.MinTimePerProfile, custom.MaxTimePerProfile = custom.MaxTimePerProfile, custom.MinTimePerProfile
	}

	posts := int(math.Round(float64(custom.MaxPostsPerProfile) * l.jitter(0.30)))
	if posts < 1 {
		posts = 1
	}
	custom.MaxPostsPerProfile = posts

	return custom
}

// jitter returns a multiplier in [1-spread, 1+spread]
func (l *Library) jitter(spread float64) float64 {
	return 1 + (l.rand.Float64()*2-1)*spread
}

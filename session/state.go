package session

import (
	"time"

	"github.com/instaflow/instagram-outreach/messaging"
)

// State is the single mutable record of one session's activity. It is
// owned exclusively by the orchestrator and never shared across sessions.
type State struct {
	StartedAt       time.Time
	EndedAt         time.Time
	FeedsBrowsed    int
	PostsViewed     int
	PostsLiked      int
	ProfilesVisited int
	StoriesViewed   int
	ReelsWatched    int
	HashtagsBrowsed int
	FollowsMade     int
	MessagesSent    int
	MessagesFailed  int
	Distractions    int
	ActionsTaken    int
	Outcomes        []messaging.Outcome
}

func newState() *State {
	return &State{StartedAt: time.Now()}
}

// RecordOutcome appends one delivery outcome and updates the counters
func (s *State) RecordOutcome(o messaging.Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	if o.Status {
		s.MessagesSent++
	} else {
		s.MessagesFailed++
	}
}

// Duration reports how long the session has run (or ran, once ended)
func (s *State) Duration() time.Duration {
	if !s.EndedAt.IsZero() {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

package session

import (
	"math/rand"
	"time"
)

// Action is one kind of non-goal-directed activity the orchestrator can
// perform between outreach targets.
type Action string

const (
	ActionBrowseFeed         Action = "browse_feed"
	ActionExplore            Action = "explore"
	ActionRandomProfile      Action = "random_profile"
	ActionDiscoverSimilar    Action = "discover_similar"
	ActionCheckNotifications Action = "check_notifications"
	ActionWatchReels         Action = "watch_reels"
	ActionBrowseHashtag      Action = "browse_hashtag"
	ActionSearchContent      Action = "search_content"
)

// historySize bounds the action history used for anti-repetition damping
const historySize = 3

// baseWeights maps each behavior type to its action distribution. Each
// table sums to 1.0 before adjustment.
var baseWeights = map[string]map[Action]float64{
	"casual_browser": {
		ActionBrowseFeed:         0.35,
		ActionExplore:            0.15,
		ActionRandomProfile:      0.10,
		ActionDiscoverSimilar:    0.05,
		ActionCheckNotifications: 0.10,
		ActionWatchReels:         0.15,
		ActionBrowseHashtag:      0.05,
		ActionSearchContent:      0.05,
	},
	"power_user": {
		ActionBrowseFeed:         0.20,
		ActionExplore:            0.20,
		ActionRandomProfile:      0.15,
		ActionDiscoverSimilar:    0.10,
		ActionCheckNotifications: 0.10,
		ActionWatchReels:         0.10,
		ActionBrowseHashtag:      0.10,
		ActionSearchContent:      0.05,
	},
	"content_creator": {
		ActionBrowseFeed:         0.15,
		ActionExplore:            0.20,
		ActionRandomProfile:      0.15,
		ActionDiscoverSimilar:    0.10,
		ActionCheckNotifications: 0.15,
		ActionWatchReels:         0.10,
		ActionBrowseHashtag:      0.10,
		ActionSearchContent:      0.05,
	},
	"business_account": {
		ActionBrowseFeed:         0.25,
		ActionExplore:            0.10,
		ActionRandomProfile:      0.15,
		ActionDiscoverSimilar:    0.15,
		ActionCheckNotifications: 0.15,
		ActionWatchReels:         0.05,
		ActionBrowseHashtag:      0.05,
		ActionSearchContent:      0.10,
	},
}

// actionPicker implements the weighted next-action pipeline: base table,
// time-pressure adjustment, anti-repetition damping, renormalize, sample.
type actionPicker struct {
	behaviorType string
	history      []Action
	rand         *rand.Rand
}

func newActionPicker(behaviorType string, rng *rand.Rand) *actionPicker {
	if _, ok := baseWeights[behaviorType]; !ok {
		behaviorType = "casual_browser"
	}
	return &actionPicker{
		behaviorType: behaviorType,
		history:      make([]Action, 0, historySize),
		rand:         rng,
	}
}

// Next runs the full pipeline and records the chosen action in the
// bounded history.
func (p *actionPicker) Next(remaining time.Duration) Action {
	weights := p.baseTable()
	applyTimePressure(weights, remaining)
	applyAntiRepetition(weights, p.history)
	normalize(weights)

	action := p.sample(weights)
	p.record(action)
	return action
}

// baseTable returns a mutable copy of the behavior type's weight table
func (p *actionPicker) baseTable() map[Action]float64 {
	src := baseWeights[p.behaviorType]
	weights := make(map[Action]float64, len(src))
	for action, w := range src {
		weights[action] = w
	}
	return weights
}

// applyTimePressure biases short-remaining sessions toward feed surfing
// and away from deep dives, so a session winds down the way a person
// does rather than starting a profile crawl with a minute left.
func applyTimePressure(weights map[Action]float64, remaining time.Duration) {
	switch {
	case remaining < 2*time.Minute:
		weights[ActionBrowseFeed] *= 1.5
		weights[ActionExplore] *= 1.5
		weights[ActionRandomProfile] *= 0.3
		weights[ActionDiscoverSimilar] *= 0.3
		weights[ActionBrowseHashtag] *= 0.5
		weights[ActionSearchContent] *= 0.5
	case remaining < 5*time.Minute:
		weights[ActionBrowseFeed] *= 1.2
		weights[ActionExplore] *= 1.2
		weights[ActionRandomProfile] *= 0.6
		weights[ActionDiscoverSimilar] *= 0.6
		weights[ActionBrowseHashtag] *= 0.8
		weights[ActionSearchContent] *= 0.8
	}
}

// applyAntiRepetition halves an action's weight when it was chosen on
// both of the previous two draws.
func applyAntiRepetition(weights map[Action]float64, history []Action) {
	if len(history) < 2 {
		return
	}
	last := history[len(history)-1]
	prev := history[len(history)-2]
	if last == prev {
		weights[last] *= 0.5
	}
}

// normalize rescales the weights to sum to 1
func normalize(weights map[Action]float64) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return
	}
	for action := range weights {
		weights[action] /= total
	}
}

// sample draws one action by weighted random choice. Iteration order over
// a map is random, so draws use a fixed action order for stability.
func (p *actionPicker) sample(weights map[Action]float64) Action {
	order := []Action{
		ActionBrowseFeed, ActionExplore, ActionRandomProfile,
		ActionDiscoverSimilar, ActionCheckNotifications, ActionWatchReels,
		ActionBrowseHashtag, ActionSearchContent,
	}

	r := p.rand.Float64()
	acc := 0.0
	for _, action := range order {
		acc += weights[action]
		if r < acc {
			return action
		}
	}
	return ActionBrowseFeed
}

// record appends to the bounded history
func (p *actionPicker) record(action Action) {
	p.history = append(p.history, action)
	if len(p.history) > historySize {
		p.history = p.history[len(p.history)-historySize:]
	}
}

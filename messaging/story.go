package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/profile"
	"github.com/instaflow/instagram-outreach/stealth"
)

// StoryReplyStrategy delivers the message as a reply to the target's
// active story.
type StoryReplyStrategy struct {
	base
}

// NewStoryReplyStrategy creates the story reply strategy
func NewStoryReplyStrategy(page *rod.Page, cfg *config.Config, sm *stealth.StealthManager, log *logger.Logger) *StoryReplyStrategy {
	return &StoryReplyStrategy{base{
		page:    page,
		config:  cfg,
		stealth: sm,
		logger:  log.WithModule("messaging.story"),
	}}
}

func (s *StoryReplyStrategy) Channel() Channel {
	return ChannelStory
}

func (s *StoryReplyStrategy) Available(snapshot *profile.Snapshot) bool {
	return snapshot.HasStoryRing
}

// Send opens the story viewer from the profile avatar ring, types into
// the reply box, and submits.
func (s *StoryReplyStrategy) Send(ctx context.Context, username, message string) Outcome {
	defer s.closeOverlay()

	ring, err := s.page.Timeout(s.uiTimeout()).Element(`header canvas`)
	if err != nil || ring == nil {
		return failureOutcome(username, ChannelStory, ErrCodeNoMessagingOption, "no active story ring")
	}

	avatar, err := ring.Parent()
	if err != nil {
		return failureOutcome(username, ChannelStory, ErrCodeSendFailed, fmt.Sprintf("story ring not clickable: %v", err))
	}
	if err := s.stealth.ClickElement(s.page, avatar); err != nil {
		return failureOutcome(username, ChannelStory, ErrCodeSendFailed, fmt.Sprintf("failed to open story: %v", err))
	}
	s.stealth.PageLoadDelay(ctx)

	// Watch for a moment before replying, like a human would
	s.stealth.HumanDelay(ctx, 2, 5, stealth.DistNormal)

	box, err := s.findReplyBox(s.uiTimeout())
	if err != nil {
		return failureOutcome(username, ChannelStory, ErrCodeReplyBoxNotFound, "story reply box not found")
	}

	// Clicking the reply box pauses the story
	if cerr := box.Click(protoLeftClick, 1); cerr == nil {
		s.stealth.ActionDelay(ctx)
	}

	if err := s.stealth.HumanType(ctx, s.page, box, message); err != nil {
		return failureOutcome(username, ChannelStory, ErrCodeSendFailed, fmt.Sprintf("typing failed: %v", err))
	}

	if err := s.page.Keyboard.Press(input.Enter); err != nil {
		return failureOutcome(username, ChannelStory, ErrCodeSendFailed, fmt.Sprintf("send failed: %v", err))
	}

	// Wait for the send confirmation toast; treat its absence as a soft
	// signal only, the submit itself did not fail
	s.awaitSendConfirmation()

	s.logger.MessageOutcome(username, string(ChannelStory), true, "")
	return successOutcome(username, ChannelStory)
}

func (s *StoryReplyStrategy) awaitSendConfirmation() {
	if el, err := s.page.Timeout(5 * time.Second).ElementR(`div`, "^Sent$"); err == nil && el != nil {
		return
	}
	time.Sleep(1 * time.Second)
}

var _ Strategy = (*StoryReplyStrategy)(nil)
var _ Strategy = (*DirectMessageStrategy)(nil)

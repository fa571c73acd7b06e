package messaging

import (
	"testing"

	"github.com/instaflow/instagram-outreach/profile"
)

func TestOutcomeShapes(t *testing.T) {
	ok := successOutcome("alice", ChannelHighlight)
	if !ok.Status || ok.SentVia != ChannelHighlight || ok.ErrorCode != "" {
		t.Errorf("unexpected success outcome: %+v", ok)
	}
	if ok.Timestamp.IsZero() {
		t.Error("success outcome missing timestamp")
	}

	bad := failureOutcome("bob", ChannelStory, ErrCodeReplyBoxNotFound, "story reply box not found")
	if bad.Status || bad.ErrorCode != ErrCodeReplyBoxNotFound || bad.ErrorReason == "" {
		t.Errorf("unexpected failure outcome: %+v", bad)
	}
}

func TestStrategyAvailability(t *testing.T) {
	dm := &DirectMessageStrategy{}
	story := &StoryReplyStrategy{}
	highlight := &HighlightReplyStrategy{}

	snapshot := &profile.Snapshot{
		HasMessageButton: true,
		HasStoryRing:     false,
		HasHighlights:    true,
	}

	if !dm.Available(snapshot) {
		t.Error("DM should be available when the Message button is present")
	}
	if story.Available(snapshot) {
		t.Error("story reply should be unavailable without a story ring")
	}
	if !highlight.Available(snapshot) {
		t.Error("highlight reply should be available when highlights exist")
	}
}

func TestChannelNames(t *testing.T) {
	if ChannelDM != "DM" || ChannelStory != "Story" || ChannelHighlight != "Highlight" {
		t.Errorf("channel names changed: %q %q %q", ChannelDM, ChannelStory, ChannelHighlight)
	}
}

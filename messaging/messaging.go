// Package messaging implements the outreach delivery strategies. Each
// strategy attempts one channel (direct message, story reply, highlight
// reply) and reports a coded outcome; channel selection and fallback
// ordering live in the session orchestrator.
package messaging

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/profile"
	"github.com/instaflow/instagram-outreach/stealth"
)

// Channel identifies a delivery surface
type Channel string

const (
	ChannelDM        Channel = "DM"
	ChannelStory     Channel = "Story"
	ChannelHighlight Channel = "Highlight"
)

// Error codes reported in Outcome.ErrorCode. HighlightReply additionally
// reports raw HTTP status codes when the broadcast endpoint rejects the
// reply.
const (
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	ErrCodePrivateProfile      = "PRIVATE_PROFILE"
	ErrCodeNoMessagingOption   = "NO_MESSAGING_OPTION"
	ErrCodeHighlightsNotFound  = "HIGHLIGHTS_NOT_FOUND"
	ErrCodeHighlightLoadFailed = "HIGHLIGHT_LOAD_FAILED"
	ErrCodeReplyBoxNotFound    = "REPLY_BOX_NOT_FOUND"
	ErrCodeTimeout             = "TIMEOUT_ERROR"
	ErrCodeSendFailed          = "SEND_FAILED"
	ErrCodeUnknown             = "UNKNOWN_ERROR"
)

// Outcome is the result of one delivery attempt. Every attempt yields
// exactly one Outcome; there is no silent failure.
type Outcome struct {
	Username    string
	Status      bool
	SentVia     Channel
	ErrorCode   string
	ErrorReason string
	Timestamp   time.Time
}

func successOutcome(username string, via Channel) Outcome {
	return Outcome{
		Username:  username,
		Status:    true,
		SentVia:   via,
		Timestamp: time.Now(),
	}
}

func failureOutcome(username string, via Channel, code, reason string) Outcome {
	return Outcome{
		Username:    username,
		Status:      false,
		SentVia:     via,
		ErrorCode:   code,
		ErrorReason: reason,
		Timestamp:   time.Now(),
	}
}

// Strategy is one delivery channel implementation
type Strategy interface {
	// Channel names the delivery surface this strategy uses
	Channel() Channel
	// Available reports whether the snapshot shows this channel's
	// affordance on the target profile
	Available(snapshot *profile.Snapshot) bool
	// Send attempts delivery. The page must already be on the target's
	// profile. Implementations close any overlay they opened on every
	// exit path.
	Send(ctx context.Context, username, message string) Outcome
}

// protoLeftClick is the click button used by all strategies
var protoLeftClick = proto.InputMouseButtonLeft

// base carries the collaborators every strategy needs
type base struct {
	page    *rod.Page
	config  *config.Config
	stealth *stealth.StealthManager
	logger  *logger.Logger
}

// closeOverlay dismisses whatever modal or viewer is open. Called on
// every strategy exit path so a failed attempt never leaves the page
// stuck inside a dialog.
func (b *base) closeOverlay() {
	b.page.Keyboard.Press(input.Escape)
	time.Sleep(300 * time.Millisecond)
}

// uiTimeout is the wait budget for UI elements to appear
func (b *base) uiTimeout() time.Duration {
	secs := b.config.Messaging.UIWaitSeconds
	if secs <= 0 {
		secs = 8
	}
	return time.Duration(secs) * time.Second
}

// networkTimeout is the wait budget for network confirmations
func (b *base) networkTimeout() time.Duration {
	secs := b.config.Messaging.NetworkWaitSeconds
	if secs <= 0 {
		secs = 15
	}
	return time.Duration(secs) * time.Second
}

// findReplyBox locates a message input across the layouts Instagram uses
func (b *base) findReplyBox(timeout time.Duration) (*rod.Element, error) {
	selectors := []string{
		`textarea[placeholder*="Message"]`,
		`textarea[placeholder*="Reply"]`,
		`div[contenteditable="true"][aria-label*="Message"]`,
		`div[contenteditable="true"][role="textbox"]`,
	}

	perSelector := timeout / time.Duration(len(selectors))
	if perSelector < time.Second {
		perSelector = time.Second
	}

	var lastErr error
	for _, sel := range selectors {
		el, err := b.page.Timeout(perSelector).Element(sel)
		if err == nil && el != nil {
			return el, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

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

// DirectMessageStrategy sends through the message composer opened from
// the profile's Message button.
type DirectMessageStrategy struct {
	base
}

// NewDirectMessageStrategy creates the DM strategy
func NewDirectMessageStrategy(page *rod.Page, cfg *config.Config, sm *stealth.StealthManager, log *logger.Logger) *DirectMessageStrategy {
	return &DirectMessageStrategy{base{
		page:    page,
		config:  cfg,
		stealth: sm,
		logger:  log.WithModule("messaging.dm"),
	}}
}

func (d *DirectMessageStrategy) Channel() Channel {
	return ChannelDM
}

func (d *DirectMessageStrategy) Available(snapshot *profile.Snapshot) bool {
	return snapshot.HasMessageButton
}

// Send opens the composer, types the message with human cadence, and
// submits. Absence of a failure during submit is treated as success.
func (d *DirectMessageStrategy) Send(ctx context.Context, username, message string) Outcome {
	defer d.closeOverlay()

	button, err := d.findMessageButton()
	if err != nil {
		return failureOutcome(username, ChannelDM, ErrCodeNoMessagingOption, "no Message button on profile")
	}

	if err := d.stealth.ClickElement(d.page, button); err != nil {
		return failureOutcome(username, ChannelDM, ErrCodeSendFailed, fmt.Sprintf("failed to open composer: %v", err))
	}
	d.stealth.PageLoadDelay(ctx)

	d.dismissInterstitial()

	box, err := d.findReplyBox(d.uiTimeout())
	if err != nil {
		return failureOutcome(username, ChannelDM, ErrCodeTimeout, "message input did not appear")
	}

	if err := box.Click(protoLeftClick, 1); err == nil {
		d.stealth.ActionDelay(ctx)
	}

	if err := d.stealth.HumanType(ctx, d.page, box, message); err != nil {
		return failureOutcome(username, ChannelDM, ErrCodeSendFailed, fmt.Sprintf("typing failed: %v", err))
	}

	d.stealth.ThinkingDelay(ctx)

	if err := d.submit(); err != nil {
		return failureOutcome(username, ChannelDM, ErrCodeSendFailed, fmt.Sprintf("send failed: %v", err))
	}

	d.stealth.HumanDelay(ctx, 1, 3, stealth.DistNormal)
	d.logger.MessageOutcome(username, string(ChannelDM), true, "")
	return successOutcome(username, ChannelDM)
}

func (d *DirectMessageStrategy) findMessageButton() (*rod.Element, error) {
	el, err := d.page.Timeout(d.uiTimeout()).ElementR(`div[role="button"]`, "^Message$")
	if err == nil && el != nil {
		return el, nil
	}
	return d.page.Timeout(3 * time.Second).ElementR(`button`, "^Message$")
}

// dismissInterstitial clears the optional "save login info" /
// notification prompts Instagram sometimes interposes
func (d *DirectMessageStrategy) dismissInterstitial() {
	if el, err := d.page.Timeout(3 * time.Second).ElementR(`button`, "^Not Now$"); err == nil && el != nil {
		el.Click(protoLeftClick, 1)
		time.Sleep(500 * time.Millisecond)
	}
}

// submit sends the typed message via the Send control, falling back to
// the Enter key
func (d *DirectMessageStrategy) submit() error {
	if sendBtn, err := d.page.Timeout(3 * time.Second).ElementR(`div[role="button"]`, "^Send$"); err == nil && sendBtn != nil {
		return sendBtn.Click(protoLeftClick, 1)
	}
	return d.page.Keyboard.Press(input.Enter)
}

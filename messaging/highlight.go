package messaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/profile"
	"github.com/instaflow/instagram-outreach/stealth"
)

// replyBroadcastPath identifies the reel-share broadcast endpoint that
// carries story and highlight replies.
const replyBroadcastPath = "/api/v1/direct_v2/threads/broadcast/reel_share/"

// HighlightReplyStrategy delivers the message as a reply to one of the
// target's story highlights. Unlike the other strategies, success is
// confirmed by the network response from the broadcast endpoint rather
// than by DOM state — the viewer UI looks identical whether or not the
// recipient restricts highlight replies.
type HighlightReplyStrategy struct {
	base
}

// NewHighlightReplyStrategy creates the highlight reply strategy
func NewHighlightReplyStrategy(page *rod.Page, cfg *config.Config, sm *stealth.StealthManager, log *logger.Logger) *HighlightReplyStrategy {
	return &HighlightReplyStrategy{base{
		page:    page,
		config:  cfg,
		stealth: sm,
		logger:  log.WithModule("messaging.highlight"),
	}}
}

func (h *HighlightReplyStrategy) Channel() Channel {
	return ChannelHighlight
}

func (h *HighlightReplyStrategy) Available(snapshot *profile.Snapshot) bool {
	return snapshot.HasHighlights
}

// Send opens a highlight, types into the reply box, submits, and waits
// for the broadcast endpoint's response. HTTP 200 is the authoritative
// success signal; any other status is returned as the error code with a
// "Highlight Restriction" reason.
func (h *HighlightReplyStrategy) Send(ctx context.Context, username, message string) Outcome {
	defer h.closeOverlay()

	highlight, err := h.findHighlight()
	if err != nil {
		return failureOutcome(username, ChannelHighlight, ErrCodeHighlightsNotFound, "no highlights on profile")
	}

	if err := h.stealth.ClickElement(h.page, highlight); err != nil {
		return failureOutcome(username, ChannelHighlight, ErrCodeSendFailed, fmt.Sprintf("failed to open highlight: %v", err))
	}

	if !h.waitViewerLoaded() {
		return failureOutcome(username, ChannelHighlight, ErrCodeHighlightLoadFailed, "highlight viewer did not load")
	}

	box, err := h.findReplyBox(h.uiTimeout())
	if err != nil {
		// Missing reply box means the viewer restricts replies
		return failureOutcome(username, ChannelHighlight, ErrCodeReplyBoxNotFound, "highlight viewer does not offer a reply box")
	}

	if cerr := box.Click(protoLeftClick, 1); cerr == nil {
		h.stealth.ActionDelay(ctx)
	}

	if err := h.stealth.HumanType(ctx, h.page, box, message); err != nil {
		return failureOutcome(username, ChannelHighlight, ErrCodeSendFailed, fmt.Sprintf("typing failed: %v", err))
	}

	status, received := h.submitAndAwaitBroadcast()
	if !received {
		return failureOutcome(username, ChannelHighlight, ErrCodeTimeout, "no response from reply endpoint")
	}
	if status != 200 {
		return failureOutcome(username, ChannelHighlight, strconv.Itoa(status), "Highlight Restriction")
	}

	h.logger.MessageOutcome(username, string(ChannelHighlight), true, "")
	return successOutcome(username, ChannelHighlight)
}

// findHighlight probes redundant selectors for a highlight affordance
func (h *HighlightReplyStrategy) findHighlight() (*rod.Element, error) {
	if el, err := h.page.Timeout(3 * time.Second).Element(`a[href*="/stories/highlights/"]`); err == nil && el != nil {
		return el, nil
	}
	if el, err := h.page.Timeout(2 * time.Second).Element(`div[aria-label*="Highlight"]`); err == nil && el != nil {
		return el, nil
	}
	if els, err := h.page.Timeout(2 * time.Second).Elements(`main ul li div[role="button"]`); err == nil {
		for _, el := range els {
			if img, ierr := el.Element("img"); ierr == nil && img != nil {
				return el, nil
			}
		}
	}
	return nil, fmt.Errorf("no highlight affordance found")
}

// waitViewerLoaded waits for either a reply surface or a send control to
// confirm the highlight viewer is up
func (h *HighlightReplyStrategy) waitViewerLoaded() bool {
	deadline := time.Now().Add(h.uiTimeout())
	for time.Now().Before(deadline) {
		if el, err := h.page.Timeout(2 * time.Second).Element(`textarea[placeholder*="Reply"], div[contenteditable="true"][role="textbox"]`); err == nil && el != nil {
			return true
		}
		if el, err := h.page.Timeout(1 * time.Second).ElementR(`div[role="button"]`, "^Send$"); err == nil && el != nil {
			return true
		}
	}
	return false
}

// submitAndAwaitBroadcast presses Enter and waits for the reel-share
// broadcast response. Returns the HTTP status and whether a matching
// response arrived before the network timeout.
func (h *HighlightReplyStrategy) submitAndAwaitBroadcast() (int, bool) {
	listener := h.page.Timeout(h.networkTimeout())

	statusCh := make(chan int, 1)
	wait := listener.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if strings.Contains(e.Response.URL, replyBroadcastPath) {
			select {
			case statusCh <- e.Response.Status:
			default:
			}
			return true
		}
		return false
	})

	if err := h.page.Keyboard.Press(input.Enter); err != nil {
		return 0, false
	}

	wait()

	select {
	case status := <-statusCh:
		return status, true
	default:
		return 0, false
	}
}

var _ Strategy = (*HighlightReplyStrategy)(nil)

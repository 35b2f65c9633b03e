package feedview

import (
	"time"

	"github.com/davecarlow/vertigo/internal/feed"
)

// PageLoadedMsg carries a completed page fetch back into the event loop.
type PageLoadedMsg struct {
	Req  feed.Request
	Page feed.Page
	Err  error
}

// PlaybackTickMsg advances the playback clock.
type PlaybackTickMsg struct {
	At time.Time
}

// ControlsTimeoutMsg is the single-shot auto-hide timer for one reveal of
// the control overlay. Gen pins it to the reveal that scheduled it.
type ControlsTimeoutMsg struct {
	ItemID string
	Gen    int
}

// MutationDoneMsg reports a fire-and-forget engagement mutation. The UI
// never rolls back on Err; it is logged and dropped.
type MutationDoneMsg struct {
	Op     string
	ItemID string
	Err    error
}

// ImpressionSentMsg reports a delivered (or queued) watch impression.
type ImpressionSentMsg struct {
	ItemID string
}

package player

import (
	"time"

	"github.com/davecarlow/vertigo/internal/feed"
	"github.com/davecarlow/vertigo/internal/logging"
)

// State is the playback state of one feed item.
type State int

const (
	StateInactive State = iota
	StateSensitiveGated
	StatePlaying
	StatePausedManual
	StatePausedAuto
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateSensitiveGated:
		return "sensitive-gated"
	case StatePlaying:
		return "playing"
	case StatePausedManual:
		return "paused-manual"
	case StatePausedAuto:
		return "paused-auto"
	}
	return "unknown"
}

// ControlsDwell is how long tap-revealed controls stay on screen.
const ControlsDwell = 3 * time.Second

// Session is the playback state machine for one mounted feed item. It is
// driven entirely from the UI event loop: activation/deactivation from the
// viewability callback, taps and scrub gestures from input, Tick from the
// playback clock. Engine failures never leave it between states: the call
// is logged and the previous flags stand.
type Session struct {
	item   feed.Item
	engine Engine

	state  State
	manual bool // user took over play/pause; auto control suspended
	acked  bool // sensitive gate acknowledged for this activation

	position float64 // seconds into the media
	watched  float64 // wall-clock seconds watched this activation
	rate     float64
	muted    bool

	liked      bool
	bookmarked bool

	controlsVisible bool
	controlsGen     int

	scrubbing bool
}

// NewSession mounts a session for item. rate and muted seed the engine from
// the screen-level overrides. The optimistic like/bookmark flags start from
// the item's viewer-relative flags.
func NewSession(item feed.Item, eng Engine, rate float64, muted bool) *Session {
	if rate <= 0 {
		rate = 1.0
	}
	s := &Session{
		item:       item,
		engine:     eng,
		rate:       rate,
		muted:      muted,
		liked:      item.Liked,
		bookmarked: item.Bookmarked,
	}
	if err := eng.Load(item.Media.URL, float64(item.Media.DurationSeconds)); err != nil {
		logging.Warn("engine load failed", "item", item.ID, "error", err)
	}
	if err := eng.SetRate(rate); err != nil {
		logging.Warn("engine rate rejected", "item", item.ID, "rate", rate, "error", err)
		s.rate = 1.0
	}
	if err := eng.SetMuted(muted); err != nil {
		logging.Warn("engine mute rejected", "item", item.ID, "error", err)
	}
	return s
}

// Item returns the feed item this session plays.
func (s *Session) Item() feed.Item { return s.item }

// State returns the current playback state.
func (s *Session) State() State { return s.state }

// Playing reports whether the media is advancing.
func (s *Session) Playing() bool { return s.state == StatePlaying }

// Position returns elapsed seconds into the media.
func (s *Session) Position() float64 { return s.position }

// Watched returns wall-clock seconds watched since the last activation.
func (s *Session) Watched() float64 { return s.watched }

// ResetWatched clears the accumulated watch clock. Callers that record an
// impression while the session stays active (screen blur) use this so a
// later flush does not report the same interval twice.
func (s *Session) ResetWatched() { s.watched = 0 }

// Completed reports whether this activation watched at least 90% of the
// media duration.
func (s *Session) Completed() bool {
	d := float64(s.item.Media.DurationSeconds)
	return d > 0 && s.watched >= 0.9*d
}

// Progress returns position as a fraction of duration in [0, 1].
func (s *Session) Progress() float64 {
	d := float64(s.item.Media.DurationSeconds)
	if d <= 0 {
		return 0
	}
	p := s.position / d
	if p > 1 {
		p = 1
	}
	return p
}

// Rate returns the active playback rate.
func (s *Session) Rate() float64 { return s.rate }

// Muted reports the mute flag.
func (s *Session) Muted() bool { return s.muted }

// Scrubbing reports whether a scrub gesture is in progress; while true the
// parent list must not scroll.
func (s *Session) Scrubbing() bool { return s.scrubbing }

// ManualControl reports whether the user has taken over play/pause.
func (s *Session) ManualControl() bool { return s.manual }

// Activate makes this session the active item. A sensitive item that has
// not been acknowledged this activation gates instead of playing. Playback
// restarts from the beginning on every activation.
func (s *Session) Activate(focused, modalOpen bool) {
	if s.state != StateInactive {
		return
	}
	s.position = 0
	s.watched = 0
	if err := s.engine.Seek(0); err != nil {
		logging.Warn("engine seek failed", "item", s.item.ID, "error", err)
	}

	if s.item.Media.Sensitive && !s.acked {
		s.state = StateSensitiveGated
		return
	}
	if !focused || modalOpen {
		s.state = StatePausedAuto
		return
	}
	s.play()
}

// Acknowledge clears the sensitive gate for this activation and starts
// playback. The acknowledgement does not survive deactivation.
func (s *Session) Acknowledge() {
	if s.state != StateSensitiveGated {
		return
	}
	s.acked = true
	s.play()
}

// Deactivate returns the session to inactive, resetting the manual-control
// and sensitivity-acknowledged flags.
func (s *Session) Deactivate() {
	if s.state == StateInactive {
		return
	}
	if err := s.engine.Pause(); err != nil {
		logging.Warn("engine pause failed", "item", s.item.ID, "error", err)
	}
	s.state = StateInactive
	s.manual = false
	s.acked = false
	s.scrubbing = false
}

// TogglePlayPause is the user's explicit play/pause tap. It asserts manual
// control, which suppresses automatic pause/resume until deactivation.
func (s *Session) TogglePlayPause() {
	switch s.state {
	case StatePlaying:
		if err := s.engine.Pause(); err != nil {
			logging.Warn("engine pause failed", "item", s.item.ID, "error", err)
			return
		}
		s.manual = true
		s.state = StatePausedManual
	case StatePausedManual, StatePausedAuto:
		if err := s.engine.Play(); err != nil {
			logging.Warn("engine play failed", "item", s.item.ID, "error", err)
			return
		}
		s.manual = true
		s.state = StatePlaying
	}
}

// AutoPause pauses playback because the screen lost focus or a modal opened.
// Manual control and in-progress scrubs win over it. Position is preserved.
func (s *Session) AutoPause() {
	if s.manual || s.scrubbing || s.state != StatePlaying {
		return
	}
	if err := s.engine.Pause(); err != nil {
		logging.Warn("engine pause failed", "item", s.item.ID, "error", err)
		return
	}
	s.state = StatePausedAuto
}

// AutoResume resumes playback after the condition behind an AutoPause
// cleared. It never overrides manual control, and it keeps the position the
// AutoPause preserved.
func (s *Session) AutoResume() {
	if s.manual || s.state != StatePausedAuto {
		return
	}
	s.play()
}

// ScrubStart begins a timeline scrub: playback pauses and the caller must
// assert the list scroll lock for as long as Scrubbing reports true.
// Scrubbing is manual control.
func (s *Session) ScrubStart() {
	switch s.state {
	case StatePlaying, StatePausedManual, StatePausedAuto:
	default:
		return
	}
	if err := s.engine.Pause(); err != nil {
		logging.Warn("engine pause failed", "item", s.item.ID, "error", err)
		return
	}
	s.scrubbing = true
	s.manual = true
	s.state = StatePausedManual
}

// ScrubMove sets the position proportionally to the gesture's horizontal
// fraction of the full width, clamped to [0, duration].
func (s *Session) ScrubMove(frac float64) {
	if !s.scrubbing {
		return
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	s.position = frac * float64(s.item.Media.DurationSeconds)
}

// ScrubEnd seeks the engine to the scrubbed position, resumes playback, and
// releases the scroll lock.
func (s *Session) ScrubEnd() {
	if !s.scrubbing {
		return
	}
	s.scrubbing = false
	if err := s.engine.Seek(s.position); err != nil {
		logging.Warn("engine seek failed", "item", s.item.ID, "error", err)
	}
	s.play()
}

// play transitions to StatePlaying, reverting on engine rejection.
func (s *Session) play() {
	prev := s.state
	if err := s.engine.Play(); err != nil {
		logging.Warn("engine play failed", "item", s.item.ID, "error", err)
		s.state = prev
		return
	}
	s.state = StatePlaying
}

// Tick advances the playback clock by dt seconds of wall time. Short-form
// media loops at the end; watched time keeps accumulating across loops.
func (s *Session) Tick(dt float64) {
	if s.state != StatePlaying || s.scrubbing || dt <= 0 {
		return
	}
	s.watched += dt
	s.position += dt * s.rate
	d := float64(s.item.Media.DurationSeconds)
	if d > 0 && s.position >= d {
		s.position = 0
		if err := s.engine.Seek(0); err != nil {
			logging.Warn("engine seek failed", "item", s.item.ID, "error", err)
		}
	}
}

// SetRate applies a playback-rate override. A rejected rate keeps the old one.
func (s *Session) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	if err := s.engine.SetRate(rate); err != nil {
		logging.Warn("engine rate rejected", "item", s.item.ID, "rate", rate, "error", err)
		return
	}
	s.rate = rate
}

// SetMuted applies the mute flag. A rejection keeps the old flag.
func (s *Session) SetMuted(muted bool) {
	if err := s.engine.SetMuted(muted); err != nil {
		logging.Warn("engine mute rejected", "item", s.item.ID, "error", err)
		return
	}
	s.muted = muted
}

// ToggleControls flips the control overlay. Revealing returns a fresh
// generation for the single-shot auto-hide timer; stale timers check their
// generation in HideControls and drop out. Revealing never pauses playback.
// The second return is true when the controls were just revealed.
func (s *Session) ToggleControls() (int, bool) {
	if s.controlsVisible {
		s.controlsVisible = false
		s.controlsGen++
		return s.controlsGen, false
	}
	s.controlsVisible = true
	s.controlsGen++
	return s.controlsGen, true
}

// HideControls hides the overlay if gen is still the current reveal. Timers
// that were superseded by a later tap are no-ops.
func (s *Session) HideControls(gen int) {
	if gen != s.controlsGen {
		return
	}
	s.controlsVisible = false
}

// ControlsVisible reports whether the control overlay is showing.
func (s *Session) ControlsVisible() bool { return s.controlsVisible }

// ToggleLike flips the optimistic like flag and returns the new value. The
// network mutation is the caller's job; there is no rollback on failure.
func (s *Session) ToggleLike() bool {
	s.liked = !s.liked
	return s.liked
}

// ToggleBookmark flips the optimistic bookmark flag and returns the new value.
func (s *Session) ToggleBookmark() bool {
	s.bookmarked = !s.bookmarked
	return s.bookmarked
}

// Liked reports the optimistic like flag.
func (s *Session) Liked() bool { return s.liked }

// Bookmarked reports the optimistic bookmark flag.
func (s *Session) Bookmarked() bool { return s.bookmarked }

// DisplayLikes returns the like counter with the optimistic delta applied
// relative to the item's original count.
func (s *Session) DisplayLikes() int64 {
	return applyDelta(s.item.Likes, s.item.Liked, s.liked)
}

// DisplayBookmarks returns the bookmark counter with the optimistic delta.
func (s *Session) DisplayBookmarks() int64 {
	return applyDelta(s.item.Bookmarks, s.item.Bookmarked, s.bookmarked)
}

func applyDelta(orig int64, was, is bool) int64 {
	switch {
	case is && !was:
		return orig + 1
	case !is && was:
		return orig - 1
	}
	return orig
}

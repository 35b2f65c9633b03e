// Package player holds the per-item playback state machine and the engine
// seam that actual media decoding hides behind.
package player

import "fmt"

// Engine is the playback backend a Session drives. Implementations may
// reject any call (bad source, unsupported rate); the Session logs the
// failure and keeps its previous flags.
type Engine interface {
	Load(url string, durationSeconds float64) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetRate(rate float64) error
	SetMuted(muted bool) error
}

// SimEngine is the terminal playback backend: it keeps the flag state a real
// decoder would and lets the session clock drive position. It never fails
// except for an empty source URL.
type SimEngine struct {
	url      string
	duration float64
	playing  bool
	muted    bool
	rate     float64
	position float64
}

// NewSimEngine returns an idle simulated engine.
func NewSimEngine() *SimEngine {
	return &SimEngine{rate: 1.0}
}

func (e *SimEngine) Load(url string, durationSeconds float64) error {
	if url == "" {
		return fmt.Errorf("load: empty source url")
	}
	e.url = url
	e.duration = durationSeconds
	e.position = 0
	e.playing = false
	return nil
}

func (e *SimEngine) Play() error {
	if e.url == "" {
		return fmt.Errorf("play: no source loaded")
	}
	e.playing = true
	return nil
}

func (e *SimEngine) Pause() error {
	e.playing = false
	return nil
}

func (e *SimEngine) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	if e.duration > 0 && seconds > e.duration {
		seconds = e.duration
	}
	e.position = seconds
	return nil
}

func (e *SimEngine) SetRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("set rate: invalid rate %v", rate)
	}
	e.rate = rate
	return nil
}

func (e *SimEngine) SetMuted(muted bool) error {
	e.muted = muted
	return nil
}

// Playing reports the engine's play flag.
func (e *SimEngine) Playing() bool { return e.playing }

// Muted reports the engine's mute flag.
func (e *SimEngine) Muted() bool { return e.muted }

// Rate returns the engine's playback rate.
func (e *SimEngine) Rate() float64 { return e.rate }

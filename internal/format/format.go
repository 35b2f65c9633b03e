// Package format holds the small pure formatting helpers used across the UI:
// code-point truncation, compact counts ("13K"), relative timestamps, and
// playback clock strings.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RoundingMode controls how PrettyCount rounds scaled values.
type RoundingMode int

const (
	RoundNearest RoundingMode = iota
	RoundFloor
	RoundCeil
)

// countOptions holds PrettyCount configuration.
type countOptions struct {
	precision int
	mode      RoundingMode
}

// CountOption configures PrettyCount.
type CountOption func(*countOptions)

// WithPrecision sets the number of decimal places for scaled values under 10.
func WithPrecision(p int) CountOption {
	return func(o *countOptions) {
		if p >= 0 {
			o.precision = p
		}
	}
}

// WithRounding sets the rounding mode for scaled values.
func WithRounding(m RoundingMode) CountOption {
	return func(o *countOptions) { o.mode = m }
}

// countUnits are the powers-of-1000 suffixes.
var countUnits = []string{"", "K", "M", "B", "T"}

// PrettyCount renders an engagement counter compactly: 999 -> "999",
// 13245 -> "13K", 1235000 -> "1.2M". Values scaled to >= 10 drop decimals.
// Rounding that lands exactly on 1000 bumps to the next unit.
func PrettyCount(n int64, opts ...CountOption) string {
	o := countOptions{precision: 1, mode: RoundNearest}
	for _, opt := range opts {
		opt(&o)
	}

	if n < 0 {
		return "-" + PrettyCount(-n, opts...)
	}
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}

	v := float64(n)
	unit := 0
	for v >= 1000 && unit < len(countUnits)-1 {
		v /= 1000
		unit++
	}

	prec := o.precision
	if v >= 10 {
		prec = 0
	}
	v = roundTo(v, prec, o.mode)

	// Rounding can push the value to exactly 1000 (e.g. 999950 -> 1000K).
	if v >= 1000 && unit < len(countUnits)-1 {
		v /= 1000
		unit++
		prec = o.precision
		v = roundTo(v, prec, o.mode)
	}

	s := strconv.FormatFloat(v, 'f', prec, 64)
	if prec > 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s + countUnits[unit]
}

func roundTo(v float64, prec int, mode RoundingMode) float64 {
	p := math.Pow(10, float64(prec))
	switch mode {
	case RoundFloor:
		return math.Floor(v*p) / p
	case RoundCeil:
		return math.Ceil(v*p) / p
	default:
		return math.Round(v*p) / p
	}
}

// Truncate shortens s to at most max Unicode code points, appending suffix
// (default "…") only when something was cut. Counting code points rather
// than UTF-16 units keeps emoji like "⚡️" from being split mid-sequence.
func Truncate(s string, max int, suffix ...string) string {
	sfx := "…"
	if len(suffix) > 0 {
		sfx = suffix[0]
	}
	if max < 0 {
		max = 0
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + sfx
}

// TimeAgo renders t relative to now: "now" under 5s, then "{s}s", "{m}m",
// "{h}h", and past 24 hours an abbreviated month/day (with the year when it
// differs from now's).
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 5*time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	if t.Year() != now.Year() {
		return t.Format("Jan 2, 2006")
	}
	return t.Format("Jan 2")
}

// FormatDate renders a full date. Dates outside a sane range fall back to
// the ISO form so a bad timestamp never produces garbage in the UI.
func FormatDate(t time.Time) string {
	if t.Year() < 1 || t.Year() > 9999 {
		return ISODate(t)
	}
	return t.Format("January 2, 2006")
}

// ISODate returns the "YYYY-MM-DD" form of t.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// StartOfDay returns midnight at the start of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// IsSameDay reports whether a and b fall on the same calendar day.
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SecondsToTimeString converts elapsed seconds to a zero-padded "MM:SS"
// playback clock. Negative input clamps to zero.
func SecondsToTimeString(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package workflow

import "time"

// VotingWindow is the nightly period in which votes are refused. The
// window may wrap midnight; equal hours mean it never closes. It is
// half-open: closed from ClosedFromHour:00:00 and open again at exactly
// ClosedUntilHour:00:00.
type VotingWindow struct {
	Enforce         bool
	ClosedFromHour  int
	ClosedUntilHour int
	Location        *time.Location
}

// Closed reports whether t falls inside an enforced closed window
func (w VotingWindow) Closed(t time.Time) bool {
	if !w.Enforce || w.ClosedFromHour == w.ClosedUntilHour {
		return false
	}
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	h := t.In(loc).Hour()
	if w.ClosedFromHour < w.ClosedUntilHour {
		return h >= w.ClosedFromHour && h < w.ClosedUntilHour
	}
	return h >= w.ClosedFromHour || h < w.ClosedUntilHour
}

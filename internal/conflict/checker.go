// Package conflict decides whether proposed bookings clash with stored ones.
// All checks are per room; callers pass only intervals of the same room.
package conflict

import (
	"roombook/internal/model"
)

// Conflict pairs a proposed interval with the stored booking it overlaps.
type Conflict struct {
	Candidate model.Interval `json:"candidate"`
	Existing  model.Booking  `json:"existing"`
}

// HasConflict reports whether candidate overlaps any existing interval.
// The candidate must satisfy Start < End; validate before calling.
func HasConflict(candidate model.Interval, existing []model.Interval) bool {
	for _, e := range existing {
		if isOverlapping(candidate, e) {
			return true
		}
	}
	return false
}

// Find returns every (candidate, existing) pair that overlaps, in candidate order.
func Find(candidates []model.Interval, existing []model.Booking) []Conflict {
	var out []Conflict
	for _, c := range candidates {
		for i := range existing {
			if isOverlapping(c, existing[i].Interval()) {
				out = append(out, Conflict{Candidate: c, Existing: existing[i]})
			}
		}
	}
	return out
}

// SelfOverlaps reports whether any two candidates of one batch overlap each other.
func SelfOverlaps(candidates []model.Interval) bool {
	for i := range candidates {
		for j := i + 1; j < len(candidates); j++ {
			if isOverlapping(candidates[i], candidates[j]) {
				return true
			}
		}
	}
	return false
}

func isOverlapping(a, b model.Interval) bool {
	return b.Start.Before(a.End) && b.End.After(a.Start)
}

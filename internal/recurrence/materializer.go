// Package recurrence expands weekly recurrence specs into concrete booking intervals.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"roombook/internal/model"
	"roombook/internal/tz"

	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences bounds a single expansion.
const DefaultMaxOccurrences = 366

var (
	ErrInvalidTimeRange   = errors.New("end time must be after start time")
	ErrNoWeekdays         = errors.New("at least one weekday is required")
	ErrInvalidWeekday     = errors.New("weekday must be between 0 (Sunday) and 6 (Saturday)")
	ErrMissingDates       = errors.New("first and last dates are required")
	ErrTooManyOccurrences = errors.New("recurrence produces too many occurrences")
)

// weekdays maps 0=Sunday..6=Saturday onto rrule weekdays.
var weekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Materializer turns a RecurrenceSpec into intervals in a fixed zone.
type Materializer struct {
	zone           *tz.Zone
	maxOccurrences int
}

// New builds a Materializer. maxOccurrences <= 0 selects DefaultMaxOccurrences.
func New(zone *tz.Zone, maxOccurrences int) *Materializer {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &Materializer{zone: zone, maxOccurrences: maxOccurrences}
}

// Materialize returns one interval per date in [FirstDate, LastDate] whose local
// weekday is listed, ascending. A reversed date range yields no intervals.
func (m *Materializer) Materialize(spec model.RecurrenceSpec) ([]model.Interval, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	if spec.FirstDate.After(spec.LastDate) {
		return []model.Interval{}, nil
	}

	r, err := m.rule(spec)
	if err != nil {
		return nil, err
	}

	out := make([]model.Interval, 0)
	next := r.Iterator()
	for {
		start, ok := next()
		if !ok {
			break
		}
		if len(out) == m.maxOccurrences {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyOccurrences, m.maxOccurrences)
		}
		date := tz.DateFromTime(start.In(m.zone.Location()))
		out = append(out, model.Interval{
			Start: start.UTC(),
			End:   m.zone.At(date, spec.EndTime),
		})
	}
	return out, nil
}

// Rule renders the spec as RFC 5545 text for storage on the series.
func (m *Materializer) Rule(spec model.RecurrenceSpec) (string, error) {
	if err := Validate(spec); err != nil {
		return "", err
	}
	r, err := m.rule(spec)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

func (m *Materializer) rule(spec model.RecurrenceSpec) (*rrule.RRule, error) {
	loc := m.zone.Location()
	// Occurrence hour and minute come from Dtstart, so it must be expressed in the local zone.
	dtstart := time.Date(spec.FirstDate.Year, spec.FirstDate.Month, spec.FirstDate.Day,
		spec.StartTime.Hour, spec.StartTime.Minute, 0, 0, loc)
	until := time.Date(spec.LastDate.Year, spec.LastDate.Month, spec.LastDate.Day,
		spec.StartTime.Hour, spec.StartTime.Minute, 0, 0, loc)

	days := make([]rrule.Weekday, 0, len(spec.Weekdays))
	for _, d := range NormalizeWeekdays(spec.Weekdays) {
		days = append(days, weekdays[d])
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  1,
		Wkst:      rrule.MO,
		Dtstart:   dtstart,
		Until:     until,
		Byweekday: days,
	})
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule: %w", err)
	}
	return r, nil
}

// Validate checks the parts of a spec that would make every occurrence invalid.
func Validate(spec model.RecurrenceSpec) error {
	if !spec.StartTime.Before(spec.EndTime) {
		return ErrInvalidTimeRange
	}
	if len(spec.Weekdays) == 0 {
		return ErrNoWeekdays
	}
	for _, d := range spec.Weekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w, got %d", ErrInvalidWeekday, d)
		}
	}
	if spec.FirstDate.IsZero() || spec.LastDate.IsZero() {
		return ErrMissingDates
	}
	return nil
}

// NormalizeWeekdays returns the distinct weekdays in ascending order.
func NormalizeWeekdays(days []int) []int {
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// Package series collapses flat booking lists into recurring series for display.
package series

import (
	"sort"

	"roombook/internal/model"
	"roombook/internal/tz"
)

// DefaultThreshold is the member count at which unlinked bookings are treated as a series.
const DefaultThreshold = 4

// Detector groups bookings. Bookings carrying a SeriesID are grouped by that id;
// legacy rows without one are grouped by room, requester and local time of day.
type Detector struct {
	zone      *tz.Zone
	threshold int
	infer     bool
}

// Option tweaks a Detector.
type Option func(*Detector)

// WithoutInference disables the content heuristic; only stored series are grouped.
func WithoutInference() Option {
	return func(d *Detector) { d.infer = false }
}

// NewDetector builds a Detector. threshold <= 0 selects DefaultThreshold.
func NewDetector(zone *tz.Zone, threshold int, opts ...Option) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	d := &Detector{zone: zone, threshold: threshold, infer: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Threshold returns the inference threshold in use.
func (d *Detector) Threshold() int { return d.threshold }

type groupKey struct {
	seriesID  string
	roomID    string
	requester string
	start     tz.TimeOfDay
	end       tz.TimeOfDay
}

// Detect returns the display list. Items keep the input order; a series takes
// the position of its first member.
func (d *Detector) Detect(bookings []model.Booking) []model.View {
	keys := make([]groupKey, len(bookings))
	members := make(map[groupKey][]int)

	for i := range bookings {
		k := d.keyOf(&bookings[i])
		keys[i] = k
		members[k] = append(members[k], i)
	}

	out := make([]model.View, 0, len(bookings))
	emitted := make(map[groupKey]bool)

	for i := range bookings {
		k := keys[i]
		idx := members[k]
		if !d.collapses(k, len(idx)) {
			b := bookings[i]
			out = append(out, model.View{Booking: &b})
			continue
		}
		if emitted[k] {
			continue
		}
		emitted[k] = true
		out = append(out, model.View{Series: d.buildView(k, bookings, idx)})
	}
	return out
}

// SeriesOnly returns just the grouped entries of Detect.
func (d *Detector) SeriesOnly(bookings []model.Booking) []model.SeriesView {
	var out []model.SeriesView
	for _, v := range d.Detect(bookings) {
		if v.Series != nil {
			out = append(out, *v.Series)
		}
	}
	return out
}

func (d *Detector) keyOf(b *model.Booking) groupKey {
	if b.SeriesID != "" {
		return groupKey{seriesID: b.SeriesID}
	}
	if !d.infer {
		// Unique key so the booking is never grouped.
		return groupKey{roomID: b.RoomID, requester: "id:" + b.ID}
	}
	return groupKey{
		roomID:    b.RoomID,
		requester: b.Requester().Key(),
		start:     d.zone.TimeOfDay(b.Start),
		end:       d.zone.TimeOfDay(b.End),
	}
}

func (d *Detector) collapses(k groupKey, n int) bool {
	if k.seriesID != "" {
		return n >= 2
	}
	return d.infer && n >= d.threshold
}

func (d *Detector) buildView(k groupKey, bookings []model.Booking, idx []int) *model.SeriesView {
	first := &bookings[idx[0]]
	v := &model.SeriesView{
		SeriesID:   k.seriesID,
		Inferred:   k.seriesID == "",
		RoomID:     first.RoomID,
		RoomName:   first.RoomName,
		RoomColor:  first.RoomColor,
		Requester:  first.Requester(),
		SquadName:  first.SquadName,
		StartTime:  d.zone.TimeOfDay(first.Start),
		EndTime:    d.zone.TimeOfDay(first.End),
		Count:      len(idx),
		RangeStart: first.Start,
		RangeEnd:   first.End,
		MemberIDs:  make([]string, 0, len(idx)),
	}

	days := make(map[int]struct{})
	for _, i := range idx {
		b := &bookings[i]
		v.MemberIDs = append(v.MemberIDs, b.ID)
		days[d.zone.Weekday(b.Start)] = struct{}{}
		if b.Start.Before(v.RangeStart) {
			v.RangeStart = b.Start
		}
		if b.End.After(v.RangeEnd) {
			v.RangeEnd = b.End
		}
	}

	v.Weekdays = make([]int, 0, len(days))
	for wd := range days {
		v.Weekdays = append(v.Weekdays, wd)
	}
	sort.Ints(v.Weekdays)
	return v
}

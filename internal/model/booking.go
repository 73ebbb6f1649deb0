package model

import (
	"time"

	"roombook/internal/tz"
)

// Interval is a half-open [Start, End) span of instants.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether Start is strictly before End.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether the two spans share any instant.
// Spans that only touch at an endpoint do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// Contains reports whether t falls inside the span, end inclusive.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Booking is one stored reservation of a room.
type Booking struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	BookerName string    `json:"booker_name,omitempty"`
	SquadID    string    `json:"squad_id,omitempty"`
	SeriesID   string    `json:"series_id,omitempty"`
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`

	// Display fields filled by joins.
	RoomName  string `json:"room_name,omitempty"`
	RoomColor string `json:"room_color,omitempty"`
	SquadName string `json:"squad_name,omitempty"`
}

// Interval returns the booked span.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// Requester returns who holds the booking.
func (b *Booking) Requester() Requester {
	return Requester{Name: b.BookerName, SquadID: b.SquadID}
}

// DisplayName prefers the squad name over the free-text booker.
func (b *Booking) DisplayName() string {
	if b.SquadName != "" {
		return b.SquadName
	}
	return b.BookerName
}

// IsActiveAt reports whether the room is in use by this booking at t.
func (b *Booking) IsActiveAt(t time.Time) bool {
	return b.Interval().Contains(t)
}

// BookingBatch is one insert request: every interval against the same room and requester.
type BookingBatch struct {
	RoomID    string
	Requester Requester
	Intervals []Interval
	// Series is stored alongside the members when the batch comes from a recurrence.
	Series *BookingSeries
}

// RecurrenceSpec describes a weekly pattern to expand into bookings.
// Weekdays use 0=Sunday through 6=Saturday; LastDate is inclusive.
type RecurrenceSpec struct {
	Weekdays  []int        `json:"weekdays"`
	StartTime tz.TimeOfDay `json:"start_time"`
	EndTime   tz.TimeOfDay `json:"end_time"`
	FirstDate tz.Date      `json:"first_date"`
	LastDate  tz.Date      `json:"last_date"`
}

// BookingSeries is the stored record of a recurring creation. Members point back via SeriesID.
type BookingSeries struct {
	ID        string       `json:"id"`
	RoomID    string       `json:"room_id"`
	Requester Requester    `json:"requester"`
	Weekdays  []int        `json:"weekdays"`
	StartTime tz.TimeOfDay `json:"start_time"`
	EndTime   tz.TimeOfDay `json:"end_time"`
	FirstDate tz.Date      `json:"first_date"`
	LastDate  tz.Date      `json:"last_date"`
	RRule     string       `json:"rrule"`
	CreatedAt time.Time    `json:"created_at"`
}

package model

import (
	"encoding/json"
	"time"

	"roombook/internal/tz"
)

const (
	ViewKindBooking = "booking"
	ViewKindSeries  = "series"
)

// SeriesView is a compacted display record for a group of bookings.
type SeriesView struct {
	// SeriesID is set when the group comes from a stored series.
	SeriesID   string       `json:"series_id,omitempty"`
	Inferred   bool         `json:"inferred"`
	RoomID     string       `json:"room_id"`
	RoomName   string       `json:"room_name,omitempty"`
	RoomColor  string       `json:"room_color,omitempty"`
	Requester  Requester    `json:"requester"`
	SquadName  string       `json:"squad_name,omitempty"`
	StartTime  tz.TimeOfDay `json:"start_time"`
	EndTime    tz.TimeOfDay `json:"end_time"`
	Count      int          `json:"count"`
	Weekdays   []int        `json:"weekdays"`
	RangeStart time.Time    `json:"range_start"`
	RangeEnd   time.Time    `json:"range_end"`
	MemberIDs  []string     `json:"member_ids"`
}

// DisplayName prefers the squad name over the free-text booker.
func (s *SeriesView) DisplayName() string {
	if s.SquadName != "" {
		return s.SquadName
	}
	return s.Requester.Name
}

// View is one entry of a display list: exactly one of Booking or Series is set.
type View struct {
	Booking *Booking
	Series  *SeriesView
}

// IsSeries reports whether the entry is a grouped series.
func (v View) IsSeries() bool {
	return v.Series != nil
}

// BookingIDs returns every booking id the entry stands for.
func (v View) BookingIDs() []string {
	if v.Series != nil {
		return v.Series.MemberIDs
	}
	if v.Booking != nil {
		return []string{v.Booking.ID}
	}
	return nil
}

type viewJSON struct {
	Kind    string      `json:"kind"`
	Booking *Booking    `json:"booking,omitempty"`
	Series  *SeriesView `json:"series,omitempty"`
}

// MarshalJSON tags the entry with its kind.
func (v View) MarshalJSON() ([]byte, error) {
	kind := ViewKindBooking
	if v.Series != nil {
		kind = ViewKindSeries
	}
	return json.Marshal(viewJSON{Kind: kind, Booking: v.Booking, Series: v.Series})
}

// UnmarshalJSON restores an entry written by MarshalJSON.
func (v *View) UnmarshalJSON(data []byte) error {
	var raw viewJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Booking = raw.Booking
	v.Series = raw.Series
	return nil
}

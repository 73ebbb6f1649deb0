// Package export renders room schedules as iCalendar feeds and Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"roombook/internal/model"
	"roombook/internal/tz"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//roombook//room schedule//EN"

// RoomCalendar builds an iCalendar feed with one VEVENT per booking.
// Series members carry the series id in RELATED-TO so clients can group them.
func RoomCalendar(room *model.Room, bookings []model.Booking, zone *tz.Zone, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(room.Name)
	cal.SetXWRTimezone(zone.Name())
	if room.Description != "" {
		cal.SetXWRCalDesc(room.Description)
	}

	for i := range bookings {
		b := &bookings[i]
		ev := cal.AddEvent(b.ID + "@roombook")
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(b.Start.UTC())
		ev.SetEndAt(b.End.UTC())
		ev.SetSummary(b.DisplayName())
		ev.SetLocation(room.Name)
		ev.SetDescription(describe(b, zone))
		if !b.CreatedAt.IsZero() {
			ev.SetCreatedTime(b.CreatedAt.UTC())
		}
		if b.SeriesID != "" {
			ev.SetProperty(ical.ComponentPropertyRelatedTo, b.SeriesID)
		}
	}
	return cal
}

// WriteRoomCalendar serializes the room feed to w.
func WriteRoomCalendar(w io.Writer, room *model.Room, bookings []model.Booking, zone *tz.Zone, stamp time.Time) error {
	if err := RoomCalendar(room, bookings, zone, stamp).SerializeTo(w); err != nil {
		return fmt.Errorf("serialize calendar: %w", err)
	}
	return nil
}

func describe(b *model.Booking, zone *tz.Zone) string {
	start := zone.ToLocal(b.Start)
	return fmt.Sprintf("Booked by %s, %s %s-%s (%s)",
		b.DisplayName(), start.Date(), start.TimeOfDay(), zone.TimeOfDay(b.End), zone.Name())
}

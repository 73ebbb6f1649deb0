package booking

import (
	"context"
	"time"

	"roombook/internal/model"
	"roombook/internal/tz"
)

// Calendar hours shown when Options leave them unset. LastHour is the last
// slot start, so the default grid covers 08:00 to 20:00.
const (
	DefaultFirstHour = 8
	DefaultLastHour  = 19
)

// Week is a Monday-based calendar of one room.
type Week struct {
	RoomID string    `json:"room_id"`
	Offset int       `json:"offset"`
	Start  tz.Date   `json:"start"`
	End    tz.Date   `json:"end"`
	Hours  []int     `json:"hours"`
	Days   []WeekDay `json:"days"`
}

// WeekDay holds the hourly slots of one day.
type WeekDay struct {
	Date    tz.Date    `json:"date"`
	Weekday int        `json:"weekday"`
	Slots   []HourSlot `json:"slots"`
}

// HourSlot lists the bookings overlapping [Hour:00, Hour+1:00).
type HourSlot struct {
	Hour     int             `json:"hour"`
	Bookings []model.Booking `json:"bookings"`
}

// RoomStatus tells whether a room is occupied right now.
type RoomStatus struct {
	Room     *model.Room     `json:"room"`
	Active   *model.Booking  `json:"active,omitempty"`
	Upcoming []model.Booking `json:"upcoming"`
}

// WeekStart returns the Monday of the week containing d.
func WeekStart(d tz.Date) tz.Date {
	// Weekday is 0 for Sunday.
	back := (d.Weekday() + 6) % 7
	return d.AddDays(-back)
}

// WeeklyCalendar builds the room's week, offset whole weeks from the current one.
func (s *Service) WeeklyCalendar(ctx context.Context, roomID string, offset int) (*Week, error) {
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, storeError("get room", err)
	}

	monday := WeekStart(s.zone.DateOf(s.now())).AddDays(7 * offset)
	from := s.zone.StartOfDay(monday)
	to := s.zone.StartOfDay(monday.AddDays(7))

	list, err := s.repo.ListBookingsInRange(ctx, roomID, from, to)
	if err != nil {
		return nil, storeError("list bookings", err)
	}

	week := &Week{
		RoomID: roomID,
		Offset: offset,
		Start:  monday,
		End:    monday.AddDays(6),
	}
	for h := s.firstHour; h <= s.lastHour; h++ {
		week.Hours = append(week.Hours, h)
	}

	for i := 0; i < 7; i++ {
		date := monday.AddDays(i)
		day := WeekDay{Date: date, Weekday: date.Weekday()}
		for _, h := range week.Hours {
			slot := model.Interval{
				Start: s.zone.At(date, tz.TimeOfDay{Hour: h}),
				End:   s.zone.At(date, tz.TimeOfDay{Hour: h}).Add(time.Hour),
			}
			hs := HourSlot{Hour: h, Bookings: []model.Booking{}}
			for _, b := range list {
				if b.Interval().Overlaps(slot) {
					hs.Bookings = append(hs.Bookings, b)
				}
			}
			day.Slots = append(day.Slots, hs)
		}
		week.Days = append(week.Days, day)
	}
	return week, nil
}

// RoomStatus returns the booking in progress, if any, and the ones still ahead.
func (s *Service) RoomStatus(ctx context.Context, roomID string) (*RoomStatus, error) {
	room, list, err := s.RoomBookings(ctx, roomID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	st := &RoomStatus{Room: room, Upcoming: []model.Booking{}}
	for i := range list {
		b := list[i]
		switch {
		case b.IsActiveAt(now):
			if st.Active == nil {
				st.Active = &b
			}
		case b.Start.After(now):
			st.Upcoming = append(st.Upcoming, b)
		}
	}
	return st, nil
}

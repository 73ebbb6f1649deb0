package tz

import (
	"fmt"
	"time"
)

// DefaultName is the zone used when configuration leaves timezone empty.
const DefaultName = "Asia/Baku"

// DefaultOffset is the UTC offset of DefaultName, used when the tz database is unavailable.
const DefaultOffset = 4 * time.Hour

// LocalTime is a wall-clock reading in the system zone.
// Weekday follows time.Weekday numbering: 0=Sunday through 6=Saturday.
type LocalTime struct {
	Year       int
	Month      time.Month
	Day        int
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
	Weekday    int
}

// Date returns the calendar date part.
func (lt LocalTime) Date() Date {
	return Date{Year: lt.Year, Month: lt.Month, Day: lt.Day}
}

// TimeOfDay returns the hour and minute part.
func (lt LocalTime) TimeOfDay() TimeOfDay {
	return TimeOfDay{Hour: lt.Hour, Minute: lt.Minute}
}

// Zone converts between absolute instants and local wall-clock readings.
// One Zone is built at startup and shared; it is safe for concurrent use.
type Zone struct {
	loc *time.Location
}

// Load resolves a named zone. When the name can't be resolved the zone falls
// back to a fixed offset carrying the same name.
func Load(name string, fallback time.Duration) (*Zone, error) {
	if name == "" {
		name = DefaultName
		if fallback == 0 {
			fallback = DefaultOffset
		}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if fallback == 0 {
			return nil, fmt.Errorf("load timezone %q: %w", name, err)
		}
		return Fixed(name, fallback), nil
	}
	return &Zone{loc: loc}, nil
}

// Fixed builds a zone with a constant UTC offset.
func Fixed(name string, offset time.Duration) *Zone {
	return &Zone{loc: time.FixedZone(name, int(offset/time.Second))}
}

// Location exposes the underlying location for libraries that need one.
func (z *Zone) Location() *time.Location { return z.loc }

// Name returns the zone name.
func (z *Zone) Name() string { return z.loc.String() }

// ToLocal reads t as the local wall clock.
func (z *Zone) ToLocal(t time.Time) LocalTime {
	l := t.In(z.loc)
	return LocalTime{
		Year:       l.Year(),
		Month:      l.Month(),
		Day:        l.Day(),
		Hour:       l.Hour(),
		Minute:     l.Minute(),
		Second:     l.Second(),
		Nanosecond: l.Nanosecond(),
		Weekday:    int(l.Weekday()),
	}
}

// ToInstant converts a wall-clock reading back to an instant in UTC.
// Weekday is derived from the date and therefore ignored.
func (z *Zone) ToInstant(lt LocalTime) time.Time {
	return time.Date(lt.Year, lt.Month, lt.Day, lt.Hour, lt.Minute, lt.Second, lt.Nanosecond, z.loc).UTC()
}

// At combines a local date and time of day into an instant.
func (z *Zone) At(d Date, tod TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, z.loc).UTC()
}

// StartOfDay returns the instant of local midnight on d.
func (z *Zone) StartOfDay(d Date) time.Time {
	return z.At(d, TimeOfDay{})
}

// DateOf returns the local calendar date of t.
func (z *Zone) DateOf(t time.Time) Date {
	return z.ToLocal(t).Date()
}

// TimeOfDay returns the local hour and minute of t.
func (z *Zone) TimeOfDay(t time.Time) TimeOfDay {
	return z.ToLocal(t).TimeOfDay()
}

// Weekday returns the local weekday of t, 0=Sunday.
func (z *Zone) Weekday(t time.Time) int {
	return int(t.In(z.loc).Weekday())
}

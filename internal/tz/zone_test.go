package tz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZone_ToLocal(t *testing.T) {
	z := Fixed("Asia/Baku", 4*time.Hour)

	// 2024-01-01 05:30 UTC is 09:30 local, a Monday.
	lt := z.ToLocal(time.Date(2024, 1, 1, 5, 30, 0, 0, time.UTC))
	assert.Equal(t, 2024, lt.Year)
	assert.Equal(t, time.January, lt.Month)
	assert.Equal(t, 1, lt.Day)
	assert.Equal(t, 9, lt.Hour)
	assert.Equal(t, 30, lt.Minute)
	assert.Equal(t, 1, lt.Weekday)

	// Crossing local midnight moves the date and weekday.
	lt = z.ToLocal(time.Date(2024, 1, 6, 21, 0, 0, 0, time.UTC))
	assert.Equal(t, 7, lt.Day)
	assert.Equal(t, 1, lt.Hour)
	assert.Equal(t, 0, lt.Weekday)
}

func TestZone_RoundTrip(t *testing.T) {
	z := Fixed("Asia/Baku", 4*time.Hour)

	instants := []time.Time{
		time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 999999999, time.UTC),
		time.Date(2030, 6, 15, 12, 34, 56, 789, time.UTC),
		time.Unix(1_700_000_123, 456).UTC(),
	}
	for _, x := range instants {
		got := z.ToInstant(z.ToLocal(x))
		assert.True(t, got.Equal(x), "round trip of %s gave %s", x, got)
		assert.Equal(t, x, got)
	}
}

func TestZone_At(t *testing.T) {
	z := Fixed("Asia/Baku", 4*time.Hour)

	got := z.At(Date{Year: 2024, Month: time.January, Day: 1}, TimeOfDay{Hour: 9})
	assert.Equal(t, time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC), got)
	assert.Equal(t, TimeOfDay{Hour: 9}, z.TimeOfDay(got))
	assert.Equal(t, Date{Year: 2024, Month: time.January, Day: 1}, z.DateOf(got))
	assert.Equal(t, 1, z.Weekday(got))
}

func TestLoad(t *testing.T) {
	z, err := Load("", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultName, z.Name())

	z, err = Load("Nowhere/Invalid", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "Nowhere/Invalid", z.Name())
	assert.Equal(t, 2, z.ToLocal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)).Hour)

	_, err = Load("Nowhere/Invalid", 0)
	assert.Error(t, err)
}

func TestCivil(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, 3, d.Weekday())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.Equal(t, 14, d.DaysUntil(d.AddDays(14)))

	_, err = ParseDate("28-02-2024")
	assert.Error(t, err)

	tod, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, 545, tod.Minutes())
	assert.Equal(t, "09:05", tod.String())
	assert.True(t, tod.Before(TimeOfDay{Hour: 10}))

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

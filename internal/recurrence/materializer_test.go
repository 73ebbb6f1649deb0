package recurrence

import (
	"errors"
	"testing"
	"time"

	"roombook/internal/model"
	"roombook/internal/tz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zone = tz.Fixed("Asia/Baku", 4*time.Hour)

func date(s string) tz.Date {
	d, err := tz.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMaterialize_Weekdays(t *testing.T) {
	m := New(zone, 0)
	spec := model.RecurrenceSpec{
		Weekdays:  []int{1, 2, 3, 4, 5},
		StartTime: tz.TimeOfDay{Hour: 9},
		EndTime:   tz.TimeOfDay{Hour: 10},
		FirstDate: date("2024-01-01"),
		LastDate:  date("2024-01-05"),
	}

	got, err := m.Materialize(spec)
	require.NoError(t, err)
	require.Len(t, got, 5)

	for i, iv := range got {
		lt := zone.ToLocal(iv.Start)
		assert.Equal(t, i+1, lt.Day)
		assert.Equal(t, i+1, lt.Weekday)
		assert.Equal(t, 9, lt.Hour)
		assert.Equal(t, 0, lt.Minute)
		assert.Equal(t, tz.TimeOfDay{Hour: 10}, zone.TimeOfDay(iv.End))
		assert.Equal(t, time.Hour, iv.Duration())
	}
	assert.Equal(t, time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC), got[0].Start)
}

func TestMaterialize_MondayWednesdayTwoWeeks(t *testing.T) {
	m := New(zone, 0)
	spec := model.RecurrenceSpec{
		Weekdays:  []int{1, 3},
		StartTime: tz.TimeOfDay{Hour: 18, Minute: 30},
		EndTime:   tz.TimeOfDay{Hour: 20},
		FirstDate: date("2024-01-01"),
		LastDate:  date("2024-01-14"),
	}

	got, err := m.Materialize(spec)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, iv := range got {
		wd := zone.Weekday(iv.Start)
		assert.Contains(t, []int{1, 3}, wd)
		if i > 0 {
			assert.True(t, got[i-1].Start.Before(iv.Start))
		}
	}
}

func TestMaterialize_LateEveningCrossesUTCDate(t *testing.T) {
	m := New(zone, 0)
	spec := model.RecurrenceSpec{
		Weekdays:  []int{0},
		StartTime: tz.TimeOfDay{Hour: 1},
		EndTime:   tz.TimeOfDay{Hour: 2},
		FirstDate: date("2024-01-01"),
		LastDate:  date("2024-01-31"),
	}

	got, err := m.Materialize(spec)
	require.NoError(t, err)
	require.Len(t, got, 4)
	// 01:00 local on Sunday is Saturday 21:00 UTC.
	assert.Equal(t, time.Saturday, got[0].Start.Weekday())
	assert.Equal(t, 0, zone.Weekday(got[0].Start))
}

func TestMaterialize_EmptyAndErrors(t *testing.T) {
	m := New(zone, 3)
	valid := model.RecurrenceSpec{
		Weekdays:  []int{1},
		StartTime: tz.TimeOfDay{Hour: 9},
		EndTime:   tz.TimeOfDay{Hour: 10},
		FirstDate: date("2024-01-10"),
		LastDate:  date("2024-01-01"),
	}

	got, err := m.Materialize(valid)
	require.NoError(t, err)
	assert.Empty(t, got)

	tests := []struct {
		name   string
		mutate func(*model.RecurrenceSpec)
		want   error
	}{
		{"equal times", func(s *model.RecurrenceSpec) { s.EndTime = s.StartTime }, ErrInvalidTimeRange},
		{"reversed times", func(s *model.RecurrenceSpec) { s.EndTime = tz.TimeOfDay{Hour: 8} }, ErrInvalidTimeRange},
		{"no weekdays", func(s *model.RecurrenceSpec) { s.Weekdays = nil }, ErrNoWeekdays},
		{"bad weekday", func(s *model.RecurrenceSpec) { s.Weekdays = []int{7} }, ErrInvalidWeekday},
		{"missing dates", func(s *model.RecurrenceSpec) { s.FirstDate = tz.Date{} }, ErrMissingDates},
		{"too many", func(s *model.RecurrenceSpec) {
			s.FirstDate = date("2024-01-01")
			s.LastDate = date("2024-02-01")
		}, ErrTooManyOccurrences},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			tt.mutate(&spec)
			_, err := m.Materialize(spec)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRule(t *testing.T) {
	m := New(zone, 0)
	rule, err := m.Rule(model.RecurrenceSpec{
		Weekdays:  []int{3, 1, 1},
		StartTime: tz.TimeOfDay{Hour: 9},
		EndTime:   tz.TimeOfDay{Hour: 10},
		FirstDate: date("2024-01-01"),
		LastDate:  date("2024-01-31"),
	})
	require.NoError(t, err)
	assert.Contains(t, rule, "FREQ=WEEKLY")
	assert.Contains(t, rule, "BYDAY=MO,WE")
}

func TestNormalizeWeekdays(t *testing.T) {
	assert.Equal(t, []int{0, 3, 6}, NormalizeWeekdays([]int{6, 3, 0, 3}))
	assert.Empty(t, NormalizeWeekdays(nil))
}

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterval_Overlaps(t *testing.T) {
	base := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	a := Interval{Start: base, End: base.Add(time.Hour)}

	tests := []struct {
		name string
		b    Interval
		want bool
	}{
		{"partial overlap", Interval{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)}, true},
		{"contained", Interval{Start: base.Add(10 * time.Minute), End: base.Add(20 * time.Minute)}, true},
		{"identical", a, true},
		{"touching after", Interval{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}, false},
		{"touching before", Interval{Start: base.Add(-time.Hour), End: base}, false},
		{"disjoint", Interval{Start: base.Add(3 * time.Hour), End: base.Add(4 * time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(a))
		})
	}
}

func TestBooking_Helpers(t *testing.T) {
	start := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	b := &Booking{ID: "b1", BookerName: "Aysel", Start: start, End: start.Add(time.Hour)}

	assert.True(t, b.IsActiveAt(start))
	assert.True(t, b.IsActiveAt(start.Add(time.Hour)))
	assert.False(t, b.IsActiveAt(start.Add(-time.Second)))
	assert.Equal(t, "Aysel", b.DisplayName())
	assert.Equal(t, "name:Aysel", b.Requester().Key())

	b.SquadID = "sq1"
	b.SquadName = "Blue"
	assert.Equal(t, "Blue", b.DisplayName())
	assert.Equal(t, "squad:sq1", b.Requester().Key())
}

func TestView_JSON(t *testing.T) {
	v := View{Series: &SeriesView{SeriesID: "s1", Count: 5, MemberIDs: []string{"a", "b"}}}
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"series"`)

	var back View
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, back.IsSeries())
	assert.Equal(t, []string{"a", "b"}, back.BookingIDs())

	single := View{Booking: &Booking{ID: "x"}}
	data, err = json.Marshal(single)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"booking"`)
	assert.Equal(t, []string{"x"}, single.BookingIDs())
}

package series

import (
	"fmt"
	"testing"
	"time"

	"roombook/internal/model"
	"roombook/internal/tz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zone = tz.Fixed("Asia/Baku", 4*time.Hour)

// weekly builds n bookings at 09:00-10:00 local on consecutive days from 2024-01-01.
func weekly(n int, room, booker string) []model.Booking {
	out := make([]model.Booking, 0, n)
	for i := 0; i < n; i++ {
		d := tz.Date{Year: 2024, Month: time.January, Day: 1}.AddDays(i)
		out = append(out, model.Booking{
			ID:         fmt.Sprintf("%s-%d", booker, i),
			RoomID:     room,
			BookerName: booker,
			Start:      zone.At(d, tz.TimeOfDay{Hour: 9}),
			End:        zone.At(d, tz.TimeOfDay{Hour: 10}),
		})
	}
	return out
}

func TestDetect_FiveBecomeOneSeries(t *testing.T) {
	d := NewDetector(zone, 0)
	views := d.Detect(weekly(5, "r1", "Aysel"))

	require.Len(t, views, 1)
	s := views[0].Series
	require.NotNil(t, s)
	assert.Equal(t, 5, s.Count)
	assert.True(t, s.Inferred)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, s.Weekdays)
	assert.Equal(t, tz.TimeOfDay{Hour: 9}, s.StartTime)
	assert.Equal(t, tz.TimeOfDay{Hour: 10}, s.EndTime)
	assert.Equal(t, zone.At(tz.Date{Year: 2024, Month: time.January, Day: 1}, tz.TimeOfDay{Hour: 9}), s.RangeStart)
	assert.Equal(t, zone.At(tz.Date{Year: 2024, Month: time.January, Day: 5}, tz.TimeOfDay{Hour: 10}), s.RangeEnd)
	assert.Equal(t, []string{"Aysel-0", "Aysel-1", "Aysel-2", "Aysel-3", "Aysel-4"}, s.MemberIDs)
}

func TestDetect_BelowThresholdStaysIndividual(t *testing.T) {
	d := NewDetector(zone, 4)
	views := d.Detect(weekly(3, "r1", "Aysel"))

	require.Len(t, views, 3)
	for i, v := range views {
		assert.False(t, v.IsSeries())
		assert.Equal(t, fmt.Sprintf("Aysel-%d", i), v.Booking.ID)
	}
}

func TestDetect_ExactlyThreshold(t *testing.T) {
	views := NewDetector(zone, 4).Detect(weekly(4, "r1", "Aysel"))
	require.Len(t, views, 1)
	assert.Equal(t, 4, views[0].Series.Count)
}

func TestDetect_KeyParts(t *testing.T) {
	d := NewDetector(zone, 4)

	t.Run("different rooms", func(t *testing.T) {
		in := append(weekly(2, "r1", "Aysel"), weekly(2, "r2", "Aysel")...)
		assert.Len(t, d.Detect(in), 4)
	})

	t.Run("different requesters", func(t *testing.T) {
		in := append(weekly(2, "r1", "Aysel"), weekly(2, "r1", "Murad")...)
		assert.Len(t, d.Detect(in), 4)
	})

	t.Run("different time of day", func(t *testing.T) {
		in := weekly(4, "r1", "Aysel")
		in[3].End = in[3].End.Add(30 * time.Minute)
		assert.Len(t, d.Detect(in), 4)
	})

	t.Run("squad identity outranks name", func(t *testing.T) {
		in := weekly(4, "r1", "Aysel")
		for i := range in {
			in[i].SquadID = "sq1"
			in[i].BookerName = fmt.Sprintf("member %d", i)
		}
		views := d.Detect(in)
		require.Len(t, views, 1)
		assert.Equal(t, "sq1", views[0].Series.Requester.SquadID)
	})
}

func TestDetect_OrderPreserved(t *testing.T) {
	d := NewDetector(zone, 4)
	series := weekly(4, "r1", "Aysel")
	other := weekly(2, "r1", "Murad")

	in := []model.Booking{other[0], series[0], series[1], other[1], series[2], series[3]}
	views := d.Detect(in)

	require.Len(t, views, 3)
	assert.Equal(t, "Murad-0", views[0].Booking.ID)
	require.True(t, views[1].IsSeries())
	assert.Equal(t, 4, views[1].Series.Count)
	assert.Equal(t, "Murad-1", views[2].Booking.ID)
}

func TestDetect_ExplicitSeries(t *testing.T) {
	d := NewDetector(zone, 4)

	in := weekly(2, "r1", "Aysel")
	for i := range in {
		in[i].SeriesID = "series-1"
	}
	// A legacy row with the same content is not pulled into the stored series.
	legacy := weekly(1, "r1", "Aysel")[0]
	legacy.ID = "legacy"
	in = append(in, legacy)

	views := d.Detect(in)
	require.Len(t, views, 2)
	require.True(t, views[0].IsSeries())
	assert.Equal(t, "series-1", views[0].Series.SeriesID)
	assert.False(t, views[0].Series.Inferred)
	assert.Equal(t, 2, views[0].Series.Count)
	assert.Equal(t, "legacy", views[1].Booking.ID)

	single := weekly(1, "r1", "Aysel")
	single[0].SeriesID = "series-2"
	views = d.Detect(single)
	require.Len(t, views, 1)
	assert.False(t, views[0].IsSeries())
}

func TestDetect_WithoutInference(t *testing.T) {
	d := NewDetector(zone, 4, WithoutInference())
	assert.Len(t, d.Detect(weekly(6, "r1", "Aysel")), 6)
	assert.Empty(t, d.SeriesOnly(weekly(6, "r1", "Aysel")))
}

func TestDetect_Empty(t *testing.T) {
	assert.Empty(t, NewDetector(zone, 4).Detect(nil))
}

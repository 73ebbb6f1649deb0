package booking

import (
	"context"
	"testing"

	"roombook/internal/events"
	"roombook/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWeekStart(t *testing.T) {
	assert.Equal(t, date(t, "2024-01-08"), WeekStart(date(t, "2024-01-08")))
	assert.Equal(t, date(t, "2024-01-08"), WeekStart(date(t, "2024-01-11")))
	assert.Equal(t, date(t, "2024-01-08"), WeekStart(date(t, "2024-01-14")))
}

func TestWeeklyCalendar(t *testing.T) {
	svc := newTestService(t, newMemRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateSingle(ctx, single(t, "2024-01-10", clock(9, 30), clock(11, 0), "Aysel"))
	require.NoError(t, err)
	_, err = svc.CreateSingle(ctx, single(t, "2024-01-17", clock(8, 0), clock(9, 0), "Murad"))
	require.NoError(t, err)

	week, err := svc.WeeklyCalendar(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Equal(t, date(t, "2024-01-08"), week.Start)
	assert.Equal(t, date(t, "2024-01-14"), week.End)
	assert.Len(t, week.Hours, 12)
	require.Len(t, week.Days, 7)
	assert.Equal(t, 1, week.Days[0].Weekday)
	assert.Equal(t, 0, week.Days[6].Weekday)

	wed := week.Days[2]
	booked := map[int]int{}
	for _, s := range wed.Slots {
		booked[s.Hour] = len(s.Bookings)
	}
	assert.Equal(t, map[int]int{8: 0, 9: 1, 10: 1, 11: 0}, map[int]int{8: booked[8], 9: booked[9], 10: booked[10], 11: booked[11]})

	next, err := svc.WeeklyCalendar(ctx, "r1", 1)
	require.NoError(t, err)
	assert.Equal(t, date(t, "2024-01-15"), next.Start)
	require.Len(t, next.Days[2].Slots[0].Bookings, 1)
	assert.Equal(t, "Murad", next.Days[2].Slots[0].Bookings[0].BookerName)

	_, err = svc.WeeklyCalendar(ctx, "missing", 0)
	assert.True(t, IsNotFound(err))
}

func TestRoomStatus(t *testing.T) {
	svc := newTestService(t, newMemRepo(), nil, nil)
	ctx := context.Background()

	// testNow is 07:00 local on 2024-01-08.
	_, err := svc.CreateSingle(ctx, single(t, "2024-01-08", clock(6, 30), clock(7, 30), "Aysel"))
	require.NoError(t, err)
	_, err = svc.CreateSingle(ctx, single(t, "2024-01-08", clock(9, 0), clock(10, 0), "Murad"))
	require.NoError(t, err)

	st, err := svc.RoomStatus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Blue", st.Room.Name)
	require.NotNil(t, st.Active)
	assert.Equal(t, "Aysel", st.Active.BookerName)
	require.Len(t, st.Upcoming, 1)
	assert.Equal(t, "Murad", st.Upcoming[0].BookerName)
}

func TestDirectory(t *testing.T) {
	repo := newMemRepo()
	bus := new(mockPublisher)
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	cache := newMapCache()
	svc := newTestService(t, repo, bus, cache)
	ctx := context.Background()

	rooms, err := svc.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
	assert.Contains(t, cache.data, roomsKey)

	_, err = svc.CreateRoom(ctx, RoomRequest{Name: "Green", Color: "green"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "color")

	room, err := svc.CreateRoom(ctx, RoomRequest{Name: " Green "})
	require.NoError(t, err)
	assert.Equal(t, "Green", room.Name)
	assert.Equal(t, model.DefaultRoomColor, room.Color)
	assert.NotContains(t, cache.data, roomsKey)
	bus.AssertCalled(t, "PublishJSON", events.TypeRoomCreated, mock.Anything)

	_, err = svc.CreateRoom(ctx, RoomRequest{Name: "Green"})
	assert.ErrorIs(t, err, model.ErrDuplicate)

	_, err = svc.CreateSingle(ctx, single(t, "2024-01-10", clock(9, 0), clock(10, 0), "Aysel"))
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteRoom(ctx, "r1"), model.ErrInUse)
	require.NoError(t, svc.DeleteRoom(ctx, room.ID))
	assert.True(t, IsNotFound(svc.DeleteRoom(ctx, room.ID)))

	squad, err := svc.CreateSquad(ctx, SquadRequest{Name: "Owls"})
	require.NoError(t, err)
	squads, err := svc.ListSquads(ctx)
	require.NoError(t, err)
	assert.Len(t, squads, 2)
	require.NoError(t, svc.DeleteSquad(ctx, squad.ID))
	_, err = svc.CreateSquad(ctx, SquadRequest{})
	assert.True(t, IsValidation(err))

	ok, err := svc.IsAdmin(ctx, "boss")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.IsAdmin(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	cache := newMapCache()
	svc := newTestService(t, newMemRepo(), nil, cache)
	ctx := context.Background()

	_, err := svc.ListRoomViews(ctx, "r1")
	require.NoError(t, err)
	_, err = svc.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, cache.data, 2)

	svc.InvalidateAll(ctx)
	assert.Empty(t, cache.data)
}

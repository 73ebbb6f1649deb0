package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"roombook/internal/booking"
	"roombook/internal/db"
	"roombook/internal/model"
	"roombook/internal/tz"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const adminID = "admin-1"

type fixture struct {
	srv  *httptest.Server
	db   *db.DB
	room *model.Room
}

func setupTestServer(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	room := &model.Room{Name: "Blue"}
	require.NoError(t, store.CreateRoom(ctx, room))
	require.NoError(t, store.GrantRole(ctx, adminID, model.RoleAdmin))

	logger := zerolog.New(io.Discard)
	zone := tz.Fixed(tz.DefaultName, tz.DefaultOffset)
	// Monday 2024-01-08 07:00 local.
	now := func() time.Time { return time.Date(2024, 1, 8, 3, 0, 0, 0, time.UTC) }
	svc := booking.NewService(store, zone, nil, nil, booking.Options{Now: now}, &logger)

	server := NewHTTPServer(svc, cfg, &logger)
	server.now = now
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &fixture{srv: ts, db: store, room: room}
}

func (f *fixture) do(t *testing.T, method, path, user string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(DefaultUserHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func singleBody(roomID, day, from, to, who string) map[string]interface{} {
	return map[string]interface{}{
		"room_id":     roomID,
		"booker_name": who,
		"start_date":  day,
		"start_time":  from,
		"end_time":    to,
	}
}

func TestCreateBooking_ConflictScenario(t *testing.T) {
	f := setupTestServer(t, Config{})

	resp := f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody(f.room.ID, "2024-01-10", "09:00", "10:00", "Aysel"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created booking.Result
	decode(t, resp, &created)
	require.Len(t, created.Bookings, 1)

	resp = f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody(f.room.ID, "2024-01-10", "09:30", "10:30", "Murad"))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var conflict map[string]interface{}
	decode(t, resp, &conflict)
	assert.Equal(t, booking.ConflictMessage, conflict["error"])
	assert.Len(t, conflict["conflicts"], 1)

	resp = f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody(f.room.ID, "2024-01-10", "10:00", "11:00", "Murad"))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateBooking_Recurring(t *testing.T) {
	f := setupTestServer(t, Config{})

	body := map[string]interface{}{
		"room_id":     f.room.ID,
		"booker_name": "Team",
		"recurrence": map[string]interface{}{
			"weekdays":   []int{1, 2, 3, 4, 5},
			"start_time": "09:00",
			"end_time":   "10:00",
			"first_date": "2024-01-08",
			"last_date":  "2024-01-14",
		},
	}
	resp := f.do(t, http.MethodPost, "/api/bookings", adminID, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created booking.Result
	decode(t, resp, &created)
	require.Len(t, created.Bookings, 5)
	require.NotNil(t, created.Series)

	resp = f.do(t, http.MethodGet, "/api/rooms/"+f.room.ID+"/bookings", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Items []model.View `json:"items"`
	}
	decode(t, resp, &list)
	require.Len(t, list.Items, 1)
	require.True(t, list.Items[0].IsSeries())
	assert.Equal(t, 5, list.Items[0].Series.Count)

	// The same week again is rejected as a whole.
	resp = f.do(t, http.MethodPost, "/api/bookings", adminID, body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/series/"+created.Series.ID, adminID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deleted map[string]int
	decode(t, resp, &deleted)
	assert.Equal(t, 5, deleted["deleted"])

	resp = f.do(t, http.MethodDelete, "/api/series/"+created.Series.ID, adminID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := setupTestServer(t, Config{})

	resp := f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody(f.room.ID, "2024-01-10", "10:00", "09:00", "Aysel"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, resp, &body)
	assert.Contains(t, body.Fields, "end_time")

	resp = f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody(f.room.ID, "10.01.2024", "09:00", "10:00", "Aysel"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody("missing", "2024-01-10", "09:00", "10:00", "Aysel"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateBooking_MissingTimes(t *testing.T) {
	f := setupTestServer(t, Config{})

	recurring := func() map[string]interface{} {
		return map[string]interface{}{
			"room_id":     f.room.ID,
			"booker_name": "Team",
			"recurrence": map[string]interface{}{
				"weekdays":   []int{1, 2, 3},
				"start_time": "09:00",
				"end_time":   "10:00",
				"first_date": "2024-01-08",
				"last_date":  "2024-01-14",
			},
		}
	}
	cases := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{"single without start", singleBody(f.room.ID, "2024-01-10", "09:00", "10:00", "Aysel"), "start_time"},
		{"single without end", singleBody(f.room.ID, "2024-01-10", "09:00", "10:00", "Aysel"), "end_time"},
		{"recurring without start", recurring(), "start_time"},
		{"recurring without end", recurring(), "end_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec, ok := tc.body["recurrence"].(map[string]interface{}); ok {
				delete(rec, tc.field)
			} else {
				delete(tc.body, tc.field)
			}
			resp := f.do(t, http.MethodPost, "/api/bookings", adminID, tc.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body struct {
				Fields map[string]string `json:"fields"`
			}
			decode(t, resp, &body)
			assert.Equal(t, "is required", body.Fields[tc.field])
		})
	}

	stored, err := f.db.ListBookingsForRoom(context.Background(), f.room.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAdminGate(t *testing.T) {
	f := setupTestServer(t, Config{})

	resp := f.do(t, http.MethodGet, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/bookings", "guest", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/bookings?q=ays", adminID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	f := setupTestServer(t, Config{RateLimit: 0.001, RateBurst: 1})

	resp := f.do(t, http.MethodPost, "/api/squads", adminID, map[string]string{"name": "Owls"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/squads", adminID, map[string]string{"name": "Hawks"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRoomsAndSquads(t *testing.T) {
	f := setupTestServer(t, Config{})

	resp := f.do(t, http.MethodPost, "/api/rooms", adminID, map[string]string{"name": "Green", "color": "#22C55E"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var room model.Room
	decode(t, resp, &room)
	assert.Equal(t, "#22C55E", room.Color)

	resp = f.do(t, http.MethodPost, "/api/rooms", adminID, map[string]string{"name": "Green"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/rooms", "", nil)
	var rooms struct {
		Rooms []model.Room `json:"rooms"`
	}
	decode(t, resp, &rooms)
	assert.Len(t, rooms.Rooms, 2)

	resp = f.do(t, http.MethodGet, "/api/rooms/"+room.ID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody(f.room.ID, "2024-01-10", "09:00", "10:00", "Aysel"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/api/rooms/"+f.room.ID, adminID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/api/rooms/"+room.ID, adminID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/rooms/"+room.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/squads", adminID, map[string]string{"name": "Owls"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var squad model.Squad
	decode(t, resp, &squad)
	resp = f.do(t, http.MethodGet, "/api/squads", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/api/squads/"+squad.ID, adminID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRoomViewsAndExports(t *testing.T) {
	f := setupTestServer(t, Config{})

	// 07:00 local is now; this one is in progress.
	resp := f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody(f.room.ID, "2024-01-08", "06:30", "07:30", "Aysel"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody(f.room.ID, "2024-01-10", "09:00", "10:00", "Murad"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/rooms/"+f.room.ID+"/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st booking.RoomStatus
	decode(t, resp, &st)
	require.NotNil(t, st.Active)
	assert.Equal(t, "Aysel", st.Active.BookerName)
	assert.Len(t, st.Upcoming, 1)

	resp = f.do(t, http.MethodGet, "/api/rooms/"+f.room.ID+"/week?offset=0", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var week booking.Week
	decode(t, resp, &week)
	assert.Equal(t, "2024-01-08", week.Start.String())
	assert.Len(t, week.Days[2].Slots[1].Bookings, 1)

	resp = f.do(t, http.MethodGet, "/api/rooms/"+f.room.ID+"/week?offset=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/rooms/"+f.room.ID+"/calendar.ics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	cal, err := ical.ParseCalendar(resp.Body)
	require.NoError(t, err)
	assert.Len(t, cal.Events(), 2)

	resp = f.do(t, http.MethodGet, "/api/rooms/"+f.room.ID+"/export.xlsx", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	book, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Bookings")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestDeleteBookings(t *testing.T) {
	f := setupTestServer(t, Config{})

	resp := f.do(t, http.MethodPost, "/api/bookings", adminID, singleBody(f.room.ID, "2024-01-10", "09:00", "10:00", "Aysel"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created booking.Result
	decode(t, resp, &created)

	resp = f.do(t, http.MethodDelete, "/api/bookings", adminID, DeleteBookingsRequest{IDs: []string{created.Bookings[0].ID}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/bookings", adminID, DeleteBookingsRequest{IDs: []string{created.Bookings[0].ID}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/bookings", adminID, DeleteBookingsRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

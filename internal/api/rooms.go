package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"roombook/internal/booking"
	"roombook/internal/export"
	"roombook/internal/metrics"
)

// GET /api/rooms
func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("rooms_list")
	rooms, err := s.svc.ListRooms(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

// POST /api/rooms
func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("rooms_create")
	var req booking.RoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	room, err := s.svc.CreateRoom(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// GET /api/rooms/{id}
func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("rooms_get")
	room, err := s.svc.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DELETE /api/rooms/{id}
func (s *HTTPServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("rooms_delete")
	if err := s.svc.DeleteRoom(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/rooms/{id}/bookings
func (s *HTTPServer) handleRoomBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("room_bookings")
	id := r.PathValue("id")
	if _, err := s.svc.GetRoom(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	views, err := s.svc.ListRoomViews(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": views})
}

// GET /api/rooms/{id}/status
func (s *HTTPServer) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("room_status")
	st, err := s.svc.RoomStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /api/rooms/{id}/week?offset=N
func (s *HTTPServer) handleRoomWeek(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("room_week")
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		offset = n
	}
	week, err := s.svc.WeeklyCalendar(r.Context(), r.PathValue("id"), offset)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, week)
}

// GET /api/rooms/{id}/calendar.ics
func (s *HTTPServer) handleRoomCalendar(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("room_calendar")
	room, list, err := s.svc.RoomBookings(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteRoomCalendar(&buf, room, list, s.svc.Zone(), s.now()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", room.Name+".ics"))
	_, _ = w.Write(buf.Bytes())
}

// GET /api/rooms/{id}/export.xlsx
func (s *HTTPServer) handleRoomExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("room_export")
	room, err := s.svc.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	views, err := s.svc.ListRoomViews(r.Context(), room.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteRoomSchedule(&buf, room, views, s.svc.Zone()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", room.Name+".xlsx"))
	_, _ = w.Write(buf.Bytes())
}

// GET /api/squads
func (s *HTTPServer) handleListSquads(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("squads_list")
	squads, err := s.svc.ListSquads(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"squads": squads})
}

// POST /api/squads
func (s *HTTPServer) handleCreateSquad(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("squads_create")
	var req booking.SquadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	squad, err := s.svc.CreateSquad(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, squad)
}

// DELETE /api/squads/{id}
func (s *HTTPServer) handleDeleteSquad(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("squads_delete")
	if err := s.svc.DeleteSquad(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

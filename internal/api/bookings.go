package api

import (
	"net/http"

	"roombook/internal/booking"
	"roombook/internal/metrics"
	"roombook/internal/model"
	"roombook/internal/tz"
)

// CreateBookingRequest is the body of POST /api/bookings. With Recurrence set
// the single-span fields are ignored.
type CreateBookingRequest struct {
	RoomID     string        `json:"room_id"`
	BookerName string        `json:"booker_name,omitempty"`
	SquadID    string        `json:"squad_id,omitempty"`
	StartDate  tz.Date       `json:"start_date"`
	StartTime  *tz.TimeOfDay `json:"start_time"`
	// EndDate defaults to StartDate.
	EndDate    tz.Date            `json:"end_date"`
	EndTime    *tz.TimeOfDay      `json:"end_time"`
	Recurrence *RecurrenceRequest `json:"recurrence,omitempty"`
}

// RecurrenceRequest is the weekly pattern inside CreateBookingRequest.
type RecurrenceRequest struct {
	Weekdays  []int         `json:"weekdays"`
	StartTime *tz.TimeOfDay `json:"start_time"`
	EndTime   *tz.TimeOfDay `json:"end_time"`
	FirstDate tz.Date       `json:"first_date"`
	LastDate  tz.Date       `json:"last_date"`
}

// DeleteBookingsRequest is the body of DELETE /api/bookings.
type DeleteBookingsRequest struct {
	IDs []string `json:"ids"`
}

// GET /api/bookings?q=
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_list")
	views, err := s.svc.ListUpcoming(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": views})
}

// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_create")
	var req CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	who := model.Requester{Name: req.BookerName, SquadID: req.SquadID}

	var (
		res *booking.Result
		err error
	)
	if req.Recurrence != nil {
		rec := req.Recurrence
		res, err = s.svc.CreateRecurring(r.Context(), booking.RecurringRequest{
			RoomID:    req.RoomID,
			Requester: who,
			Weekdays:  rec.Weekdays,
			StartTime: rec.StartTime,
			EndTime:   rec.EndTime,
			FirstDate: rec.FirstDate,
			LastDate:  rec.LastDate,
		})
	} else {
		if req.EndDate.IsZero() {
			req.EndDate = req.StartDate
		}
		res, err = s.svc.CreateSingle(r.Context(), booking.SingleRequest{
			RoomID:    req.RoomID,
			Requester: who,
			StartDate: req.StartDate,
			StartTime: req.StartTime,
			EndDate:   req.EndDate,
			EndTime:   req.EndTime,
		})
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// DELETE /api/bookings
func (s *HTTPServer) handleDeleteBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_delete")
	var req DeleteBookingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	n, err := s.svc.DeleteBookings(r.Context(), req.IDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// DELETE /api/series/{id}
func (s *HTTPServer) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("series_delete")
	n, err := s.svc.DeleteSeries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// Package api exposes the booking service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"roombook/internal/booking"
	"roombook/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultUserHeader carries the caller's user id.
const DefaultUserHeader = "X-User-ID"

// Config tunes the HTTP layer.
type Config struct {
	Addr        string
	UserHeader  string
	RateLimit   float64
	RateBurst   int
	CORSOrigins []string
}

// HTTPServer serves the REST API.
type HTTPServer struct {
	svc      *booking.Service
	cfg      Config
	log      zerolog.Logger
	server   *http.Server
	now      func() time.Time
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPServer builds the server and its routes.
func NewHTTPServer(svc *booking.Service, cfg Config, logger *zerolog.Logger) *HTTPServer {
	if cfg.UserHeader == "" {
		cfg.UserHeader = DefaultUserHeader
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	s := &HTTPServer{
		svc:      svc,
		cfg:      cfg,
		log:      logger.With().Str("component", "api").Logger(),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("POST /api/rooms", s.admin(s.handleCreateRoom))
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGetRoom)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.admin(s.handleDeleteRoom))
	mux.HandleFunc("GET /api/rooms/{id}/bookings", s.handleRoomBookings)
	mux.HandleFunc("GET /api/rooms/{id}/status", s.handleRoomStatus)
	mux.HandleFunc("GET /api/rooms/{id}/week", s.handleRoomWeek)
	mux.HandleFunc("GET /api/rooms/{id}/calendar.ics", s.handleRoomCalendar)
	mux.HandleFunc("GET /api/rooms/{id}/export.xlsx", s.handleRoomExport)
	mux.HandleFunc("GET /api/squads", s.handleListSquads)
	mux.HandleFunc("POST /api/squads", s.admin(s.handleCreateSquad))
	mux.HandleFunc("DELETE /api/squads/{id}", s.admin(s.handleDeleteSquad))
	mux.HandleFunc("GET /api/bookings", s.admin(s.handleListBookings))
	mux.HandleFunc("POST /api/bookings", s.admin(s.handleCreateBooking))
	mux.HandleFunc("DELETE /api/bookings", s.admin(s.handleDeleteBookings))
	mux.HandleFunc("DELETE /api/series/{id}", s.admin(s.handleDeleteSeries))

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.cors(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("HTTP API listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// admin requires the caller to hold the admin role. Mutations are rate limited per user.
func (s *HTTPServer) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(s.cfg.UserHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+s.cfg.UserHeader+" header")
			return
		}
		ok, err := s.svc.IsAdmin(r.Context(), userID)
		if err != nil {
			s.log.Error().Err(err).Msg("role check failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		if r.Method != http.MethodGet && !s.limiter(userID).Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func (s *HTTPServer) limiter(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
		s.limiters[userID] = l
	}
	return l
}

func (s *HTTPServer) cors(next http.Handler) http.Handler {
	if len(s.cfg.CORSOrigins) == 0 {
		return next
	}
	allowed := make(map[string]bool, len(s.cfg.CORSOrigins))
	for _, o := range s.cfg.CORSOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed["*"] || allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+s.cfg.UserHeader)
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeServiceError maps service errors onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var verr *booking.ValidationError
	var cerr *booking.ConflictError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.As(err, &cerr):
		body := map[string]interface{}{"error": booking.ConflictMessage}
		if len(cerr.Conflicts) > 0 {
			body["conflicts"] = cerr.Conflicts
		}
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrInUse):
		writeError(w, http.StatusConflict, "still referenced by bookings")
	case errors.Is(err, model.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

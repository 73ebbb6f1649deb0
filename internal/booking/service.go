package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"roombook/internal/conflict"
	"roombook/internal/events"
	"roombook/internal/metrics"
	"roombook/internal/model"
	"roombook/internal/recurrence"
	"roombook/internal/series"
	"roombook/internal/tz"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	SeriesThreshold int
	// DisableInference stops grouping bookings that have no stored series.
	DisableInference bool
	MaxOccurrences   int
	FirstHour        int
	LastHour         int
	Now              func() time.Time
}

// Service implements booking creation, listing and deletion for rooms.
type Service struct {
	repo      Repository
	zone      *tz.Zone
	expander  *recurrence.Materializer
	detector  *series.Detector
	bus       EventPublisher
	cache     Cache
	now       func() time.Time
	firstHour int
	lastHour  int
	logger    zerolog.Logger
}

// NewService wires a Service. bus and cache may be nil.
func NewService(repo Repository, zone *tz.Zone, bus EventPublisher, cache Cache, opts Options, logger *zerolog.Logger) *Service {
	var detectorOpts []series.Option
	if opts.DisableInference {
		detectorOpts = append(detectorOpts, series.WithoutInference())
	}
	if bus == nil {
		bus = nopPublisher{}
	}
	if cache == nil {
		cache = nopCache{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FirstHour <= 0 {
		opts.FirstHour = DefaultFirstHour
	}
	if opts.LastHour <= 0 || opts.LastHour < opts.FirstHour {
		opts.LastHour = DefaultLastHour
	}
	return &Service{
		repo:      repo,
		zone:      zone,
		expander:  recurrence.New(zone, opts.MaxOccurrences),
		detector:  series.NewDetector(zone, opts.SeriesThreshold, detectorOpts...),
		bus:       bus,
		cache:     cache,
		now:       opts.Now,
		firstHour: opts.FirstHour,
		lastHour:  opts.LastHour,
		logger:    logger.With().Str("component", "booking").Logger(),
	}
}

// Zone returns the zone the service reads wall-clock times in.
func (s *Service) Zone() *tz.Zone { return s.zone }

// SingleRequest books one span given as local wall-clock dates and times.
// A nil time was not supplied; midnight is a valid value and is not assumed.
type SingleRequest struct {
	RoomID    string
	Requester model.Requester
	StartDate tz.Date
	StartTime *tz.TimeOfDay
	EndDate   tz.Date
	EndTime   *tz.TimeOfDay
}

// RecurringRequest books every occurrence of a weekly pattern.
// Weekdays use 0=Sunday through 6=Saturday; LastDate is inclusive.
type RecurringRequest struct {
	RoomID    string
	Requester model.Requester
	Weekdays  []int
	StartTime *tz.TimeOfDay
	EndTime   *tz.TimeOfDay
	FirstDate tz.Date
	LastDate  tz.Date
}

func (r RecurringRequest) spec() model.RecurrenceSpec {
	return model.RecurrenceSpec{
		Weekdays:  r.Weekdays,
		StartTime: *r.StartTime,
		EndTime:   *r.EndTime,
		FirstDate: r.FirstDate,
		LastDate:  r.LastDate,
	}
}

// Result is the outcome of a successful creation.
type Result struct {
	Bookings []model.Booking      `json:"bookings"`
	Series   *model.BookingSeries `json:"series,omitempty"`
}

// CreateSingle validates and stores one booking.
func (s *Service) CreateSingle(ctx context.Context, req SingleRequest) (*Result, error) {
	verr := newValidationError()
	s.validateCommon(req.RoomID, req.Requester, verr)
	if req.StartDate.IsZero() {
		verr.Add("start_date", "is required")
	}
	if req.EndDate.IsZero() {
		verr.Add("end_date", "is required")
	}
	requireTimes(req.StartTime, req.EndTime, verr)
	if verr.HasErrors() {
		return nil, verr
	}

	iv := model.Interval{
		Start: s.zone.At(req.StartDate, *req.StartTime),
		End:   s.zone.At(req.EndDate, *req.EndTime),
	}
	if !iv.Valid() {
		verr.Add("end_time", "end must be after start")
		return nil, verr
	}
	if err := s.checkReferences(ctx, req.RoomID, req.Requester); err != nil {
		return nil, err
	}

	created, err := s.create(ctx, req.RoomID, req.Requester, []model.Interval{iv}, nil)
	if err != nil {
		return nil, err
	}
	metrics.IncBookingsCreated("single", len(created))
	s.logger.Info().Str("room_id", req.RoomID).Str("booking_id", created[0].ID).Msg("booking created")
	return &Result{Bookings: created}, nil
}

// CreateRecurring expands the pattern and stores every occurrence in one
// all-or-nothing batch. Any conflict rejects the whole series.
func (s *Service) CreateRecurring(ctx context.Context, req RecurringRequest) (*Result, error) {
	verr := newValidationError()
	s.validateCommon(req.RoomID, req.Requester, verr)
	requireTimes(req.StartTime, req.EndTime, verr)
	if verr.HasErrors() {
		return nil, verr
	}
	spec := req.spec()
	if err := recurrence.Validate(spec); err != nil {
		verr.Add(recurrenceField(err), err.Error())
		return nil, verr
	}

	intervals, err := s.expander.Materialize(spec)
	if err != nil {
		verr.Add(recurrenceField(err), err.Error())
		return nil, verr
	}
	if len(intervals) == 0 {
		verr.Add("recurrence", "no dates in range match the selected weekdays")
		return nil, verr
	}
	for _, iv := range intervals {
		if !iv.Valid() {
			verr.Add("recurrence", "generated an empty interval")
			return nil, verr
		}
	}
	if conflict.SelfOverlaps(intervals) {
		verr.Add("recurrence", "occurrences overlap each other")
		return nil, verr
	}
	if err := s.checkReferences(ctx, req.RoomID, req.Requester); err != nil {
		return nil, err
	}

	rule, err := s.expander.Rule(spec)
	if err != nil {
		verr.Add("recurrence", err.Error())
		return nil, verr
	}
	ser := &model.BookingSeries{
		ID:        uuid.NewString(),
		RoomID:    req.RoomID,
		Requester: req.Requester,
		Weekdays:  recurrence.NormalizeWeekdays(spec.Weekdays),
		StartTime: spec.StartTime,
		EndTime:   spec.EndTime,
		FirstDate: spec.FirstDate,
		LastDate:  spec.LastDate,
		RRule:     rule,
	}

	created, err := s.create(ctx, req.RoomID, req.Requester, intervals, ser)
	if err != nil {
		return nil, err
	}
	metrics.IncBookingsCreated("recurring", len(created))
	s.logger.Info().
		Str("room_id", req.RoomID).
		Str("series_id", ser.ID).
		Int("count", len(created)).
		Msg("recurring bookings created")
	return &Result{Bookings: created, Series: ser}, nil
}

func (s *Service) create(ctx context.Context, roomID string, who model.Requester, intervals []model.Interval, ser *model.BookingSeries) ([]model.Booking, error) {
	from := intervals[0].Start
	for _, iv := range intervals[1:] {
		if iv.Start.Before(from) {
			from = iv.Start
		}
	}

	existing, err := s.repo.ListBookingsForRoom(ctx, roomID, from)
	if err != nil {
		return nil, storeError("list bookings", err)
	}
	if found := conflict.Find(intervals, existing); len(found) > 0 {
		metrics.IncConflict("precheck")
		s.logger.Info().Str("room_id", roomID).Int("conflicts", len(found)).Msg("booking rejected by pre-check")
		return nil, &ConflictError{Conflicts: found}
	}

	created, err := s.repo.InsertBookings(ctx, model.BookingBatch{
		RoomID:    roomID,
		Requester: who,
		Intervals: intervals,
		Series:    ser,
	})
	if err != nil {
		err = storeError("insert bookings", err)
		if IsConflict(err) {
			metrics.IncConflict("storage")
			s.logger.Warn().Str("room_id", roomID).Msg("booking rejected by storage after pre-check")
		} else {
			s.logger.Error().Err(err).Str("room_id", roomID).Msg("insert bookings failed")
		}
		return nil, err
	}

	s.invalidateRooms(ctx, roomID)
	change := events.BookingChange{RoomIDs: []string{roomID}, BookingIDs: bookingIDs(created), Count: len(created)}
	if ser != nil {
		change.SeriesID = ser.ID
	}
	s.publish(events.TypeBookingsCreated, change)
	return created, nil
}

func (s *Service) validateCommon(roomID string, who model.Requester, verr *ValidationError) {
	if strings.TrimSpace(roomID) == "" {
		verr.Add("room_id", "is required")
	}
	if strings.TrimSpace(who.Name) == "" && strings.TrimSpace(who.SquadID) == "" {
		verr.Add("booker_name", "booker name or squad is required")
	}
}

func (s *Service) checkReferences(ctx context.Context, roomID string, who model.Requester) error {
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return storeError("get room", err)
	}
	if who.SquadID != "" {
		if _, err := s.repo.GetSquad(ctx, who.SquadID); err != nil {
			if IsNotFound(err) {
				verr := newValidationError()
				verr.Add("squad_id", "unknown squad")
				return verr
			}
			return storeError("get squad", err)
		}
	}
	return nil
}

func requireTimes(start, end *tz.TimeOfDay, verr *ValidationError) {
	if start == nil {
		verr.Add("start_time", "is required")
	}
	if end == nil {
		verr.Add("end_time", "is required")
	}
}

func recurrenceField(err error) string {
	switch {
	case errors.Is(err, recurrence.ErrInvalidTimeRange):
		return "end_time"
	case errors.Is(err, recurrence.ErrNoWeekdays), errors.Is(err, recurrence.ErrInvalidWeekday):
		return "weekdays"
	case errors.Is(err, recurrence.ErrMissingDates):
		return "dates"
	default:
		return "recurrence"
	}
}

// roomViews is the cached form of a room's display list. ValidUntil is the
// earliest end among the listed bookings; past it the list is rebuilt.
type roomViews struct {
	Views      []model.View `json:"views"`
	ValidUntil time.Time    `json:"valid_until"`
}

func (v *roomViews) fresh(now time.Time) bool {
	return v.ValidUntil.IsZero() || now.Before(v.ValidUntil)
}

// ListRoomViews returns the room's bookings that have not ended, grouped into series.
func (s *Service) ListRoomViews(ctx context.Context, roomID string) ([]model.View, error) {
	key := roomViewsKey(roomID)
	now := s.now()
	var cached roomViews
	if s.cache.GetJSON(ctx, key, &cached) && cached.fresh(now) {
		return cached.Views, nil
	}

	list, err := s.repo.ListBookingsForRoom(ctx, roomID, now)
	if err != nil {
		return nil, storeError("list bookings", err)
	}
	entry := roomViews{Views: s.detector.Detect(list)}
	for _, b := range list {
		if entry.ValidUntil.IsZero() || b.End.Before(entry.ValidUntil) {
			entry.ValidUntil = b.End
		}
	}
	s.cache.SetJSON(ctx, key, entry)
	return entry.Views, nil
}

// ListUpcoming returns bookings of all rooms starting from now, grouped into series
// and filtered by a case-insensitive match on booker, squad or room name.
func (s *Service) ListUpcoming(ctx context.Context, query string) ([]model.View, error) {
	list, err := s.repo.ListUpcomingBookings(ctx, s.now())
	if err != nil {
		return nil, storeError("list upcoming bookings", err)
	}
	views := s.detector.Detect(list)

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return views, nil
	}
	out := make([]model.View, 0, len(views))
	for _, v := range views {
		if matchesQuery(v, q) {
			out = append(out, v)
		}
	}
	return out, nil
}

func matchesQuery(v model.View, q string) bool {
	var fields []string
	if v.Series != nil {
		fields = []string{v.Series.Requester.Name, v.Series.SquadName, v.Series.RoomName}
	} else if v.Booking != nil {
		fields = []string{v.Booking.BookerName, v.Booking.SquadName, v.Booking.RoomName}
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// RoomBookings returns the room with its bookings that have not ended.
func (s *Service) RoomBookings(ctx context.Context, roomID string) (*model.Room, []model.Booking, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, storeError("get room", err)
	}
	list, err := s.repo.ListBookingsForRoom(ctx, roomID, s.now())
	if err != nil {
		return nil, nil, storeError("list bookings", err)
	}
	return room, list, nil
}

// DetectSeries groups an arbitrary booking list with the service's detector.
func (s *Service) DetectSeries(list []model.Booking) []model.SeriesView {
	return s.detector.SeriesOnly(list)
}

// DeleteBookings removes bookings by id; deleting a detected series passes all member ids.
func (s *Service) DeleteBookings(ctx context.Context, ids []string) (int, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		verr := newValidationError()
		verr.Add("ids", "at least one booking id is required")
		return 0, verr
	}

	removed, err := s.repo.DeleteBookings(ctx, ids)
	if err != nil {
		return 0, storeError("delete bookings", err)
	}
	if len(removed) == 0 {
		return 0, ErrNotFound
	}
	s.afterDelete(ctx, removed, "")
	return len(removed), nil
}

// DeleteSeries removes a stored series and all of its bookings.
func (s *Service) DeleteSeries(ctx context.Context, seriesID string) (int, error) {
	if strings.TrimSpace(seriesID) == "" {
		verr := newValidationError()
		verr.Add("series_id", "is required")
		return 0, verr
	}
	removed, err := s.repo.DeleteSeries(ctx, seriesID)
	if err != nil {
		return 0, storeError("delete series", err)
	}
	s.afterDelete(ctx, removed, seriesID)
	return len(removed), nil
}

func (s *Service) afterDelete(ctx context.Context, removed []model.Booking, seriesID string) {
	rooms := make([]string, 0)
	seen := make(map[string]bool)
	for _, b := range removed {
		if !seen[b.RoomID] {
			seen[b.RoomID] = true
			rooms = append(rooms, b.RoomID)
		}
	}
	s.invalidateRooms(ctx, rooms...)
	metrics.IncBookingsDeleted(len(removed))
	s.publish(events.TypeBookingsDeleted, events.BookingChange{
		RoomIDs:    rooms,
		BookingIDs: bookingIDs(removed),
		SeriesID:   seriesID,
		Count:      len(removed),
	})
	s.logger.Info().Int("count", len(removed)).Strs("rooms", rooms).Msg("bookings deleted")
}

func (s *Service) publish(eventType string, change events.BookingChange) {
	change.At = s.now()
	if err := s.bus.PublishJSON(eventType, change); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}

func (s *Service) invalidateRooms(ctx context.Context, roomIDs ...string) {
	keys := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		keys = append(keys, roomViewsKey(id))
	}
	if len(keys) > 0 {
		s.cache.Delete(ctx, keys...)
	}
}

func roomViewsKey(roomID string) string {
	return "room:" + roomID + ":views"
}

func bookingIDs(list []model.Booking) []string {
	out := make([]string, 0, len(list))
	for _, b := range list {
		out = append(out, b.ID)
	}
	return out
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

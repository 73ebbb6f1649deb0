package booking

import (
	"context"
	"regexp"
	"strings"

	"roombook/internal/events"
	"roombook/internal/model"
)

const roomsKey = "rooms"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// RoomRequest creates a room.
type RoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// SquadRequest creates a squad.
type SquadRequest struct {
	Name string `json:"name"`
}

// ListRooms returns every room ordered by name.
func (s *Service) ListRooms(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if s.cache.GetJSON(ctx, roomsKey, &rooms) {
		return rooms, nil
	}
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, storeError("list rooms", err)
	}
	s.cache.SetJSON(ctx, roomsKey, rooms)
	return rooms, nil
}

// GetRoom returns one room.
func (s *Service) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, storeError("get room", err)
	}
	return room, nil
}

// CreateRoom validates and stores a room. An empty color selects the default.
func (s *Service) CreateRoom(ctx context.Context, req RoomRequest) (*model.Room, error) {
	verr := newValidationError()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		verr.Add("name", "is required")
	}
	color := strings.TrimSpace(req.Color)
	if color != "" && !colorPattern.MatchString(color) {
		verr.Add("color", "must look like #RRGGBB")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	room := &model.Room{Name: name, Description: strings.TrimSpace(req.Description), Color: color}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, storeError("create room", err)
	}
	s.cache.Delete(ctx, roomsKey)
	s.publishDirectory(events.TypeRoomCreated, room.ID, room.Name)
	s.logger.Info().Str("room_id", room.ID).Str("name", room.Name).Msg("room created")
	return room, nil
}

// DeleteRoom removes a room without bookings.
func (s *Service) DeleteRoom(ctx context.Context, id string) error {
	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		return storeError("delete room", err)
	}
	s.cache.Delete(ctx, roomsKey, roomViewsKey(id))
	s.publishDirectory(events.TypeRoomDeleted, id, "")
	s.logger.Info().Str("room_id", id).Msg("room deleted")
	return nil
}

// ListSquads returns every squad ordered by name.
func (s *Service) ListSquads(ctx context.Context) ([]model.Squad, error) {
	squads, err := s.repo.ListSquads(ctx)
	if err != nil {
		return nil, storeError("list squads", err)
	}
	return squads, nil
}

// CreateSquad stores a squad.
func (s *Service) CreateSquad(ctx context.Context, req SquadRequest) (*model.Squad, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		verr := newValidationError()
		verr.Add("name", "is required")
		return nil, verr
	}
	squad := &model.Squad{Name: name}
	if err := s.repo.CreateSquad(ctx, squad); err != nil {
		return nil, storeError("create squad", err)
	}
	s.publishDirectory(events.TypeSquadCreated, squad.ID, squad.Name)
	return squad, nil
}

// DeleteSquad removes a squad no booking refers to.
func (s *Service) DeleteSquad(ctx context.Context, id string) error {
	if err := s.repo.DeleteSquad(ctx, id); err != nil {
		return storeError("delete squad", err)
	}
	s.publishDirectory(events.TypeSquadDeleted, id, "")
	return nil
}

// IsAdmin reports whether userID holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, nil
	}
	ok, err := s.repo.HasRole(ctx, userID, model.RoleAdmin)
	if err != nil {
		return false, storeError("check role", err)
	}
	return ok, nil
}

// InvalidateAll drops every cached read model.
func (s *Service) InvalidateAll(ctx context.Context) {
	keys := []string{roomsKey}
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("list rooms for cache invalidation failed")
	}
	for _, r := range rooms {
		keys = append(keys, roomViewsKey(r.ID))
	}
	s.cache.Delete(ctx, keys...)
}

func (s *Service) publishDirectory(eventType, id, name string) {
	change := events.DirectoryChange{ID: id, Name: name, At: s.now()}
	if err := s.bus.PublishJSON(eventType, change); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}

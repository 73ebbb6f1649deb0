package booking

import (
	"context"
	"time"

	"roombook/internal/model"
)

// BookingRepository is the storage boundary for bookings. The store is the final
// authority on overlaps and reports them as model.ErrOverlap.
type BookingRepository interface {
	// ListBookingsForRoom returns bookings with end >= from, ascending by start.
	ListBookingsForRoom(ctx context.Context, roomID string, from time.Time) ([]model.Booking, error)
	// ListBookingsInRange returns bookings of the room intersecting [from, to).
	ListBookingsInRange(ctx context.Context, roomID string, from, to time.Time) ([]model.Booking, error)
	// ListUpcomingBookings returns bookings of every room with start >= from.
	ListUpcomingBookings(ctx context.Context, from time.Time) ([]model.Booking, error)
	// InsertBookings stores the whole batch or nothing.
	InsertBookings(ctx context.Context, batch model.BookingBatch) ([]model.Booking, error)
	// DeleteBookings removes rows by id and returns what was removed.
	DeleteBookings(ctx context.Context, ids []string) ([]model.Booking, error)
	// DeleteSeries removes a stored series with all its members.
	DeleteSeries(ctx context.Context, seriesID string) ([]model.Booking, error)
}

// DirectoryRepository stores rooms, squads and roles.
type DirectoryRepository interface {
	ListRooms(ctx context.Context) ([]model.Room, error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	CreateRoom(ctx context.Context, room *model.Room) error
	DeleteRoom(ctx context.Context, id string) error
	ListSquads(ctx context.Context) ([]model.Squad, error)
	GetSquad(ctx context.Context, id string) (*model.Squad, error)
	CreateSquad(ctx context.Context, squad *model.Squad) error
	DeleteSquad(ctx context.Context, id string) error
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// Repository is everything the service needs from storage.
type Repository interface {
	BookingRepository
	DirectoryRepository
}

// EventPublisher receives change notifications.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Cache stores JSON-encodable read models. Misses and failures are equivalent.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) bool
	SetJSON(ctx context.Context, key string, v interface{})
	Delete(ctx context.Context, keys ...string)
}

type nopCache struct{}

func (nopCache) GetJSON(context.Context, string, interface{}) bool { return false }
func (nopCache) SetJSON(context.Context, string, interface{})      {}
func (nopCache) Delete(context.Context, ...string)                 {}

type nopPublisher struct{}

func (nopPublisher) PublishJSON(string, interface{}) error { return nil }

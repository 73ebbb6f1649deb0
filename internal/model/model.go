package model

import (
	"errors"
	"time"
)

// DefaultRoomColor is applied to rooms created without a color.
const DefaultRoomColor = "#3B82F6"

// RoleAdmin grants access to booking management.
const RoleAdmin = "admin"

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOverlap is returned by storage when an insert would overlap an existing booking.
	ErrOverlap = errors.New("booking overlaps an existing reservation")
	// ErrInUse is returned when a row can't be deleted because bookings reference it.
	ErrInUse = errors.New("referenced by existing bookings")
	// ErrDuplicate is returned on unique key violations.
	ErrDuplicate = errors.New("already exists")
)

// Room is a bookable space.
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
}

// Squad is a group that can hold bookings under its own name.
type Squad struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRole assigns a role to an external user id.
type UserRole struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Requester identifies who holds a booking: a free-text name, a squad, or both.
type Requester struct {
	Name    string `json:"booker_name,omitempty"`
	SquadID string `json:"squad_id,omitempty"`
}

// Key is the identity used for grouping. A squad outranks the free-text name.
func (r Requester) Key() string {
	if r.SquadID != "" {
		return "squad:" + r.SquadID
	}
	return "name:" + r.Name
}

// IsZero reports whether no identity is set.
func (r Requester) IsZero() bool {
	return r.Name == "" && r.SquadID == ""
}

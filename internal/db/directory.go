package db

import (
	"context"
	"fmt"
	"time"

	"roombook/internal/model"

	"github.com/google/uuid"
)

// ListRooms returns all rooms ordered by name.
func (db *DB) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, name, description, color, created_at FROM rooms ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]model.Room, 0)
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// GetRoom returns a room by id.
func (db *DB) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	r, err := scanRoom(db.QueryRowContext(ctx,
		"SELECT id, name, description, color, created_at FROM rooms WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", id, translateError(err))
	}
	return &r, nil
}

func scanRoom(row rowScanner) (model.Room, error) {
	var r model.Room
	var createdAt string
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Color, &createdAt); err != nil {
		return r, err
	}
	var err error
	r.CreatedAt, err = parseTime(createdAt)
	return r, err
}

// CreateRoom inserts a room, assigning an id when empty.
func (db *DB) CreateRoom(ctx context.Context, room *model.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Color == "" {
		room.Color = model.DefaultRoomColor
	}
	room.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := db.ExecContext(ctx,
		"INSERT INTO rooms (id, name, description, color, created_at) VALUES (?, ?, ?, ?, ?)",
		room.ID, room.Name, room.Description, room.Color, formatTime(room.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create room %q: %w", room.Name, translateError(err))
	}
	return nil
}

// DeleteRoom removes a room. Rooms still referenced by bookings are kept and ErrInUse is returned.
func (db *DB) DeleteRoom(ctx context.Context, id string) error {
	return db.deleteByID(ctx, "rooms", id)
}

// ListSquads returns all squads ordered by name.
func (db *DB) ListSquads(ctx context.Context) ([]model.Squad, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, name, created_at FROM squads ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list squads: %w", err)
	}
	defer rows.Close()

	squads := make([]model.Squad, 0)
	for rows.Next() {
		s, err := scanSquad(rows)
		if err != nil {
			return nil, err
		}
		squads = append(squads, s)
	}
	return squads, rows.Err()
}

// GetSquad returns a squad by id.
func (db *DB) GetSquad(ctx context.Context, id string) (*model.Squad, error) {
	s, err := scanSquad(db.QueryRowContext(ctx, "SELECT id, name, created_at FROM squads WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("squad %s: %w", id, translateError(err))
	}
	return &s, nil
}

func scanSquad(row rowScanner) (model.Squad, error) {
	var s model.Squad
	var createdAt string
	if err := row.Scan(&s.ID, &s.Name, &createdAt); err != nil {
		return s, err
	}
	var err error
	s.CreatedAt, err = parseTime(createdAt)
	return s, err
}

// CreateSquad inserts a squad, assigning an id when empty.
func (db *DB) CreateSquad(ctx context.Context, squad *model.Squad) error {
	if squad.ID == "" {
		squad.ID = uuid.NewString()
	}
	squad.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := db.ExecContext(ctx,
		"INSERT INTO squads (id, name, created_at) VALUES (?, ?, ?)",
		squad.ID, squad.Name, formatTime(squad.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create squad %q: %w", squad.Name, translateError(err))
	}
	return nil
}

// DeleteSquad removes a squad that no booking references.
func (db *DB) DeleteSquad(ctx context.Context, id string) error {
	return db.deleteByID(ctx, "squads", id)
}

func (db *DB) deleteByID(ctx context.Context, table, id string) error {
	res, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, translateError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, model.ErrNotFound)
	}
	return nil
}

// HasRole checks if a user holds role.
func (db *DB) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = ?",
		userID, role,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GrantRole assigns role to a user; granting twice is a no-op.
func (db *DB) GrantRole(ctx context.Context, userID, role string) error {
	_, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_roles (user_id, role, created_at) VALUES (?, ?, ?)",
		userID, role, formatTime(time.Now()),
	)
	return err
}

// RevokeRole removes role from a user.
func (db *DB) RevokeRole(ctx context.Context, userID, role string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = ? AND role = ?", userID, role)
	return err
}

// ListRoles returns all role assignments.
func (db *DB) ListRoles(ctx context.Context) ([]model.UserRole, error) {
	rows, err := db.QueryContext(ctx, "SELECT user_id, role, created_at FROM user_roles ORDER BY created_at, user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []model.UserRole
	for rows.Next() {
		var r model.UserRole
		var createdAt string
		if err := rows.Scan(&r.UserID, &r.Role, &createdAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"roombook/internal/config"
	"roombook/internal/model"

	"github.com/google/uuid"
)

// SyncStats reports what SyncFromConfig changed.
type SyncStats struct {
	RoomsCreated  int
	RoomsUpdated  int
	SquadsCreated int
	AdminsGranted int
}

// SyncFromConfig applies rooms.yaml to the database. Rooms and squads are matched
// by name: missing ones are created and room description and color are refreshed.
// Rows absent from the file are left alone since bookings may reference them.
func (db *DB) SyncFromConfig(ctx context.Context, cfg *config.RoomsConfig, extraAdmins []string) (SyncStats, error) {
	var stats SyncStats
	if cfg == nil {
		return stats, fmt.Errorf("rooms config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	for _, r := range cfg.Rooms {
		name := strings.TrimSpace(r.Name)
		color := r.Color
		if color == "" {
			color = model.DefaultRoomColor
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE rooms SET description = ?, color = ?
			WHERE name = ? AND (description != ? OR color != ?)`,
			r.Description, color, name, r.Description, color,
		)
		if err != nil {
			return stats, fmt.Errorf("sync room %q: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.RoomsUpdated++
			continue
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO rooms (id, name, description, color, created_at)
			VALUES (?, ?, ?, ?, ?) ON CONFLICT(name) DO NOTHING`,
			uuid.NewString(), name, r.Description, color, now,
		)
		if err != nil {
			return stats, fmt.Errorf("sync room %q: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.RoomsCreated++
		}
	}

	for _, s := range cfg.Squads {
		name := strings.TrimSpace(s.Name)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO squads (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
			uuid.NewString(), name, now,
		)
		if err != nil {
			return stats, fmt.Errorf("sync squad %q: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.SquadsCreated++
		}
	}

	admins := append(append([]string(nil), cfg.Admins...), extraAdmins...)
	for _, userID := range admins {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		res, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO user_roles (user_id, role, created_at) VALUES (?, ?, ?)",
			userID, model.RoleAdmin, now,
		)
		if err != nil {
			return stats, fmt.Errorf("grant admin %s: %w", userID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.AdminsGranted++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit sync: %w", err)
	}
	return stats, nil
}

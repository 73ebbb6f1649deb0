// Package db is the SQLite store for rooms, squads, roles and bookings.
// The overlap invariant is enforced inside SQLite by a trigger, so it holds
// even when two requests pass the service pre-check at the same time.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"roombook/internal/model"

	"github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so that text comparison in SQL orders instants correctly.
const timeLayout = "2006-01-02T15:04:05.000Z"

const overlapMarker = "booking_overlap"

// DB wraps sql.DB for the room booking store.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '` + model.DefaultRoomColor + `',
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS squads (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_roles (
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (user_id, role)
		)`,

		// A recurring creation; member bookings point here through series_id.
		`CREATE TABLE IF NOT EXISTS booking_series (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE RESTRICT,
			booker_name TEXT NOT NULL DEFAULT '',
			squad_id TEXT REFERENCES squads(id) ON DELETE RESTRICT,
			weekdays TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			first_date TEXT NOT NULL,
			last_date TEXT NOT NULL,
			rrule TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE RESTRICT,
			booker_name TEXT NOT NULL DEFAULT '',
			squad_id TEXT REFERENCES squads(id) ON DELETE RESTRICT,
			series_id TEXT REFERENCES booking_series(id) ON DELETE CASCADE,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			created_at TEXT NOT NULL,
			CHECK (start_time < end_time)
		)`,

		// Storage-side exclusion constraint: no two bookings of a room may overlap.
		`CREATE TRIGGER IF NOT EXISTS bookings_no_overlap
		BEFORE INSERT ON bookings
		BEGIN
			SELECT RAISE(ABORT, '` + overlapMarker + `')
			WHERE EXISTS (
				SELECT 1 FROM bookings
				WHERE room_id = NEW.room_id
				  AND start_time < NEW.end_time
				  AND end_time > NEW.start_time
			);
		END`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_room_times ON bookings(room_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_start ON bookings(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_series ON bookings(series_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// translateError maps SQLite constraint failures onto model sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if strings.Contains(err.Error(), overlapMarker) {
		return fmt.Errorf("%w: %v", model.ErrOverlap, err)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", model.ErrDuplicate, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", model.ErrInUse, err)
		}
	}
	return err
}

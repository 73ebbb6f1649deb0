package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"roombook/internal/model"

	"github.com/google/uuid"
)

const bookingColumns = `
	b.id, b.room_id, b.booker_name, b.squad_id, b.series_id,
	b.start_time, b.end_time, b.created_at,
	r.name, r.color, COALESCE(s.name, '')`

const bookingJoins = `
	FROM bookings b
	JOIN rooms r ON r.id = b.room_id
	LEFT JOIN squads s ON s.id = b.squad_id`

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanBooking(row rowScanner) (model.Booking, error) {
	var (
		b                     model.Booking
		squadID, seriesID     sql.NullString
		start, end, createdAt string
	)
	err := row.Scan(
		&b.ID, &b.RoomID, &b.BookerName, &squadID, &seriesID,
		&start, &end, &createdAt,
		&b.RoomName, &b.RoomColor, &b.SquadName,
	)
	if err != nil {
		return b, err
	}
	b.SquadID = squadID.String
	b.SeriesID = seriesID.String
	if b.Start, err = parseTime(start); err != nil {
		return b, err
	}
	if b.End, err = parseTime(end); err != nil {
		return b, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return b, err
	}
	return b, nil
}

func queryBookings(ctx context.Context, q querier, where string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, "SELECT"+bookingColumns+bookingJoins+" WHERE "+where+" ORDER BY b.start_time, b.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListBookingsForRoom returns bookings of a room with end_time >= from, ascending by start.
func (db *DB) ListBookingsForRoom(ctx context.Context, roomID string, from time.Time) ([]model.Booking, error) {
	list, err := queryBookings(ctx, db, "b.room_id = ? AND b.end_time >= ?", roomID, formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("list bookings for room %s: %w", roomID, err)
	}
	return list, nil
}

// ListBookingsInRange returns bookings of a room intersecting [from, to).
func (db *DB) ListBookingsInRange(ctx context.Context, roomID string, from, to time.Time) ([]model.Booking, error) {
	list, err := queryBookings(ctx, db, "b.room_id = ? AND b.start_time < ? AND b.end_time > ?",
		roomID, formatTime(to), formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("list bookings in range for room %s: %w", roomID, err)
	}
	return list, nil
}

// ListUpcomingBookings returns bookings of every room starting at or after from.
func (db *DB) ListUpcomingBookings(ctx context.Context, from time.Time) ([]model.Booking, error) {
	list, err := queryBookings(ctx, db, "b.start_time >= ?", formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("list upcoming bookings: %w", err)
	}
	return list, nil
}

// GetBooking returns one booking by id.
func (db *DB) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, "SELECT"+bookingColumns+bookingJoins+" WHERE b.id = ?", id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, translateError(err)
	}
	return &b, nil
}

// InsertBookings stores every interval of the batch in one transaction.
// Any failure, including an overlap raised by the trigger, leaves nothing behind.
func (db *DB) InsertBookings(ctx context.Context, batch model.BookingBatch) ([]model.Booking, error) {
	if len(batch.Intervals) == 0 {
		return nil, fmt.Errorf("insert bookings: empty batch")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Truncate(time.Millisecond)
	seriesID := ""
	if s := batch.Series; s != nil {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.CreatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO booking_series (
				id, room_id, booker_name, squad_id, weekdays, start_time, end_time,
				first_date, last_date, rrule, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, batch.RoomID, batch.Requester.Name, nullString(batch.Requester.SquadID),
			joinWeekdays(s.Weekdays), s.StartTime.String(), s.EndTime.String(),
			s.FirstDate.String(), s.LastDate.String(), s.RRule, formatTime(now),
		)
		if err != nil {
			return nil, fmt.Errorf("insert series: %w", insertError(err))
		}
		seriesID = s.ID
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bookings (id, room_id, booker_name, squad_id, series_id, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	created := make([]model.Booking, 0, len(batch.Intervals))
	for _, iv := range batch.Intervals {
		b := model.Booking{
			ID:         uuid.NewString(),
			RoomID:     batch.RoomID,
			BookerName: batch.Requester.Name,
			SquadID:    batch.Requester.SquadID,
			SeriesID:   seriesID,
			Start:      iv.Start.UTC(),
			End:        iv.End.UTC(),
			CreatedAt:  now,
		}
		_, err := stmt.ExecContext(ctx,
			b.ID, b.RoomID, b.BookerName, nullString(b.SquadID), nullString(b.SeriesID),
			formatTime(b.Start), formatTime(b.End), formatTime(now),
		)
		if err != nil {
			return nil, fmt.Errorf("insert booking at %s: %w", formatTime(b.Start), insertError(err))
		}
		created = append(created, b)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bookings: %w", err)
	}
	return created, nil
}

// insertError reports a dangling room or squad reference as not found.
func insertError(err error) error {
	err = translateError(err)
	if errors.Is(err, model.ErrInUse) {
		return fmt.Errorf("%w: room or squad reference", model.ErrNotFound)
	}
	return err
}

// DeleteBookings removes bookings by id and returns the removed rows.
// Series left without members are removed as well.
func (db *DB) DeleteBookings(ctx context.Context, ids []string) ([]model.Booking, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	removed, err := queryBookings(ctx, tx, "b.id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM bookings WHERE id IN ("+placeholders+")", args...); err != nil {
		return nil, fmt.Errorf("delete bookings: %w", translateError(err))
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM booking_series
		WHERE NOT EXISTS (SELECT 1 FROM bookings WHERE bookings.series_id = booking_series.id)`); err != nil {
		return nil, fmt.Errorf("delete empty series: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return removed, nil
}

// DeleteSeries removes a stored series and all of its member bookings.
func (db *DB) DeleteSeries(ctx context.Context, seriesID string) ([]model.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed, err := queryBookings(ctx, tx, "b.series_id = ?", seriesID)
	if err != nil {
		return nil, fmt.Errorf("select series members: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM booking_series WHERE id = ?", seriesID)
	if err != nil {
		return nil, fmt.Errorf("delete series: %w", translateError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("series %s: %w", seriesID, model.ErrNotFound)
	}
	// Members go with the series through ON DELETE CASCADE.

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete series: %w", err)
	}
	return removed, nil
}

// GetSeries returns a stored series.
func (db *DB) GetSeries(ctx context.Context, id string) (*model.BookingSeries, error) {
	var (
		s                      model.BookingSeries
		squadID                sql.NullString
		weekdays, start, end   string
		first, last, createdAt string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, room_id, booker_name, squad_id, weekdays, start_time, end_time,
		       first_date, last_date, rrule, created_at
		FROM booking_series WHERE id = ?`, id,
	).Scan(&s.ID, &s.RoomID, &s.Requester.Name, &squadID, &weekdays, &start, &end,
		&first, &last, &s.RRule, &createdAt)
	if err != nil {
		return nil, translateError(err)
	}
	s.Requester.SquadID = squadID.String
	if s.Weekdays, err = splitWeekdays(weekdays); err != nil {
		return nil, err
	}
	if err := s.StartTime.UnmarshalText([]byte(start)); err != nil {
		return nil, err
	}
	if err := s.EndTime.UnmarshalText([]byte(end)); err != nil {
		return nil, err
	}
	if err := s.FirstDate.UnmarshalText([]byte(first)); err != nil {
		return nil, err
	}
	if err := s.LastDate.UnmarshalText([]byte(last)); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// PurgeEndedBefore deletes bookings that ended before cutoff and returns how many went.
func (db *DB) PurgeEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM bookings WHERE end_time < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge bookings: %w", err)
	}
	n, _ := res.RowsAffected()
	if _, err := db.ExecContext(ctx, `
		DELETE FROM booking_series
		WHERE NOT EXISTS (SELECT 1 FROM bookings WHERE bookings.series_id = booking_series.id)`); err != nil {
		return n, fmt.Errorf("purge empty series: %w", err)
	}
	return n, nil
}

func joinWeekdays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

func splitWeekdays(s string) ([]int, error) {
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parse weekday %q: %w", p, err)
		}
		out = append(out, d)
	}
	return out, nil
}

package postgres

import (
	"context"
	"database/sql"

	"github.com/example/room-booking/internal/persistence"
)

const bookingColumns = `id, room_id, user_id, start_time, end_time, notes, status, created_at, updated_at`

// CreateBooking inserts a booking.
func (s *Store) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		booking.ID,
		booking.RoomID,
		booking.UserID,
		booking.Start.UTC(),
		booking.End.UTC(),
		nullableString(booking.Notes),
		booking.Status,
		booking.CreatedAt.UTC(),
		booking.UpdatedAt.UTC(),
	)
	return mapError(err)
}

// UpdateBooking overwrites the mutable columns of a booking.
func (s *Store) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET room_id = $2, start_time = $3, end_time = $4, notes = $5, status = $6, updated_at = $7
		WHERE id = $1
	`,
		booking.ID,
		booking.RoomID,
		booking.Start.UTC(),
		booking.End.UTC(),
		nullableString(booking.Notes),
		booking.Status,
		booking.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetBooking retrieves a booking by ID.
func (s *Store) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	booking, err := scanBooking(s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings matching filter ordered by start time then ID.
func (s *Store) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE ($1::text IS NULL OR room_id = $1)
		  AND ($2::text IS NULL OR user_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		  AND ($4::timestamptz IS NULL OR end_time >= $4)
		  AND ($5::timestamptz IS NULL OR start_time <= $5)
		ORDER BY start_time ASC, id ASC
	`,
		nullableString(filter.RoomID),
		nullableString(filter.UserID),
		nullableString(filter.Status),
		nullableTime(filter.From),
		nullableTime(filter.To),
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, mapError(rows.Err())
}

// DeleteBooking hard-deletes a booking.
func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// CountBookingsByRoom counts bookings of any status held against a room.
func (s *Store) CountBookingsByRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE room_id = $1`, roomID).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking persistence.Booking
		notes   sql.NullString
	)
	if err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&booking.UserID,
		&booking.Start,
		&booking.End,
		&notes,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	); err != nil {
		return persistence.Booking{}, err
	}
	booking.Notes = stringPointer(notes)
	booking.Start = booking.Start.UTC()
	booking.End = booking.End.UTC()
	booking.CreatedAt = booking.CreatedAt.UTC()
	booking.UpdatedAt = booking.UpdatedAt.UTC()
	return booking, nil
}

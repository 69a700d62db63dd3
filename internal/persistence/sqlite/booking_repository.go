package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/room-booking/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
// The overlap triggers from migration 002 make writes fail with
// persistence.ErrOverlap when a confirmed slot is already taken.
type BookingRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper ErrorMapper
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool, retry *RetryHelper) *BookingRepository {
	if retry == nil {
		retry = NewRetryHelper(DefaultRetryConfig())
	}
	return &BookingRepository{pool: pool, retry: retry}
}

const bookingColumns = `id, room_id, user_id, start_time, end_time, notes, status, created_at, updated_at`

// CreateBooking inserts a booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO bookings (`+bookingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			booking.ID,
			booking.RoomID,
			booking.UserID,
			formatTime(booking.Start),
			formatTime(booking.End),
			nullableString(booking.Notes),
			booking.Status,
			formatTime(booking.CreatedAt),
			formatTime(booking.UpdatedAt),
		)
		return r.mapper.MapError(err)
	})
}

// UpdateBooking overwrites the mutable columns of a booking.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `
			UPDATE bookings
			SET room_id = ?, start_time = ?, end_time = ?, notes = ?, status = ?, updated_at = ?
			WHERE id = ?
		`,
			booking.RoomID,
			formatTime(booking.Start),
			formatTime(booking.End),
			nullableString(booking.Notes),
			booking.Status,
			formatTime(booking.UpdatedAt),
			booking.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	booking, err := scanBooking(r.pool.DB().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return booking, nil
}

// ListBookings returns bookings matching filter ordered by start time then ID.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.RoomID != nil {
		conditions = append(conditions, "room_id = ?")
		args = append(args, *filter.RoomID)
	}
	if filter.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.To != nil {
		conditions = append(conditions, "start_time <= ?")
		args = append(args, formatTime(*filter.To))
	}
	if filter.From != nil {
		conditions = append(conditions, "end_time >= ?")
		args = append(args, formatTime(*filter.From))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, r.mapper.MapError(rows.Err())
}

// DeleteBooking hard-deletes a booking.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

// CountBookingsByRoom counts bookings of any status held against a room.
func (r *BookingRepository) CountBookingsByRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE room_id = ?`, roomID).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking              persistence.Booking
		notes                sql.NullString
		start, end           string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&booking.UserID,
		&start,
		&end,
		&notes,
		&booking.Status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Booking{}, err
	}
	booking.Notes = stringPointer(notes)

	var err error
	if booking.Start, err = parseTime("start_time", start); err != nil {
		return persistence.Booking{}, err
	}
	if booking.End, err = parseTime("end_time", end); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// AvailabilityChecker decides whether a room is free for an interval.
type AvailabilityChecker struct {
	rooms    RoomDirectory
	bookings BookingRepository
	logger   *slog.Logger
}

// NewAvailabilityChecker constructs a checker over the provided dependencies.
func NewAvailabilityChecker(rooms RoomDirectory, bookings BookingRepository, logger *slog.Logger) *AvailabilityChecker {
	return &AvailabilityChecker{rooms: rooms, bookings: bookings, logger: defaultLogger(logger)}
}

// CheckAvailability reports whether roomID is free for [start, end). The
// booking identified by excludeBookingID is ignored so an edit does not
// conflict with itself. When the room is taken, the earliest overlapping
// confirmed booking is returned.
func (c *AvailabilityChecker) CheckAvailability(ctx context.Context, roomID string, start, end time.Time, excludeBookingID string) (Availability, error) {
	if c == nil {
		return Availability{}, fmt.Errorf("AvailabilityChecker is nil")
	}

	interval := scheduler.Interval{Start: start, End: end}
	if err := interval.Validate(); err != nil {
		return Availability{}, ErrInvalidInterval
	}
	if _, err := c.rooms.GetRoom(ctx, roomID); err != nil {
		return Availability{}, err
	}

	return c.check(ctx, Booking{ID: excludeBookingID, RoomID: roomID, Start: start, End: end, Status: scheduler.StatusConfirmed})
}

// check runs the conflict search for an already validated candidate.
func (c *AvailabilityChecker) check(ctx context.Context, candidate Booking) (Availability, error) {
	existing, err := c.bookings.FindConfirmedByRoom(ctx, candidate.RoomID)
	if err != nil {
		return Availability{}, mapBookingRepoError(err)
	}

	reservations := make([]scheduler.Reservation, 0, len(existing))
	byID := make(map[string]Booking, len(existing))
	for _, booking := range existing {
		reservations = append(reservations, booking.reservation())
		byID[booking.ID] = booking
	}

	conflict, found := scheduler.FindConflict(reservations, candidate.reservation())
	if !found {
		return Availability{Available: true}, nil
	}

	blocking := byID[conflict.WithReservationID]
	serviceLogger(ctx, c.logger, "AvailabilityChecker", "CheckAvailability",
		"room_id", candidate.RoomID,
		"conflicting_booking_id", blocking.ID,
	).DebugContext(ctx, "room unavailable")
	return Availability{Available: false, Conflicting: &blocking}, nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/events"
	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// BookingService owns the booking lifecycle: creation, edits, cancellation
// and administrative removal.
type BookingService struct {
	rooms       RoomDirectory
	bookings    BookingRepository
	checker     *AvailabilityChecker
	locker      RoomLocker
	publisher   EventPublisher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(rooms RoomDirectory, bookings BookingRepository, locker RoomLocker, publisher EventPublisher, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(rooms, bookings, locker, publisher, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
// A nil locker falls back to an in-process lock and a nil publisher drops events.
func NewBookingServiceWithLogger(rooms RoomDirectory, bookings BookingRepository, locker RoomLocker, publisher EventPublisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	logger = defaultLogger(logger)
	return &BookingService{
		rooms:       rooms,
		bookings:    bookings,
		checker:     NewAvailabilityChecker(rooms, bookings, logger),
		locker:      locker,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// Checker exposes the availability checker used by the service.
func (s *BookingService) Checker() *AvailabilityChecker {
	return s.checker
}

// CreateBooking reserves a room for an interval. The availability check and
// the insert run inside the room's critical section.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	input := params.Input
	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"room_id", input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		userID = params.Principal.UserID
	}
	if !params.Principal.owns(userID) {
		err = ErrForbidden
		return
	}

	interval := scheduler.Interval{Start: input.Start, End: input.End}
	if interval.Validate() != nil {
		err = ErrInvalidInterval
		return
	}

	roomID := strings.TrimSpace(input.RoomID)
	var active bool
	active, err = s.rooms.IsRoomActive(ctx, roomID)
	if err != nil {
		return
	}
	if !active {
		err = ErrRoomInactive
		return
	}

	now := s.now().UTC()
	candidate := Booking{
		ID:        s.idGenerator(),
		RoomID:    roomID,
		UserID:    userID,
		Start:     interval.Start.UTC(),
		End:       interval.End.UTC(),
		Notes:     normalizeOptionalString(input.Notes),
		Status:    scheduler.StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.withRoomLock(ctx, roomID, func() error {
		if conflictErr := s.ensureAvailable(ctx, candidate); conflictErr != nil {
			return conflictErr
		}
		inserted, insertErr := s.bookings.Insert(ctx, candidate)
		if insertErr != nil {
			return s.mapWriteError(ctx, candidate, insertErr)
		}
		booking = inserted
		return nil
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, events.BookingCreated, booking, params.Principal)
	return
}

// UpdateBooking edits the interval or notes of a confirmed booking. Interval
// changes are re-checked against the room's other confirmed bookings.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking updated")
	}()

	var existing Booking
	existing, err = s.authorizedBooking(ctx, params.Principal, params.BookingID)
	if err != nil {
		return
	}
	if existing.IsCancelled() {
		err = ErrAlreadyCancelled
		return
	}

	start, end := existing.Start, existing.End
	if params.Start != nil {
		start = params.Start.UTC()
	}
	if params.End != nil {
		end = params.End.UTC()
	}
	if (scheduler.Interval{Start: start, End: end}).Validate() != nil {
		err = ErrInvalidInterval
		return
	}

	err = s.withRoomLock(ctx, existing.RoomID, func() error {
		current, findErr := s.bookings.FindByID(ctx, existing.ID)
		if findErr != nil {
			return mapBookingRepoError(findErr)
		}
		if current.IsCancelled() {
			return ErrAlreadyCancelled
		}

		updated := current
		updated.Start = start
		updated.End = end
		if params.Notes != nil {
			updated.Notes = normalizeOptionalString(params.Notes)
		}
		updated.UpdatedAt = s.now().UTC()

		if !updated.Interval().Equal(current.Interval()) {
			if conflictErr := s.ensureAvailable(ctx, updated); conflictErr != nil {
				return conflictErr
			}
		}

		persisted, updateErr := s.bookings.Update(ctx, updated)
		if updateErr != nil {
			return s.mapWriteError(ctx, updated, updateErr)
		}
		booking = persisted
		return nil
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, events.BookingUpdated, booking, params.Principal)
	return
}

// CancelBooking moves a confirmed booking to cancelled. Cancelling an already
// cancelled booking always fails with ErrAlreadyCancelled.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking cancelled")
	}()

	var existing Booking
	existing, err = s.authorizedBooking(ctx, principal, bookingID)
	if err != nil {
		return
	}
	if existing.IsCancelled() {
		err = ErrAlreadyCancelled
		return
	}

	err = s.withRoomLock(ctx, existing.RoomID, func() error {
		current, findErr := s.bookings.FindByID(ctx, existing.ID)
		if findErr != nil {
			return mapBookingRepoError(findErr)
		}
		if !scheduler.CanTransition(current.Status, scheduler.StatusCancelled) {
			return ErrAlreadyCancelled
		}

		current.Status = scheduler.StatusCancelled
		current.UpdatedAt = s.now().UTC()
		persisted, updateErr := s.bookings.Update(ctx, current)
		if updateErr != nil {
			return mapBookingRepoError(updateErr)
		}
		booking = persisted
		return nil
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, events.BookingCancelled, booking, principal)
	return
}

// DeleteBooking permanently removes a booking. Only administrators may delete.
func (s *BookingService) DeleteBooking(ctx context.Context, principal Principal, bookingID string) (err error) {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking deleted")
	}()

	if !principal.IsAdmin {
		err = ErrForbidden
		return
	}

	var existing Booking
	existing, err = s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	err = s.withRoomLock(ctx, existing.RoomID, func() error {
		return mapBookingRepoError(s.bookings.Delete(ctx, existing.ID))
	})
	if err != nil {
		return
	}

	s.publish(ctx, logger, events.BookingDeleted, existing, principal)
	return
}

// GetBooking returns a single booking to its owner or an administrator.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	return s.authorizedBooking(ctx, principal, bookingID)
}

func (s *BookingService) authorizedBooking(ctx context.Context, principal Principal, bookingID string) (Booking, error) {
	if principal.UserID == "" {
		return Booking{}, ErrUnauthorized
	}
	booking, err := s.bookings.FindByID(ctx, strings.TrimSpace(bookingID))
	if err != nil {
		return Booking{}, mapBookingRepoError(err)
	}
	if !principal.owns(booking.UserID) {
		return Booking{}, ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) withRoomLock(ctx context.Context, roomID string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, roomLockKey(roomID))
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (s *BookingService) ensureAvailable(ctx context.Context, candidate Booking) error {
	availability, err := s.checker.check(ctx, candidate)
	if err != nil {
		return err
	}
	if !availability.Available {
		return &SlotConflictError{Conflicting: *availability.Conflicting}
	}
	return nil
}

// mapWriteError turns a store level overlap rejection into a SlotConflictError,
// looking up the blocking booking when it is still visible.
func (s *BookingService) mapWriteError(ctx context.Context, candidate Booking, err error) error {
	if !errors.Is(err, persistence.ErrOverlap) {
		return mapBookingRepoError(err)
	}
	availability, checkErr := s.checker.check(ctx, candidate)
	if checkErr == nil && !availability.Available {
		return &SlotConflictError{Conflicting: *availability.Conflicting}
	}
	return &SlotConflictError{}
}

func (s *BookingService) publish(ctx context.Context, logger *slog.Logger, eventType events.Type, booking Booking, actor Principal) {
	event := events.Event{
		Type:       eventType,
		BookingID:  booking.ID,
		RoomID:     booking.RoomID,
		UserID:     booking.UserID,
		ActorID:    actor.UserID,
		Start:      booking.Start,
		End:        booking.End,
		Status:     string(booking.Status),
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish booking event", "event_type", string(eventType), "error", err)
	}
}

func roomLockKey(roomID string) string {
	return "room:" + roomID
}

func mapBookingRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, ErrRoomNotFound):
		return err
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, ErrNotFound):
		return ErrBookingNotFound
	case errors.Is(err, persistence.ErrOverlap):
		return &SlotConflictError{}
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("%w: booking references an unknown room or user", ErrNotFound)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return ErrInvalidInterval
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

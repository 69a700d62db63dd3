package application

import (
	"errors"
	"fmt"

	"github.com/example/room-booking/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the caller could not be identified.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when login data does not match a user.
	ErrInvalidCredentials = errors.New("application: invalid credentials")

	// ErrInvalidInterval wraps the scheduler sentinel so callers can match either.
	ErrInvalidInterval = fmt.Errorf("application: invalid interval: %w", scheduler.ErrInvalidInterval)
	// ErrRoomNotFound is returned when a booking references an unknown room.
	ErrRoomNotFound = fmt.Errorf("application: room not found: %w", ErrNotFound)
	// ErrRoomInactive is returned when a new booking targets a deactivated room.
	ErrRoomInactive = errors.New("application: room is not active")
	// ErrSlotConflict is returned when the requested interval overlaps a confirmed booking.
	ErrSlotConflict = errors.New("application: slot conflict")
	// ErrBookingNotFound is returned when the booking does not exist.
	ErrBookingNotFound = fmt.Errorf("application: booking not found: %w", ErrNotFound)
	// ErrAlreadyCancelled is returned for any mutation of a cancelled booking.
	ErrAlreadyCancelled = errors.New("application: booking already cancelled")
	// ErrTypeInUse is returned when deleting a room type that rooms still reference.
	ErrTypeInUse = errors.New("application: room type in use")
	// ErrRoomInUse is returned when deleting a room that bookings still reference.
	ErrRoomInUse = errors.New("application: room in use")
)

// SlotConflictError reports the booking that blocks the requested interval.
// Conflicting is zero when the store rejected the write but the blocking
// booking could no longer be read.
type SlotConflictError struct {
	Conflicting Booking
}

// Error implements the error interface.
func (e *SlotConflictError) Error() string {
	if e == nil || e.Conflicting.ID == "" {
		return ErrSlotConflict.Error()
	}
	return fmt.Sprintf("%s with booking %s", ErrSlotConflict.Error(), e.Conflicting.ID)
}

// Is lets errors.Is match ErrSlotConflict.
func (e *SlotConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/scheduler"
)

var (
	errBadRequestBody   = errors.New("request body is not valid JSON")
	errMissingToken     = errors.New("a bearer token is required")
	errMissingPrincipal = errors.New("authentication is required")
	errInvalidPathID    = errors.New("the path identifier is missing")
)

type responder struct {
	logger *slog.Logger
	now    func() time.Time
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger), now: time.Now}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var conflict *application.SlotConflictError
	if errors.As(err, &conflict) {
		resp := errorResponse{ErrorCode: "SLOT_CONFLICT", Message: "the requested slot overlaps an existing booking"}
		if conflict.Conflicting.ID != "" {
			dto := toBookingDTO(conflict.Conflicting, r.displayStatus(conflict.Conflicting))
			resp.ConflictingBooking = &dto
		}
		r.writeJSON(ctx, w, http.StatusConflict, resp)
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "the request contains invalid fields",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	status, code, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

func (r responder) displayStatus(booking application.Booking) scheduler.DisplayStatus {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	return scheduler.DeriveDisplayStatus(booking.Interval(), booking.Status, now())
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, application.ErrInvalidInterval):
		return http.StatusUnprocessableEntity, "INVALID_INTERVAL", "start must be before end"
	case errors.Is(err, application.ErrSlotConflict):
		return http.StatusConflict, "SLOT_CONFLICT", "the requested slot overlaps an existing booking"
	case errors.Is(err, application.ErrRoomInactive):
		return http.StatusConflict, "ROOM_INACTIVE", "the room is not accepting bookings"
	case errors.Is(err, application.ErrAlreadyCancelled):
		return http.StatusConflict, "ALREADY_CANCELLED", "the booking is already cancelled"
	case errors.Is(err, application.ErrTypeInUse):
		return http.StatusConflict, "TYPE_IN_USE", "rooms still reference this room type"
	case errors.Is(err, application.ErrRoomInUse):
		return http.StatusConflict, "ROOM_IN_USE", "bookings still reference this room; deactivate it instead"
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS", "the resource already exists"
	case errors.Is(err, application.ErrRoomNotFound):
		return http.StatusNotFound, "ROOM_NOT_FOUND", "the room was not found"
	case errors.Is(err, application.ErrBookingNotFound):
		return http.StatusNotFound, "BOOKING_NOT_FOUND", "the booking was not found"
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "the resource was not found"
	case errors.Is(err, application.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "you are not allowed to perform this operation"
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "email or password is incorrect"
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "authentication is required"
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusServiceUnavailable, "ROOM_BUSY", "the room is busy, retry shortly"
	default:
		return http.StatusInternalServerError, "INTERNAL", "an internal error occurred"
	}
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusUnauthorized:
		return "authentication is required"
	case http.StatusForbidden:
		return "you are not allowed to perform this operation"
	case http.StatusNotFound:
		return "the resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current state of the resource"
	case http.StatusUnprocessableEntity:
		return "the request contains invalid fields"
	default:
		return "an internal error occurred"
	}
}

type errorResponse struct {
	ErrorCode          string            `json:"error_code,omitempty"`
	Message            string            `json:"message"`
	Errors             map[string]string `json:"errors,omitempty"`
	ConflictingBooking *bookingDTO       `json:"conflicting_booking,omitempty"`
}

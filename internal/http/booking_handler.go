package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	DeleteBooking(ctx context.Context, principal application.Principal, bookingID string) error
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
}

type bookingQuery interface {
	ListForUser(ctx context.Context, principal application.Principal, userID string, opts application.ListOptions) ([]application.BookingView, error)
	ListAll(ctx context.Context, principal application.Principal, opts application.ListOptions) ([]application.BookingView, error)
	View(ctx context.Context, booking application.Booking) (application.BookingView, error)
}

type BookingHandler struct {
	service   bookingService
	query     bookingQuery
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, query bookingQuery, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, query: query, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil || h.query == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", req.RoomID)

	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("booking_id", booking.ID).InfoContext(r.Context(), "booking created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: h.present(r.Context(), logger, booking)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	bookingID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Get", "principal_id", principal.UserID, "booking_id", bookingID)

	booking, err := h.service.GetBooking(r.Context(), principal, bookingID)
	if err != nil {
		logger.WarnContext(r.Context(), "booking lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: h.present(r.Context(), logger, booking)})
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	bookingID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req updateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "booking_id", bookingID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode booking update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "booking_id", bookingID)

	booking, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Start:     req.Start,
		End:       req.End,
		Notes:     req.Notes,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "booking update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: h.present(r.Context(), logger, booking)})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	bookingID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "booking_id", bookingID)

	booking, err := h.service.CancelBooking(r.Context(), principal, bookingID)
	if err != nil {
		logger.WarnContext(r.Context(), "booking cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: h.present(r.Context(), logger, booking)})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	bookingID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "booking_id", bookingID)

	if err := h.service.DeleteBooking(r.Context(), principal, bookingID); err != nil {
		logger.WarnContext(r.Context(), "booking delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ListMine lists the caller's bookings.
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, "ListMine", "")
}

// ListForUser lists the bookings of the user in the path. Owners and
// administrators only.
func (h *BookingHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(mux.Vars(r)["id"])
	if userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}
	h.listForUser(w, r, "ListForUser", userID)
}

func (h *BookingHandler) listForUser(w http.ResponseWriter, r *http.Request, operation, userID string) {
	if !h.ready(w) {
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingPrincipal)
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "user_id", userID)
	views, err := h.query.ListForUser(r.Context(), principal, userID, opts)
	if err != nil {
		logger.WarnContext(r.Context(), "booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingViewDTOs(views)})
}

// ListAll lists every booking. Administrators only.
func (h *BookingHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	opts, err := parseListOptions(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "ListAll", "principal_id", principal.UserID)
	views, err := h.query.ListAll(r.Context(), principal, opts)
	if err != nil {
		logger.WarnContext(r.Context(), "booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingViewDTOs(views)})
}

// present resolves the booking for display. The write already succeeded, so
// a resolution failure degrades to the bare booking.
func (h *BookingHandler) present(ctx context.Context, logger *slog.Logger, booking application.Booking) bookingDTO {
	view, err := h.query.View(ctx, booking)
	if err != nil {
		logger.WarnContext(ctx, "booking view resolution failed", "error", err)
		return toBookingDTO(booking, h.responder.displayStatus(booking))
	}
	return toBookingViewDTO(view)
}

type createBookingRequest struct {
	RoomID string    `json:"room_id"`
	UserID string    `json:"user_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Notes  *string   `json:"notes"`
}

func (r createBookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		RoomID: strings.TrimSpace(r.RoomID),
		UserID: strings.TrimSpace(r.UserID),
		Start:  r.Start,
		End:    r.End,
		Notes:  trimOptional(r.Notes),
	}
}

type updateBookingRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
	Notes *string    `json:"notes"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type bookingDTO struct {
	ID            string          `json:"id"`
	RoomID        string          `json:"room_id"`
	UserID        string          `json:"user_id"`
	Start         string          `json:"start"`
	End           string          `json:"end"`
	Notes         *string         `json:"notes,omitempty"`
	Status        string          `json:"status"`
	DisplayStatus string          `json:"display_status"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
	Room          *bookingRoomDTO `json:"room,omitempty"`
	RoomType      *roomTypeRefDTO `json:"room_type,omitempty"`
	User          *bookingUserDTO `json:"user,omitempty"`
}

type bookingRoomDTO struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Capacity int     `json:"capacity"`
	Building *string `json:"building,omitempty"`
	Floor    *string `json:"floor,omitempty"`
	IsActive bool    `json:"is_active"`
}

type roomTypeRefDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bookingUserDTO struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

func toBookingDTO(booking application.Booking, status scheduler.DisplayStatus) bookingDTO {
	return bookingDTO{
		ID:            booking.ID,
		RoomID:        booking.RoomID,
		UserID:        booking.UserID,
		Start:         formatTime(booking.Start),
		End:           formatTime(booking.End),
		Notes:         booking.Notes,
		Status:        string(booking.Status),
		DisplayStatus: string(status),
		CreatedAt:     formatTime(booking.CreatedAt),
		UpdatedAt:     formatTime(booking.UpdatedAt),
	}
}

func toBookingViewDTO(view application.BookingView) bookingDTO {
	dto := toBookingDTO(view.Booking, view.DisplayStatus)
	dto.Room = &bookingRoomDTO{
		ID:       view.Room.ID,
		Name:     view.Room.Name,
		Capacity: view.Room.Capacity,
		Building: view.Room.Building,
		Floor:    view.Room.Floor,
		IsActive: view.Room.IsActive,
	}
	dto.RoomType = &roomTypeRefDTO{ID: view.RoomType.ID, Name: view.RoomType.Name}
	dto.User = &bookingUserDTO{
		ID:        view.User.ID,
		Email:     view.User.Email,
		FirstName: view.User.FirstName,
		LastName:  view.User.LastName,
	}
	return dto
}

func toBookingViewDTOs(views []application.BookingView) []bookingDTO {
	out := make([]bookingDTO, 0, len(views))
	for _, view := range views {
		out = append(out, toBookingViewDTO(view))
	}
	return out
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
)

type roomService interface {
	ListRoomTypes(ctx context.Context) ([]application.RoomType, error)
	CreateRoomType(ctx context.Context, params application.CreateRoomTypeParams) (application.RoomType, error)
	UpdateRoomType(ctx context.Context, params application.UpdateRoomTypeParams) (application.RoomType, error)
	DeleteRoomType(ctx context.Context, principal application.Principal, roomTypeID string) error
	ListActiveRooms(ctx context.Context, roomTypeID *string) ([]application.Room, error)
	ListAllRooms(ctx context.Context, principal application.Principal) ([]application.Room, error)
	GetRoom(ctx context.Context, roomID string) (application.RoomDetails, error)
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, roomID string, start, end time.Time, excludeBookingID string) (application.Availability, error)
}

type roomCalendar interface {
	ListForRoom(ctx context.Context, principal application.Principal, roomID string, rangeStart, rangeEnd time.Time, opts application.ListOptions) ([]application.BookingView, error)
}

type RoomHandler struct {
	service      roomService
	availability availabilityChecker
	calendar     roomCalendar
	responder    responder
	logger       *slog.Logger
}

func NewRoomHandler(service roomService, availability availabilityChecker, calendar roomCalendar, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{
		service:      service,
		availability: availability,
		calendar:     calendar,
		responder:    newResponder(base),
		logger:       base,
	}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *RoomHandler) ListRoomTypes(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	types, err := h.service.ListRoomTypes(r.Context())
	if err != nil {
		h.log(r.Context(), "ListRoomTypes").ErrorContext(r.Context(), "room type list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]roomTypeDTO, 0, len(types))
	for _, roomType := range types {
		out = append(out, toRoomTypeDTO(roomType))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomTypesResponse{RoomTypes: out})
}

func (h *RoomHandler) CreateRoomType(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roomTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "CreateRoomType", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode room type request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CreateRoomType", "principal_id", principal.UserID)
	roomType, err := h.service.CreateRoomType(r.Context(), application.CreateRoomTypeParams{Principal: principal, Input: req.toInput()})
	if err != nil {
		logger.WarnContext(r.Context(), "room type creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("room_type_id", roomType.ID).InfoContext(r.Context(), "room type created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomTypeResponse{RoomType: toRoomTypeDTO(roomType)})
}

func (h *RoomHandler) UpdateRoomType(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomTypeID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roomTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "UpdateRoomType", "principal_id", principal.UserID, "room_type_id", roomTypeID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode room type update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateRoomType", "principal_id", principal.UserID, "room_type_id", roomTypeID)
	roomType, err := h.service.UpdateRoomType(r.Context(), application.UpdateRoomTypeParams{
		Principal:  principal,
		RoomTypeID: roomTypeID,
		Input:      req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "room type update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room type updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomTypeResponse{RoomType: toRoomTypeDTO(roomType)})
}

func (h *RoomHandler) DeleteRoomType(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomTypeID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "DeleteRoomType", "principal_id", principal.UserID, "room_type_id", roomTypeID)
	if err := h.service.DeleteRoomType(r.Context(), principal, roomTypeID); err != nil {
		logger.WarnContext(r.Context(), "room type delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room type deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// List returns the active rooms, optionally narrowed by room_type_id.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var roomTypeID *string
	if value := strings.TrimSpace(r.URL.Query().Get("room_type_id")); value != "" {
		roomTypeID = &value
	}

	rooms, err := h.service.ListActiveRooms(r.Context(), roomTypeID)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *RoomHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rooms, err := h.service.ListAllRooms(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "ListAll", "principal_id", principal.UserID).WarnContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	details, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		h.log(r.Context(), "Get", "room_id", roomID).WarnContext(r.Context(), "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dto := toRoomDTO(details.Room)
	dto.RoomType = &roomTypeRefDTO{ID: details.RoomType.ID, Name: details.RoomType.Name}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: dto})
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_id", roomID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode room update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_id", roomID)

	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "room_id", roomID)
	if err := h.service.DeleteRoom(r.Context(), principal, roomID); err != nil {
		logger.WarnContext(r.Context(), "room delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Availability probes whether [start, end) is free, optionally ignoring the
// booking named by exclude.
func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	var vErr application.ValidationError
	start := parseTimeQuery(r, "start", &vErr)
	end := parseTimeQuery(r, "end", &vErr)
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, &vErr)
		return
	}
	exclude := strings.TrimSpace(r.URL.Query().Get("exclude"))

	result, err := h.availability.CheckAvailability(r.Context(), roomID, start, end, exclude)
	if err != nil {
		h.log(r.Context(), "Availability", "room_id", roomID).WarnContext(r.Context(), "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := availabilityResponse{Available: result.Available}
	if result.Conflicting != nil {
		dto := toBookingDTO(*result.Conflicting, h.responder.displayStatus(*result.Conflicting))
		resp.ConflictingBooking = &dto
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Bookings lists the room's bookings intersecting [start, end].
func (h *RoomHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.calendar == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidPathID)
		return
	}

	var vErr application.ValidationError
	start := parseTimeQuery(r, "start", &vErr)
	end := parseTimeQuery(r, "end", &vErr)
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, &vErr)
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	views, err := h.calendar.ListForRoom(r.Context(), principal, roomID, start, end, opts)
	if err != nil {
		h.log(r.Context(), "Bookings", "principal_id", principal.UserID, "room_id", roomID).WarnContext(r.Context(), "room booking list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingViewDTOs(views)})
}

type roomTypeRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (r roomTypeRequest) toInput() application.RoomTypeInput {
	return application.RoomTypeInput{
		Name:        strings.TrimSpace(r.Name),
		Description: trimOptional(r.Description),
	}
}

type roomRequest struct {
	Name        string  `json:"name"`
	Capacity    *int    `json:"capacity"`
	Building    *string `json:"building"`
	Floor       *string `json:"floor"`
	Description *string `json:"description"`
	RoomTypeID  string  `json:"room_type_id"`
	IsActive    *bool   `json:"is_active"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:        strings.TrimSpace(r.Name),
		Capacity:    r.Capacity,
		Building:    trimOptional(r.Building),
		Floor:       trimOptional(r.Floor),
		Description: trimOptional(r.Description),
		RoomTypeID:  strings.TrimSpace(r.RoomTypeID),
		IsActive:    r.IsActive,
	}
}

type roomTypeResponse struct {
	RoomType roomTypeDTO `json:"room_type"`
}

type listRoomTypesResponse struct {
	RoomTypes []roomTypeDTO `json:"room_types"`
}

type roomTypeDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toRoomTypeDTO(roomType application.RoomType) roomTypeDTO {
	return roomTypeDTO{
		ID:          roomType.ID,
		Name:        roomType.Name,
		Description: roomType.Description,
		CreatedAt:   formatTime(roomType.CreatedAt),
		UpdatedAt:   formatTime(roomType.UpdatedAt),
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Capacity    int             `json:"capacity"`
	Building    *string         `json:"building,omitempty"`
	Floor       *string         `json:"floor,omitempty"`
	Description *string         `json:"description,omitempty"`
	RoomTypeID  string          `json:"room_type_id"`
	RoomType    *roomTypeRefDTO `json:"room_type,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		ID:          room.ID,
		Name:        room.Name,
		Capacity:    room.Capacity,
		Building:    room.Building,
		Floor:       room.Floor,
		Description: room.Description,
		RoomTypeID:  room.RoomTypeID,
		IsActive:    room.IsActive,
		CreatedAt:   formatTime(room.CreatedAt),
		UpdatedAt:   formatTime(room.UpdatedAt),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}

type availabilityResponse struct {
	Available          bool        `json:"available"`
	ConflictingBooking *bookingDTO `json:"conflicting_booking,omitempty"`
}

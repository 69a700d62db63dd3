package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

const maxNameLength = 100

// RoomService orchestrates validation, authorization, and persistence for
// rooms and room types.
type RoomService struct {
	rooms       RoomRepository
	roomTypes   RoomTypeRepository
	bookings    BookingRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, roomTypes RoomTypeRepository, bookings BookingRepository, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, roomTypes, bookings, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, roomTypes RoomTypeRepository, bookings BookingRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{
		rooms:       rooms,
		roomTypes:   roomTypes,
		bookings:    bookings,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// ListRoomTypes returns every room type ordered by name.
func (s *RoomService) ListRoomTypes(ctx context.Context) ([]RoomType, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	types, err := s.roomTypes.ListRoomTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RoomType, len(types))
	copy(out, types)
	sort.Slice(out, func(i, j int) bool {
		return lessByName(out[i].Name, out[i].ID, out[j].Name, out[j].ID)
	})
	return out, nil
}

// CreateRoomType persists a new room type for administrators.
func (s *RoomService) CreateRoomType(ctx context.Context, params CreateRoomTypeParams) (roomType RoomType, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoomType", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room type", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_type_id", roomType.ID).InfoContext(ctx, "room type created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}
	if vErr := validateRoomTypeInput(params.Input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	roomType, err = s.roomTypes.CreateRoomType(ctx, RoomType{
		ID:          s.idGenerator(),
		Name:        strings.TrimSpace(params.Input.Name),
		Description: normalizeOptionalString(params.Input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	err = mapRoomTypeRepoError(err)
	return
}

// UpdateRoomType renames or re-describes an existing room type.
func (s *RoomService) UpdateRoomType(ctx context.Context, params UpdateRoomTypeParams) (roomType RoomType, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoomType",
		"principal_id", params.Principal.UserID,
		"room_type_id", params.RoomTypeID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room type", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room type updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}

	var existing RoomType
	existing, err = s.roomTypes.GetRoomType(ctx, params.RoomTypeID)
	if err != nil {
		err = mapRoomTypeRepoError(err)
		return
	}
	if vErr := validateRoomTypeInput(params.Input); vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Name = strings.TrimSpace(params.Input.Name)
	existing.Description = normalizeOptionalString(params.Input.Description)
	existing.UpdatedAt = s.now().UTC()

	roomType, err = s.roomTypes.UpdateRoomType(ctx, existing)
	err = mapRoomTypeRepoError(err)
	return
}

// DeleteRoomType removes a room type that no room references.
func (s *RoomService) DeleteRoomType(ctx context.Context, principal Principal, roomTypeID string) (err error) {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteRoomType",
		"principal_id", principal.UserID,
		"room_type_id", roomTypeID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete room type", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room type deleted")
	}()

	if !principal.IsAdmin {
		return ErrForbidden
	}
	if _, err = s.roomTypes.GetRoomType(ctx, roomTypeID); err != nil {
		return mapRoomTypeRepoError(err)
	}

	var count int
	count, err = s.rooms.CountRoomsByType(ctx, roomTypeID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrTypeInUse
	}

	return mapRoomTypeRepoError(s.roomTypes.DeleteRoomType(ctx, roomTypeID))
}

// ListActiveRooms returns the bookable rooms, optionally narrowed to one type.
func (s *RoomService) ListActiveRooms(ctx context.Context, roomTypeID *string) ([]Room, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	return s.listRooms(ctx, "ListActiveRooms", normalizeOptionalString(roomTypeID), true)
}

// ListAllRooms returns every room including inactive ones. Administrators only.
func (s *RoomService) ListAllRooms(ctx context.Context, principal Principal) ([]Room, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrForbidden
	}
	return s.listRooms(ctx, "ListAllRooms", nil, false)
}

func (s *RoomService) listRooms(ctx context.Context, operation string, roomTypeID *string, activeOnly bool) (rooms []Room, err error) {
	logger := s.loggerWith(ctx, operation)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx, roomTypeID, activeOnly)
	if err != nil {
		return
	}

	rooms = make([]Room, len(raw))
	copy(rooms, raw)
	sort.Slice(rooms, func(i, j int) bool {
		return lessByName(rooms[i].Name, rooms[i].ID, rooms[j].Name, rooms[j].ID)
	})
	return
}

// GetRoom returns a room together with its type.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (RoomDetails, error) {
	if s == nil {
		return RoomDetails{}, fmt.Errorf("RoomService is nil")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return RoomDetails{}, mapRoomRepoError(err)
	}
	roomType, err := s.roomTypes.GetRoomType(ctx, room.RoomTypeID)
	if err != nil && !isNotFound(err) {
		return RoomDetails{}, err
	}
	return RoomDetails{Room: room, RoomType: roomType}, nil
}

// CreateRoom validates input and persists a new room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}

	input := params.Input
	if input.Capacity == nil {
		capacity := DefaultRoomCapacity
		input.Capacity = &capacity
	}
	if input.IsActive == nil {
		active := true
		input.IsActive = &active
	}

	vErr := validateRoomInput(input)
	vErr.merge(s.validateRoomType(ctx, input.RoomTypeID))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	room = applyRoomInput(Room{ID: s.idGenerator(), CreatedAt: now}, input)
	room.UpdatedAt = now

	room, err = s.rooms.CreateRoom(ctx, room)
	err = mapRoomRepoError(err)
	return
}

// UpdateRoom validates input and updates an existing room for administrators.
// Nil optional fields keep their stored values. Deactivating a room leaves its
// existing bookings untouched.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	input := params.Input
	if input.Capacity == nil {
		input.Capacity = &existing.Capacity
	}
	if input.IsActive == nil {
		input.IsActive = &existing.IsActive
	}
	if strings.TrimSpace(input.RoomTypeID) == "" {
		input.RoomTypeID = existing.RoomTypeID
	}
	if input.Building == nil {
		input.Building = existing.Building
	}
	if input.Floor == nil {
		input.Floor = existing.Floor
	}
	if input.Description == nil {
		input.Description = existing.Description
	}

	vErr := validateRoomInput(input)
	if input.RoomTypeID != existing.RoomTypeID {
		vErr.merge(s.validateRoomType(ctx, input.RoomTypeID))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := applyRoomInput(existing, input)
	updated.UpdatedAt = s.now().UTC()

	room, err = s.rooms.UpdateRoom(ctx, updated)
	err = mapRoomRepoError(err)
	return
}

// DeleteRoom removes a room that has no bookings. Rooms with history should
// be deactivated instead.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if !principal.IsAdmin {
		return ErrForbidden
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)

	if err := s.deleteRoom(ctx, roomID); err != nil {
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	return nil
}

func (s *RoomService) deleteRoom(ctx context.Context, roomID string) error {
	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return mapRoomRepoError(err)
	}
	if s.bookings != nil {
		count, err := s.bookings.CountByRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrRoomInUse
		}
	}
	err := s.rooms.DeleteRoom(ctx, roomID)
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrRoomInUse
	}
	return mapRoomRepoError(err)
}

func (s *RoomService) validateRoomType(ctx context.Context, roomTypeID string) *ValidationError {
	vErr := &ValidationError{}
	roomTypeID = strings.TrimSpace(roomTypeID)
	if roomTypeID == "" {
		vErr.add("room_type_id", "room type is required")
		return vErr
	}
	if _, err := s.roomTypes.GetRoomType(ctx, roomTypeID); err != nil {
		vErr.add("room_type_id", "room type does not exist")
	}
	return vErr
}

func applyRoomInput(room Room, input RoomInput) Room {
	room.Name = strings.TrimSpace(input.Name)
	room.Capacity = *input.Capacity
	room.Building = normalizeOptionalString(input.Building)
	room.Floor = normalizeOptionalString(input.Floor)
	room.Description = normalizeOptionalString(input.Description)
	room.RoomTypeID = strings.TrimSpace(input.RoomTypeID)
	room.IsActive = *input.IsActive
	return room
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		vErr.add("name", "name is required")
	case len(name) > maxNameLength:
		vErr.add("name", "name is too long")
	}
	if input.Capacity != nil && *input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}

	return vErr
}

func validateRoomTypeInput(input RoomTypeInput) *ValidationError {
	vErr := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		vErr.add("name", "name is required")
	case len(name) > maxNameLength:
		vErr.add("name", "name is too long")
	}
	return vErr
}

func lessByName(nameA, idA, nameB, idB string) bool {
	if strings.EqualFold(nameA, nameB) {
		return idA < idB
	}
	return strings.ToLower(nameA) < strings.ToLower(nameB)
}

func mapRoomRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRoomNotFound):
		return err
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, ErrNotFound):
		return ErrRoomNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("room_type_id", "room type does not exist")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be positive")
		return vErr
	}
	return err
}

func mapRoomTypeRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: room type", ErrNotFound)
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrTypeInUse
	}
	return err
}

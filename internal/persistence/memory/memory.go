// Package memory provides a map-backed persistence.Store for tests and
// single-process deployments. It enforces the same uniqueness, referential
// and overlap rules as the SQL stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/example/room-booking/internal/persistence"
)

// Storage is an in-memory persistence.Store.
type Storage struct {
	mu        sync.RWMutex
	users     map[string]persistence.User
	roomTypes map[string]persistence.RoomType
	rooms     map[string]persistence.Room
	bookings  map[string]persistence.Booking
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:     make(map[string]persistence.User),
		roomTypes: make(map[string]persistence.RoomType),
		rooms:     make(map[string]persistence.Room),
		bookings:  make(map[string]persistence.Booking),
	}
}

// Migrate is a no-op.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(_ context.Context, user persistence.User) error {
	if user.ID == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%w: user %s", persistence.ErrDuplicate, user.ID)
	}
	if err := s.ensureUniqueUserLocked(user); err != nil {
		return err
	}

	user.Email = normalizeEmail(user.Email)
	s.users[user.ID] = user
	return nil
}

// UpdateUser updates an existing user.
func (s *Storage) UpdateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueUserLocked(user); err != nil {
		return err
	}

	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = existing.CreatedAt
	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(_ context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Storage) GetUserByEmail(_ context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	normalized := normalizeEmail(email)
	for _, user := range s.users {
		if user.Email == normalized {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// GetUserBySubject retrieves a user by external identity subject.
func (s *Storage) GetUserBySubject(_ context.Context, subject string) (persistence.User, error) {
	if subject == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Subject == subject {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (s *Storage) ensureUniqueUserLocked(candidate persistence.User) error {
	email := normalizeEmail(candidate.Email)
	for id, user := range s.users {
		if id == candidate.ID {
			continue
		}
		if user.Email == email {
			return fmt.Errorf("%w: email %s", persistence.ErrDuplicate, email)
		}
		if candidate.Subject != "" && user.Subject == candidate.Subject {
			return fmt.Errorf("%w: subject %s", persistence.ErrDuplicate, candidate.Subject)
		}
	}
	return nil
}

// --- RoomTypeRepository implementation ---

// CreateRoomType stores a new room type.
func (s *Storage) CreateRoomType(_ context.Context, roomType persistence.RoomType) error {
	if roomType.ID == "" || strings.TrimSpace(roomType.Name) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roomTypes[roomType.ID]; ok {
		return fmt.Errorf("%w: room type %s", persistence.ErrDuplicate, roomType.ID)
	}
	if err := s.ensureUniqueRoomTypeNameLocked(roomType); err != nil {
		return err
	}

	s.roomTypes[roomType.ID] = cloneRoomType(roomType)
	return nil
}

// UpdateRoomType updates an existing room type.
func (s *Storage) UpdateRoomType(_ context.Context, roomType persistence.RoomType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.roomTypes[roomType.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueRoomTypeNameLocked(roomType); err != nil {
		return err
	}

	roomType.CreatedAt = existing.CreatedAt
	s.roomTypes[roomType.ID] = cloneRoomType(roomType)
	return nil
}

// GetRoomType retrieves a room type by ID.
func (s *Storage) GetRoomType(_ context.Context, id string) (persistence.RoomType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomType, ok := s.roomTypes[id]
	if !ok {
		return persistence.RoomType{}, persistence.ErrNotFound
	}
	return cloneRoomType(roomType), nil
}

// ListRoomTypes returns all room types ordered by name.
func (s *Storage) ListRoomTypes(_ context.Context) ([]persistence.RoomType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomTypes := make([]persistence.RoomType, 0, len(s.roomTypes))
	for _, roomType := range s.roomTypes {
		roomTypes = append(roomTypes, cloneRoomType(roomType))
	}

	sort.Slice(roomTypes, func(i, j int) bool {
		left, right := strings.ToLower(roomTypes[i].Name), strings.ToLower(roomTypes[j].Name)
		if left == right {
			return roomTypes[i].ID < roomTypes[j].ID
		}
		return left < right
	})
	return roomTypes, nil
}

// DeleteRoomType removes a room type that no room references.
func (s *Storage) DeleteRoomType(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roomTypes[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, room := range s.rooms {
		if room.RoomTypeID == id {
			return fmt.Errorf("%w: room type %s is referenced by room %s", persistence.ErrForeignKeyViolation, id, room.ID)
		}
	}

	delete(s.roomTypes, id)
	return nil
}

func (s *Storage) ensureUniqueRoomTypeNameLocked(candidate persistence.RoomType) error {
	name := strings.ToLower(candidate.Name)
	for id, roomType := range s.roomTypes {
		if id != candidate.ID && strings.ToLower(roomType.Name) == name {
			return fmt.Errorf("%w: room type name %s", persistence.ErrDuplicate, candidate.Name)
		}
	}
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(_ context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("%w: room %s", persistence.ErrDuplicate, room.ID)
	}
	if err := s.checkRoomLocked(room); err != nil {
		return err
	}

	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// UpdateRoom updates an existing room.
func (s *Storage) UpdateRoom(_ context.Context, room persistence.Room) error {
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.checkRoomLocked(room); err != nil {
		return err
	}

	room.CreatedAt = existing.CreatedAt
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(_ context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

// ListRooms returns rooms matching filter ordered by name.
func (s *Storage) ListRooms(_ context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if filter.RoomTypeID != nil && room.RoomTypeID != *filter.RoomTypeID {
			continue
		}
		if filter.ActiveOnly && !room.IsActive {
			continue
		}
		rooms = append(rooms, cloneRoom(room))
	}

	sort.Slice(rooms, func(i, j int) bool {
		left, right := strings.ToLower(rooms[i].Name), strings.ToLower(rooms[j].Name)
		if left == right {
			return rooms[i].ID < rooms[j].ID
		}
		return left < right
	})
	return rooms, nil
}

// DeleteRoom removes a room that no booking references.
func (s *Storage) DeleteRoom(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, booking := range s.bookings {
		if booking.RoomID == id {
			return fmt.Errorf("%w: room %s is referenced by booking %s", persistence.ErrForeignKeyViolation, id, booking.ID)
		}
	}

	delete(s.rooms, id)
	return nil
}

// CountRoomsByType counts rooms of the given type.
func (s *Storage) CountRoomsByType(_ context.Context, roomTypeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, room := range s.rooms {
		if room.RoomTypeID == roomTypeID {
			count++
		}
	}
	return count, nil
}

func (s *Storage) checkRoomLocked(candidate persistence.Room) error {
	if _, ok := s.roomTypes[candidate.RoomTypeID]; !ok {
		return fmt.Errorf("%w: room type %s does not exist", persistence.ErrForeignKeyViolation, candidate.RoomTypeID)
	}
	name := strings.ToLower(candidate.Name)
	for id, room := range s.rooms {
		if id != candidate.ID && strings.ToLower(room.Name) == name {
			return fmt.Errorf("%w: room name %s", persistence.ErrDuplicate, candidate.Name)
		}
	}
	return nil
}

// --- BookingRepository implementation ---

// CreateBooking stores a new booking unless it overlaps a confirmed booking.
func (s *Storage) CreateBooking(_ context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return fmt.Errorf("%w: booking %s", persistence.ErrDuplicate, booking.ID)
	}
	if err := s.checkBookingLocked(booking); err != nil {
		return err
	}

	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// UpdateBooking updates an existing booking unless the result overlaps a
// confirmed booking.
func (s *Storage) UpdateBooking(_ context.Context, booking persistence.Booking) error {
	if !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookings[booking.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.checkBookingLocked(booking); err != nil {
		return err
	}

	booking.UserID = existing.UserID
	booking.CreatedAt = existing.CreatedAt
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(_ context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(booking), nil
}

// ListBookings returns bookings matching filter ordered by start then ID.
func (s *Storage) ListBookings(_ context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]persistence.Booking, 0)
	for _, booking := range s.bookings {
		if !persistence.MatchesBooking(booking, filter) {
			continue
		}
		bookings = append(bookings, cloneBooking(booking))
	}

	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
	return bookings, nil
}

// DeleteBooking removes a booking by ID.
func (s *Storage) DeleteBooking(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

// CountBookingsByRoom counts bookings of any status held against a room.
func (s *Storage) CountBookingsByRoom(_ context.Context, roomID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, booking := range s.bookings {
		if booking.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (s *Storage) checkBookingLocked(candidate persistence.Booking) error {
	if _, ok := s.rooms[candidate.RoomID]; !ok {
		return fmt.Errorf("%w: room %s does not exist", persistence.ErrForeignKeyViolation, candidate.RoomID)
	}
	if _, ok := s.users[candidate.UserID]; !ok {
		return fmt.Errorf("%w: user %s does not exist", persistence.ErrForeignKeyViolation, candidate.UserID)
	}
	if candidate.Status != persistence.BookingStatusConfirmed && candidate.Status != persistence.BookingStatusCancelled {
		return fmt.Errorf("%w: unknown status %q", persistence.ErrConstraintViolation, candidate.Status)
	}
	for _, booking := range s.bookings {
		if persistence.Overlaps(candidate, booking) {
			return fmt.Errorf("%w: conflicts with booking %s", persistence.ErrOverlap, booking.ID)
		}
	}
	return nil
}

// --- Helpers ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneRoomType(roomType persistence.RoomType) persistence.RoomType {
	roomType.Description = cloneString(roomType.Description)
	return roomType
}

func cloneRoom(room persistence.Room) persistence.Room {
	room.Building = cloneString(room.Building)
	room.Floor = cloneString(room.Floor)
	room.Description = cloneString(room.Description)
	return room
}

func cloneBooking(booking persistence.Booking) persistence.Booking {
	booking.Notes = cloneString(booking.Notes)
	return booking
}

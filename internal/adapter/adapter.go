// Package adapter bridges persistence stores onto the repository interfaces
// consumed by the application services. Errors are passed through untouched;
// the services map persistence sentinels themselves.
package adapter

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// NewID returns a random UUID string. It is the production id generator.
func NewID() string {
	return uuid.NewString()
}

// Repositories groups the application repositories backed by one store.
type Repositories struct {
	Users     application.UserRepository
	RoomTypes application.RoomTypeRepository
	Rooms     application.RoomRepository
	Bookings  application.BookingRepository
	Directory application.RoomDirectory
}

// New adapts every repository of store.
func New(store persistence.Store) Repositories {
	rooms := NewRoomRepository(store)
	return Repositories{
		Users:     NewUserRepository(store),
		RoomTypes: NewRoomTypeRepository(store),
		Rooms:     rooms,
		Bookings:  NewBookingRepository(store),
		Directory: application.NewRoomDirectory(rooms),
	}
}

type bookingRepository struct {
	repo persistence.BookingRepository
}

// NewBookingRepository adapts a persistence booking repository.
func NewBookingRepository(repo persistence.BookingRepository) application.BookingRepository {
	return &bookingRepository{repo: repo}
}

func (a *bookingRepository) FindConfirmedByRoom(ctx context.Context, roomID string) ([]application.Booking, error) {
	status := persistence.BookingStatusConfirmed
	return a.list(ctx, persistence.BookingFilter{RoomID: &roomID, Status: &status})
}

func (a *bookingRepository) FindByID(ctx context.Context, id string) (application.Booking, error) {
	stored, err := a.repo.GetBooking(ctx, id)
	if err != nil {
		return application.Booking{}, err
	}
	return toApplicationBooking(stored), nil
}

func (a *bookingRepository) Insert(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.CreateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return a.FindByID(ctx, booking.ID)
}

func (a *bookingRepository) Update(ctx context.Context, booking application.Booking) (application.Booking, error) {
	if err := a.repo.UpdateBooking(ctx, toPersistenceBooking(booking)); err != nil {
		return application.Booking{}, err
	}
	return a.FindByID(ctx, booking.ID)
}

func (a *bookingRepository) Delete(ctx context.Context, id string) error {
	return a.repo.DeleteBooking(ctx, id)
}

func (a *bookingRepository) FindByUser(ctx context.Context, userID string) ([]application.Booking, error) {
	return a.list(ctx, persistence.BookingFilter{UserID: &userID})
}

func (a *bookingRepository) FindAll(ctx context.Context) ([]application.Booking, error) {
	return a.list(ctx, persistence.BookingFilter{})
}

func (a *bookingRepository) CountByRoom(ctx context.Context, roomID string) (int, error) {
	return a.repo.CountBookingsByRoom(ctx, roomID)
}

func (a *bookingRepository) list(ctx context.Context, filter persistence.BookingFilter) ([]application.Booking, error) {
	models, err := a.repo.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	bookings := make([]application.Booking, 0, len(models))
	for _, model := range models {
		bookings = append(bookings, toApplicationBooking(model))
	}
	return bookings, nil
}

type roomRepository struct {
	repo persistence.RoomRepository
}

// NewRoomRepository adapts a persistence room repository.
func NewRoomRepository(repo persistence.RoomRepository) application.RoomRepository {
	return &roomRepository{repo: repo}
}

func (a *roomRepository) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepository) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepository) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepository) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *roomRepository) ListRooms(ctx context.Context, roomTypeID *string, activeOnly bool) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx, persistence.RoomFilter{RoomTypeID: roomTypeID, ActiveOnly: activeOnly})
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

func (a *roomRepository) CountRoomsByType(ctx context.Context, roomTypeID string) (int, error) {
	return a.repo.CountRoomsByType(ctx, roomTypeID)
}

type roomTypeRepository struct {
	repo persistence.RoomTypeRepository
}

// NewRoomTypeRepository adapts a persistence room type repository.
func NewRoomTypeRepository(repo persistence.RoomTypeRepository) application.RoomTypeRepository {
	return &roomTypeRepository{repo: repo}
}

func (a *roomTypeRepository) CreateRoomType(ctx context.Context, roomType application.RoomType) (application.RoomType, error) {
	if err := a.repo.CreateRoomType(ctx, toPersistenceRoomType(roomType)); err != nil {
		return application.RoomType{}, err
	}
	return a.GetRoomType(ctx, roomType.ID)
}

func (a *roomTypeRepository) GetRoomType(ctx context.Context, id string) (application.RoomType, error) {
	stored, err := a.repo.GetRoomType(ctx, id)
	if err != nil {
		return application.RoomType{}, err
	}
	return toApplicationRoomType(stored), nil
}

func (a *roomTypeRepository) UpdateRoomType(ctx context.Context, roomType application.RoomType) (application.RoomType, error) {
	if err := a.repo.UpdateRoomType(ctx, toPersistenceRoomType(roomType)); err != nil {
		return application.RoomType{}, err
	}
	return a.GetRoomType(ctx, roomType.ID)
}

func (a *roomTypeRepository) DeleteRoomType(ctx context.Context, id string) error {
	return a.repo.DeleteRoomType(ctx, id)
}

func (a *roomTypeRepository) ListRoomTypes(ctx context.Context) ([]application.RoomType, error) {
	models, err := a.repo.ListRoomTypes(ctx)
	if err != nil {
		return nil, err
	}
	types := make([]application.RoomType, 0, len(models))
	for _, model := range models {
		types = append(types, toApplicationRoomType(model))
	}
	return types, nil
}

type userRepository struct {
	repo persistence.UserRepository
}

// NewUserRepository adapts a persistence user repository.
func NewUserRepository(repo persistence.UserRepository) application.UserRepository {
	return &userRepository{repo: repo}
}

func (a *userRepository) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(creds.User, creds.PasswordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, creds.User.ID)
}

func (a *userRepository) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepository) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{User: toApplicationUser(stored), PasswordHash: stored.PasswordHash}, nil
}

func (a *userRepository) GetUserBySubject(ctx context.Context, subject string) (application.User, error) {
	stored, err := a.repo.GetUserBySubject(ctx, subject)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	return application.Booking{
		ID:        model.ID,
		RoomID:    model.RoomID,
		UserID:    model.UserID,
		Start:     model.Start,
		End:       model.End,
		Notes:     cloneString(model.Notes),
		Status:    scheduler.Status(model.Status),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	return persistence.Booking{
		ID:        booking.ID,
		RoomID:    booking.RoomID,
		UserID:    booking.UserID,
		Start:     booking.Start,
		End:       booking.End,
		Notes:     cloneString(booking.Notes),
		Status:    string(booking.Status),
		CreatedAt: booking.CreatedAt,
		UpdatedAt: booking.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:          model.ID,
		Name:        model.Name,
		Capacity:    model.Capacity,
		Building:    cloneString(model.Building),
		Floor:       cloneString(model.Floor),
		Description: cloneString(model.Description),
		RoomTypeID:  model.RoomTypeID,
		IsActive:    model.IsActive,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:          room.ID,
		Name:        room.Name,
		Capacity:    room.Capacity,
		Building:    cloneString(room.Building),
		Floor:       cloneString(room.Floor),
		Description: cloneString(room.Description),
		RoomTypeID:  room.RoomTypeID,
		IsActive:    room.IsActive,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
}

func toApplicationRoomType(model persistence.RoomType) application.RoomType {
	return application.RoomType{
		ID:          model.ID,
		Name:        model.Name,
		Description: cloneString(model.Description),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceRoomType(roomType application.RoomType) persistence.RoomType {
	return persistence.RoomType{
		ID:          roomType.ID,
		Name:        roomType.Name,
		Description: cloneString(roomType.Description),
		CreatedAt:   roomType.CreatedAt,
		UpdatedAt:   roomType.UpdatedAt,
	}
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:        model.ID,
		Subject:   optional(model.Subject),
		Email:     model.Email,
		FirstName: optional(model.FirstName),
		LastName:  optional(model.LastName),
		IsAdmin:   model.IsAdmin,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Subject:      deref(user.Subject),
		Email:        user.Email,
		FirstName:    deref(user.FirstName),
		LastName:     deref(user.LastName),
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

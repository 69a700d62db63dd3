package application

import (
	"context"

	"github.com/example/room-booking/internal/events"
)

// BookingRepository captures the persistence operations needed by the booking services.
type BookingRepository interface {
	FindConfirmedByRoom(ctx context.Context, roomID string) ([]Booking, error)
	FindByID(ctx context.Context, id string) (Booking, error)
	Insert(ctx context.Context, booking Booking) (Booking, error)
	Update(ctx context.Context, booking Booking) (Booking, error)
	Delete(ctx context.Context, id string) error
	FindByUser(ctx context.Context, userID string) ([]Booking, error)
	FindAll(ctx context.Context) ([]Booking, error)
	CountByRoom(ctx context.Context, roomID string) (int, error)
}

// RoomRepository captures the persistence operations needed for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListRooms(ctx context.Context, roomTypeID *string, activeOnly bool) ([]Room, error)
	CountRoomsByType(ctx context.Context, roomTypeID string) (int, error)
}

// RoomTypeRepository captures the persistence operations needed for room types.
type RoomTypeRepository interface {
	CreateRoomType(ctx context.Context, roomType RoomType) (RoomType, error)
	GetRoomType(ctx context.Context, id string) (RoomType, error)
	UpdateRoomType(ctx context.Context, roomType RoomType) (RoomType, error)
	DeleteRoomType(ctx context.Context, id string) error
	ListRoomTypes(ctx context.Context) ([]RoomType, error)
}

// UserRepository captures the persistence operations needed for accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, creds UserCredentials) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUserBySubject(ctx context.Context, subject string) (User, error)
}

// RoomDirectory answers the room questions asked by the booking engine.
type RoomDirectory interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	IsRoomActive(ctx context.Context, id string) (bool, error)
}

// RoomLocker serialises check-then-write sequences per room.
type RoomLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// EventPublisher receives booking lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type repositoryDirectory struct {
	rooms RoomRepository
}

// NewRoomDirectory exposes a RoomRepository as a RoomDirectory.
func NewRoomDirectory(rooms RoomRepository) RoomDirectory {
	return repositoryDirectory{rooms: rooms}
}

func (d repositoryDirectory) GetRoom(ctx context.Context, id string) (Room, error) {
	room, err := d.rooms.GetRoom(ctx, id)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

func (d repositoryDirectory) IsRoomActive(ctx context.Context, id string) (bool, error) {
	room, err := d.GetRoom(ctx, id)
	if err != nil {
		return false, err
	}
	return room.IsActive, nil
}

package persistence

import (
	"context"
	"time"
)

// UserRepository stores user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserBySubject(ctx context.Context, subject string) (User, error)
}

// RoomTypeRepository exposes CRUD operations for room types.
type RoomTypeRepository interface {
	CreateRoomType(ctx context.Context, roomType RoomType) error
	UpdateRoomType(ctx context.Context, roomType RoomType) error
	GetRoomType(ctx context.Context, id string) (RoomType, error)
	ListRoomTypes(ctx context.Context) ([]RoomType, error)
	DeleteRoomType(ctx context.Context, id string) error
}

// RoomFilter narrows room listings.
type RoomFilter struct {
	RoomTypeID *string
	ActiveOnly bool
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
	CountRoomsByType(ctx context.Context, roomTypeID string) (int, error)
}

// BookingFilter narrows booking queries. From and To select bookings whose
// interval touches [From, To] inclusively.
type BookingFilter struct {
	RoomID *string
	UserID *string
	Status *string
	From   *time.Time
	To     *time.Time
}

// BookingRepository stores bookings. Implementations must reject a confirmed
// booking that overlaps another confirmed booking of the same room with ErrOverlap.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	UpdateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	CountBookingsByRoom(ctx context.Context, roomID string) (int, error)
}

// Store bundles every repository behind one backing database.
type Store interface {
	UserRepository
	RoomTypeRepository
	RoomRepository
	BookingRepository
	Migrate(ctx context.Context) error
	Close() error
}

// MatchesBooking reports whether booking satisfies filter. Stores without a
// query language use it to evaluate filters in memory.
func MatchesBooking(booking Booking, filter BookingFilter) bool {
	if filter.RoomID != nil && booking.RoomID != *filter.RoomID {
		return false
	}
	if filter.UserID != nil && booking.UserID != *filter.UserID {
		return false
	}
	if filter.Status != nil && booking.Status != *filter.Status {
		return false
	}
	if filter.To != nil && booking.Start.After(*filter.To) {
		return false
	}
	if filter.From != nil && booking.End.Before(*filter.From) {
		return false
	}
	return true
}

// Overlaps reports whether two bookings occupy the same room at the same time
// and both hold a slot.
func Overlaps(a, b Booking) bool {
	if a.RoomID != b.RoomID || a.ID == b.ID {
		return false
	}
	if a.Status != BookingStatusConfirmed || b.Status != BookingStatusConfirmed {
		return false
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

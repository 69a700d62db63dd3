package application

import (
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// owns reports whether the principal may act on a resource owned by userID.
func (p Principal) owns(userID string) bool {
	return p.IsAdmin || (p.UserID != "" && p.UserID == userID)
}

// Booking is a reservation of one room for one interval.
type Booking struct {
	ID        string
	RoomID    string
	UserID    string
	Start     time.Time
	End       time.Time
	Notes     *string
	Status    scheduler.Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the booked time range.
func (b Booking) Interval() scheduler.Interval {
	return scheduler.Interval{Start: b.Start, End: b.End}
}

// IsCancelled reports whether the booking reached its terminal state.
func (b Booking) IsCancelled() bool {
	return b.Status == scheduler.StatusCancelled
}

func (b Booking) reservation() scheduler.Reservation {
	return scheduler.Reservation{ID: b.ID, RoomID: b.RoomID, Interval: b.Interval(), Status: b.Status}
}

// BookingInput captures caller provided booking fields. UserID defaults to
// the acting principal.
type BookingInput struct {
	RoomID string
	UserID string
	Start  time.Time
	End    time.Time
	Notes  *string
}

// CreateBookingParams wraps the data required to create a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// UpdateBookingParams wraps the data required to edit a booking. Nil fields
// keep their stored value.
type UpdateBookingParams struct {
	Principal Principal
	BookingID string
	Start     *time.Time
	End       *time.Time
	Notes     *string
}

// Availability is the outcome of an availability check.
type Availability struct {
	Available   bool
	Conflicting *Booking
}

// SortOrder selects the ordering of booking listings.
type SortOrder string

const (
	// SortAscending orders by start time, then ID. It is the default.
	SortAscending SortOrder = "asc"
	// SortDescending reverses the ascending order.
	SortDescending SortOrder = "desc"
)

// ListOptions narrows and orders booking listings.
type ListOptions struct {
	Order    SortOrder
	Statuses []scheduler.DisplayStatus
}

// RoomSummary is the room data attached to a booking view.
type RoomSummary struct {
	ID       string
	Name     string
	Capacity int
	Building *string
	Floor    *string
	IsActive bool
}

// RoomTypeSummary is the room type data attached to a booking view.
type RoomTypeSummary struct {
	ID   string
	Name string
}

// UserSummary is the user data attached to a booking view.
type UserSummary struct {
	ID        string
	Email     string
	FirstName *string
	LastName  *string
}

// BookingView is a booking resolved for display.
type BookingView struct {
	Booking       Booking
	Room          RoomSummary
	RoomType      RoomTypeSummary
	User          UserSummary
	DisplayStatus scheduler.DisplayStatus
}

// RoomType groups rooms by purpose.
type RoomType struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoomTypeInput captures caller provided room type fields.
type RoomTypeInput struct {
	Name        string
	Description *string
}

// CreateRoomTypeParams wraps the data required to create a room type.
type CreateRoomTypeParams struct {
	Principal Principal
	Input     RoomTypeInput
}

// UpdateRoomTypeParams wraps the data required to update a room type.
type UpdateRoomTypeParams struct {
	Principal  Principal
	RoomTypeID string
	Input      RoomTypeInput
}

// RoomInput captures caller provided room fields. A nil Capacity defaults to
// DefaultRoomCapacity and a nil IsActive defaults to true on creation.
type RoomInput struct {
	Name        string
	Capacity    *int
	Building    *string
	Floor       *string
	Description *string
	RoomTypeID  string
	IsActive    *bool
}

// DefaultRoomCapacity is used when a room is created without a capacity.
const DefaultRoomCapacity = 30

// Room represents a bookable room.
type Room struct {
	ID          string
	Name        string
	Capacity    int
	Building    *string
	Floor       *string
	Description *string
	RoomTypeID  string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoomDetails is a room together with its type.
type RoomDetails struct {
	Room     Room
	RoomType RoomType
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// User represents an account exposed by the application services.
type User struct {
	ID        string
	Subject   *string
	Email     string
	FirstName *string
	LastName  *string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// RegisterParams captures the data required for local sign-up.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

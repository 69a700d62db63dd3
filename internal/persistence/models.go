package persistence

import "time"

// Booking status values as stored.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// User represents an account that can hold bookings.
type User struct {
	ID           string
	Subject      string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoomType groups rooms by purpose, e.g. lecture hall or lab.
type RoomType struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Room represents a bookable room catalog entry.
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

// Booking represents a reservation row.
type Booking struct {
	ID        string
	RoomID    string
	UserID    string
	Start     time.Time
	End       time.Time
	Notes     *string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

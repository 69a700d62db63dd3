// Package storetest holds the behaviour every persistence.Store must share.
// Store packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/persistence"
)

// Factory returns a freshly migrated, empty store.
type Factory func(t *testing.T) persistence.Store

var base = time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)

// Run executes the conformance suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("room types", func(t *testing.T) { testRoomTypes(t, open(t)) })
	t.Run("rooms", func(t *testing.T) { testRooms(t, open(t)) })
	t.Run("bookings", func(t *testing.T) { testBookings(t, open(t)) })
	t.Run("overlap guard", func(t *testing.T) { testOverlapGuard(t, open(t)) })
	t.Run("concurrent inserts", func(t *testing.T) { testConcurrentInserts(t, open(t)) })
}

func testUsers(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	user := persistence.User{
		ID:           "user-1",
		Subject:      "idp|alice",
		Email:        "Alice@Example.com",
		FirstName:    "Alice",
		LastName:     "Liddell",
		PasswordHash: "hash",
		IsAdmin:      true,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
	require.NoError(t, store.CreateUser(ctx, user))

	fetched, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", fetched.Email)
	assert.True(t, fetched.IsAdmin)
	assert.True(t, fetched.CreatedAt.Equal(base))

	byEmail, err := store.GetUserByEmail(ctx, "ALICE@example.COM")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	bySubject, err := store.GetUserBySubject(ctx, "idp|alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, bySubject.ID)

	_, err = store.GetUserBySubject(ctx, "idp|nobody")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	duplicate := user
	duplicate.ID = "user-2"
	duplicate.Subject = ""
	duplicate.Email = "alice@example.com"
	assert.ErrorIs(t, store.CreateUser(ctx, duplicate), persistence.ErrDuplicate)

	user.FirstName = "Al"
	user.IsAdmin = false
	user.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, store.UpdateUser(ctx, user))

	fetched, err = store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Al", fetched.FirstName)
	assert.False(t, fetched.IsAdmin)

	missing := user
	missing.ID = "ghost"
	assert.ErrorIs(t, store.UpdateUser(ctx, missing), persistence.ErrNotFound)
}

func testRoomTypes(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	description := "Teaching labs"
	require.NoError(t, store.CreateRoomType(ctx, persistence.RoomType{ID: "type-lab", Name: "Lab", Description: &description, CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, store.CreateRoomType(ctx, persistence.RoomType{ID: "type-aud", Name: "Auditorium", CreatedAt: base, UpdatedAt: base}))

	err := store.CreateRoomType(ctx, persistence.RoomType{ID: "type-dup", Name: "lab", CreatedAt: base, UpdatedAt: base})
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	types, err := store.ListRoomTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Auditorium", types[0].Name)
	assert.Equal(t, "Lab", types[1].Name)
	require.NotNil(t, types[1].Description)
	assert.Equal(t, description, *types[1].Description)

	renamed := types[0]
	renamed.Name = "Lecture Hall"
	renamed.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, store.UpdateRoomType(ctx, renamed))

	fetched, err := store.GetRoomType(ctx, "type-aud")
	require.NoError(t, err)
	assert.Equal(t, "Lecture Hall", fetched.Name)

	require.NoError(t, store.CreateRoom(ctx, room("room-1", "Lab 101", "type-lab")))
	assert.ErrorIs(t, store.DeleteRoomType(ctx, "type-lab"), persistence.ErrForeignKeyViolation)

	require.NoError(t, store.DeleteRoomType(ctx, "type-aud"))
	assert.ErrorIs(t, store.DeleteRoomType(ctx, "type-aud"), persistence.ErrNotFound)
	_, err = store.GetRoomType(ctx, "type-aud")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testRooms(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	seedTypes(t, store)

	inactive := room("room-c", "Chem Lab", "type-lab")
	inactive.IsActive = false
	require.NoError(t, store.CreateRoom(ctx, room("room-b", "Bio Lab", "type-lab")))
	require.NoError(t, store.CreateRoom(ctx, inactive))
	require.NoError(t, store.CreateRoom(ctx, room("room-a", "Aula", "type-aud")))

	assert.ErrorIs(t, store.CreateRoom(ctx, room("room-x", "bio lab", "type-lab")), persistence.ErrDuplicate)
	assert.ErrorIs(t, store.CreateRoom(ctx, room("room-y", "Orphan", "type-missing")), persistence.ErrForeignKeyViolation)

	all, err := store.ListRooms(ctx, persistence.RoomFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"room-a", "room-b", "room-c"}, roomIDs(all))

	labType := "type-lab"
	activeLabs, err := store.ListRooms(ctx, persistence.RoomFilter{RoomTypeID: &labType, ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"room-b"}, roomIDs(activeLabs))

	count, err := store.CountRoomsByType(ctx, "type-lab")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	building := "North"
	inactive.Building = &building
	inactive.IsActive = true
	inactive.Capacity = 12
	inactive.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, store.UpdateRoom(ctx, inactive))

	fetched, err := store.GetRoom(ctx, "room-c")
	require.NoError(t, err)
	assert.True(t, fetched.IsActive)
	assert.Equal(t, 12, fetched.Capacity)
	require.NotNil(t, fetched.Building)
	assert.Equal(t, "North", *fetched.Building)

	seedUser(t, store, "user-1")
	require.NoError(t, store.CreateBooking(ctx, booking("b-1", "room-a", "user-1", 0, 60)))
	assert.ErrorIs(t, store.DeleteRoom(ctx, "room-a"), persistence.ErrForeignKeyViolation)

	require.NoError(t, store.DeleteRoom(ctx, "room-b"))
	_, err = store.GetRoom(ctx, "room-b")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testBookings(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	seedTypes(t, store)
	require.NoError(t, store.CreateRoom(ctx, room("room-1", "Lab 1", "type-lab")))
	require.NoError(t, store.CreateRoom(ctx, room("room-2", "Lab 2", "type-lab")))
	seedUser(t, store, "user-1")
	seedUser(t, store, "user-2")

	notes := "weekly sync"
	first := booking("b-1", "room-1", "user-1", 60, 120)
	first.Notes = &notes
	require.NoError(t, store.CreateBooking(ctx, first))
	require.NoError(t, store.CreateBooking(ctx, booking("b-2", "room-1", "user-2", 0, 60)))
	require.NoError(t, store.CreateBooking(ctx, booking("b-3", "room-2", "user-1", 30, 90)))

	assert.ErrorIs(t, store.CreateBooking(ctx, booking("b-x", "room-missing", "user-1", 300, 360)), persistence.ErrForeignKeyViolation)

	fetched, err := store.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.True(t, fetched.Start.Equal(base.Add(60*time.Minute)))
	assert.True(t, fetched.End.Equal(base.Add(120*time.Minute)))
	require.NotNil(t, fetched.Notes)
	assert.Equal(t, notes, *fetched.Notes)
	assert.Equal(t, persistence.BookingStatusConfirmed, fetched.Status)

	roomID := "room-1"
	inRoom, err := store.ListBookings(ctx, persistence.BookingFilter{RoomID: &roomID})
	require.NoError(t, err)
	assert.Equal(t, []string{"b-2", "b-1"}, bookingIDs(inRoom))

	userID := "user-1"
	forUser, err := store.ListBookings(ctx, persistence.BookingFilter{UserID: &userID})
	require.NoError(t, err)
	assert.Equal(t, []string{"b-3", "b-1"}, bookingIDs(forUser))

	// Range bounds are inclusive: b-2 ends exactly where the range starts.
	from := base.Add(60 * time.Minute)
	to := base.Add(90 * time.Minute)
	inRange, err := store.ListBookings(ctx, persistence.BookingFilter{RoomID: &roomID, From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, []string{"b-2", "b-1"}, bookingIDs(inRange))

	fetched.Status = persistence.BookingStatusCancelled
	fetched.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, store.UpdateBooking(ctx, fetched))

	confirmed := persistence.BookingStatusConfirmed
	active, err := store.ListBookings(ctx, persistence.BookingFilter{RoomID: &roomID, Status: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, []string{"b-2"}, bookingIDs(active))

	count, err := store.CountBookingsByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.DeleteBooking(ctx, "b-2"))
	assert.ErrorIs(t, store.DeleteBooking(ctx, "b-2"), persistence.ErrNotFound)
	_, err = store.GetBooking(ctx, "b-2")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func testOverlapGuard(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	seedTypes(t, store)
	require.NoError(t, store.CreateRoom(ctx, room("room-1", "Lab 1", "type-lab")))
	require.NoError(t, store.CreateRoom(ctx, room("room-2", "Lab 2", "type-lab")))
	seedUser(t, store, "user-1")

	require.NoError(t, store.CreateBooking(ctx, booking("b-1", "room-1", "user-1", 60, 120)))

	assert.ErrorIs(t, store.CreateBooking(ctx, booking("b-2", "room-1", "user-1", 90, 150)), persistence.ErrOverlap)
	assert.ErrorIs(t, store.CreateBooking(ctx, booking("b-3", "room-1", "user-1", 0, 240)), persistence.ErrOverlap)

	// Adjacent slots and other rooms are fine.
	require.NoError(t, store.CreateBooking(ctx, booking("b-4", "room-1", "user-1", 120, 180)))
	require.NoError(t, store.CreateBooking(ctx, booking("b-5", "room-1", "user-1", 0, 60)))
	require.NoError(t, store.CreateBooking(ctx, booking("b-6", "room-2", "user-1", 60, 120)))

	moved := booking("b-4", "room-1", "user-1", 100, 180)
	assert.ErrorIs(t, store.UpdateBooking(ctx, moved), persistence.ErrOverlap)

	// A booking may be rewritten onto its own slot.
	same := booking("b-4", "room-1", "user-1", 120, 200)
	require.NoError(t, store.UpdateBooking(ctx, same))

	cancelled := booking("b-1", "room-1", "user-1", 60, 120)
	cancelled.Status = persistence.BookingStatusCancelled
	require.NoError(t, store.UpdateBooking(ctx, cancelled))
	require.NoError(t, store.CreateBooking(ctx, booking("b-7", "room-1", "user-1", 60, 120)))

	// Reviving the cancelled booking would now double-book the slot.
	revived := cancelled
	revived.Status = persistence.BookingStatusConfirmed
	assert.ErrorIs(t, store.UpdateBooking(ctx, revived), persistence.ErrOverlap)
}

func testConcurrentInserts(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	seedTypes(t, store)
	require.NoError(t, store.CreateRoom(ctx, room("room-1", "Lab 1", "type-lab")))
	seedUser(t, store, "user-1")

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		overlaps  int
		others    []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.CreateBooking(ctx, booking(fmt.Sprintf("b-%d", i), "room-1", "user-1", 60+i, 120+i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, persistence.ErrOverlap):
				overlaps++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	require.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, overlaps)
}

func seedTypes(t *testing.T, store persistence.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateRoomType(ctx, persistence.RoomType{ID: "type-lab", Name: "Lab", CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, store.CreateRoomType(ctx, persistence.RoomType{ID: "type-aud", Name: "Auditorium", CreatedAt: base, UpdatedAt: base}))
}

func seedUser(t *testing.T, store persistence.Store, id string) {
	t.Helper()
	require.NoError(t, store.CreateUser(context.Background(), persistence.User{
		ID:        id,
		Email:     id + "@example.com",
		CreatedAt: base,
		UpdatedAt: base,
	}))
}

func room(id, name, roomTypeID string) persistence.Room {
	return persistence.Room{
		ID:         id,
		Name:       name,
		Capacity:   30,
		RoomTypeID: roomTypeID,
		IsActive:   true,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
}

func booking(id, roomID, userID string, startMinute, endMinute int) persistence.Booking {
	return persistence.Booking{
		ID:        id,
		RoomID:    roomID,
		UserID:    userID,
		Start:     base.Add(time.Duration(startMinute) * time.Minute),
		End:       base.Add(time.Duration(endMinute) * time.Minute),
		Status:    persistence.BookingStatusConfirmed,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func roomIDs(rooms []persistence.Room) []string {
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return ids
}

func bookingIDs(bookings []persistence.Booking) []string {
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	return ids
}

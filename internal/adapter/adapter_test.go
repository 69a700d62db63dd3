package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/scheduler"
)

func TestRepositoriesOverMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	created := time.Date(2025, time.April, 7, 8, 0, 0, 0, time.UTC)
	repos := New(memory.New())

	user, err := repos.Users.CreateUser(ctx, application.UserCredentials{
		User:         application.User{ID: "user-1", Email: "one@example.com", CreatedAt: created, UpdatedAt: created},
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Nil(t, user.Subject, "empty subject must surface as nil")
	assert.Nil(t, user.FirstName)

	creds, err := repos.Users.GetUserCredentialsByEmail(ctx, "one@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", creds.PasswordHash)

	_, err = repos.RoomTypes.CreateRoomType(ctx, application.RoomType{ID: "type-1", Name: "Lab", CreatedAt: created, UpdatedAt: created})
	require.NoError(t, err)

	building := "North"
	room, err := repos.Rooms.CreateRoom(ctx, application.Room{
		ID: "room-1", Name: "Lab 1", Capacity: 12, Building: &building, RoomTypeID: "type-1", IsActive: true,
		CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)
	require.NotNil(t, room.Building)
	assert.Equal(t, "North", *room.Building)

	active, err := repos.Directory.IsRoomActive(ctx, "room-1")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = repos.Directory.IsRoomActive(ctx, "room-404")
	require.ErrorIs(t, err, application.ErrRoomNotFound)

	booking := application.Booking{
		ID: "b-1", RoomID: "room-1", UserID: "user-1",
		Start: created.Add(time.Hour), End: created.Add(2 * time.Hour),
		Status: scheduler.StatusConfirmed, CreatedAt: created, UpdatedAt: created,
	}
	stored, err := repos.Bookings.Insert(ctx, booking)
	require.NoError(t, err)
	assert.True(t, stored.Interval().Equal(booking.Interval()))
	assert.Equal(t, scheduler.StatusConfirmed, stored.Status)

	overlapping := booking
	overlapping.ID = "b-2"
	_, err = repos.Bookings.Insert(ctx, overlapping)
	require.ErrorIs(t, err, persistence.ErrOverlap, "store errors pass through unmapped")

	stored.Status = scheduler.StatusCancelled
	_, err = repos.Bookings.Update(ctx, stored)
	require.NoError(t, err)

	confirmed, err := repos.Bookings.FindConfirmedByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Empty(t, confirmed)

	mine, err := repos.Bookings.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, scheduler.StatusCancelled, mine[0].Status)

	count, err := repos.Bookings.CountByRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewID(t *testing.T) {
	t.Parallel()

	first, second := NewID(), NewID()
	assert.NotEqual(t, first, second)
	_, err := uuid.Parse(first)
	require.NoError(t, err)
}

package http

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

const createBody = `{"room_id":"room-1","start":"2099-01-05T09:00:00Z","end":"2099-01-05T10:00:00Z","notes":"  standup  "}`

func TestBookingHandlers_Create(t *testing.T) {
	t.Parallel()

	t.Run("returns the resolved booking with its display status", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodPost, "/bookings", "member-token", createBody)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		booking := decodeBody(t, rec)["booking"].(map[string]any)
		assert.Equal(t, "b-new", booking["id"])
		assert.Equal(t, "upcoming", booking["display_status"])
		assert.Equal(t, "confirmed", booking["status"])
		assert.Equal(t, "standup", booking["notes"])
		assert.Equal(t, "2099-01-05T09:00:00Z", booking["start"])
		assert.Equal(t, "Lab", booking["room"].(map[string]any)["name"])

		require.Len(t, f.bookings.created, 1)
		assert.Equal(t, member, f.bookings.created[0].Principal)
	})

	t.Run("slot conflicts carry the blocking booking", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)
		f.bookings.createErr = &application.SlotConflictError{Conflicting: sampleBooking("b-9")}

		rec := serve(t, f.handler, http.MethodPost, "/bookings", "member-token", createBody)
		require.Equal(t, http.StatusConflict, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "SLOT_CONFLICT", body["error_code"])
		conflicting := body["conflicting_booking"].(map[string]any)
		assert.Equal(t, "b-9", conflicting["id"])
		assert.Equal(t, "upcoming", conflicting["display_status"])
	})

	t.Run("maps domain failures to status codes", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			err    error
			status int
			code   string
		}{
			{err: application.ErrInvalidInterval, status: http.StatusUnprocessableEntity, code: "INVALID_INTERVAL"},
			{err: application.ErrRoomInactive, status: http.StatusConflict, code: "ROOM_INACTIVE"},
			{err: application.ErrRoomNotFound, status: http.StatusNotFound, code: "ROOM_NOT_FOUND"},
			{err: application.ErrForbidden, status: http.StatusForbidden, code: "FORBIDDEN"},
			{err: application.ErrSlotConflict, status: http.StatusConflict, code: "SLOT_CONFLICT"},
			{err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: "INTERNAL"},
		}
		for _, tc := range cases {
			f := newFixture(false)
			f.bookings.createErr = tc.err

			rec := serve(t, f.handler, http.MethodPost, "/bookings", "member-token", createBody)
			assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)
			assert.Equal(t, tc.code, decodeBody(t, rec)["error_code"], "error %v", tc.err)
		}
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodPost, "/bookings", "member-token", `{"room_id":"room-1","colour":"red"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.bookings.created)
	})
}

func TestBookingHandlers_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("update forwards only supplied fields", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodPut, "/bookings/b-1", "member-token", `{"end":"2099-01-05T11:00:00Z"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		require.Len(t, f.bookings.updated, 1)
		params := f.bookings.updated[0]
		assert.Equal(t, "b-1", params.BookingID)
		assert.Nil(t, params.Start)
		require.NotNil(t, params.End)
		assert.Equal(t, "2099-01-05T11:00:00Z", decodeBody(t, rec)["booking"].(map[string]any)["end"])
	})

	t.Run("cancel reports the cancelled display status", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodPost, "/bookings/b-1/cancel", "member-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		booking := decodeBody(t, rec)["booking"].(map[string]any)
		assert.Equal(t, "cancelled", booking["status"])
		assert.Equal(t, "cancelled", booking["display_status"])

		f.bookings.cancelErr = application.ErrAlreadyCancelled
		rec = serve(t, f.handler, http.MethodPost, "/bookings/b-1/cancel", "member-token", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "ALREADY_CANCELLED", decodeBody(t, rec)["error_code"])
	})

	t.Run("view failures degrade to the bare booking", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)
		f.query.viewErr = errors.New("user lookup failed")

		rec := serve(t, f.handler, http.MethodPost, "/bookings/b-1/cancel", "member-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		booking := decodeBody(t, rec)["booking"].(map[string]any)
		assert.Equal(t, "cancelled", booking["display_status"])
		assert.NotContains(t, booking, "room")
	})

	t.Run("delete is reserved for administrators", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodDelete, "/bookings/b-1", "member-token", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = serve(t, f.handler, http.MethodDelete, "/bookings/b-1", "admin-token", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"b-1"}, f.bookings.deletedIDs)
	})

	t.Run("get reports missing bookings", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/bookings/b-1", "member-token", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = serve(t, f.handler, http.MethodGet, "/bookings/b-404", "member-token", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "BOOKING_NOT_FOUND", decodeBody(t, rec)["error_code"])
	})
}

func TestBookingHandlers_Listings(t *testing.T) {
	t.Parallel()

	t.Run("mine parses status filters and order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/bookings/mine?status=upcoming,past&status=canceled&order=DESC", "member-token", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.Equal(t, "", f.query.lastUserID)
		assert.Equal(t, application.SortDescending, f.query.lastOpts.Order)
		assert.Equal(t, []scheduler.DisplayStatus{scheduler.DisplayUpcoming, scheduler.DisplayPast, scheduler.DisplayCancelled}, f.query.lastOpts.Statuses)
		assert.Len(t, decodeBody(t, rec)["bookings"], 1)
	})

	t.Run("invalid filters are validation errors", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/bookings/mine?status=soon&order=sideways", "member-token", "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		fields := decodeBody(t, rec)["errors"].(map[string]any)
		assert.Contains(t, fields, "status")
		assert.Contains(t, fields, "order")
	})

	t.Run("other users' bookings need ownership or admin", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/users/user-2/bookings", "member-token", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = serve(t, f.handler, http.MethodGet, "/users/user-2/bookings", "admin-token", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-2", f.query.lastUserID)
	})

	t.Run("all bookings are admin only", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		assert.Equal(t, http.StatusForbidden, serve(t, f.handler, http.MethodGet, "/bookings", "member-token", "").Code)

		rec := serve(t, f.handler, http.MethodGet, "/bookings", "admin-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["bookings"], 2)
	})
}

func TestRoomHandlers(t *testing.T) {
	t.Parallel()

	t.Run("list filters by room type", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/rooms?room_type_id=type-lab", "member-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, f.rooms.lastTypeID)
		assert.Equal(t, "type-lab", *f.rooms.lastTypeID)

		serve(t, f.handler, http.MethodGet, "/rooms", "member-token", "")
		assert.Nil(t, f.rooms.lastTypeID)
	})

	t.Run("all rooms is not shadowed by the id route", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		assert.Equal(t, http.StatusForbidden, serve(t, f.handler, http.MethodGet, "/rooms/all", "member-token", "").Code)
		assert.Equal(t, http.StatusOK, serve(t, f.handler, http.MethodGet, "/rooms/all", "admin-token", "").Code)
	})

	t.Run("get includes the room type", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/rooms/room-1", "member-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		room := decodeBody(t, rec)["room"].(map[string]any)
		assert.Equal(t, "Laboratory", room["room_type"].(map[string]any)["name"])

		assert.Equal(t, http.StatusNotFound, serve(t, f.handler, http.MethodGet, "/rooms/room-x", "member-token", "").Code)
	})

	t.Run("create surfaces field errors", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodPost, "/rooms", "admin-token", `{"name":"   ","room_type_id":"type-lab"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["errors"], "name")

		rec = serve(t, f.handler, http.MethodPost, "/rooms", "admin-token", `{"name":" Lab 2 ","capacity":12,"room_type_id":"type-lab"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Lab 2", f.rooms.createInput.Name)
		require.NotNil(t, f.rooms.createInput.Capacity)
		assert.Equal(t, 12, *f.rooms.createInput.Capacity)
	})

	t.Run("referenced rooms and types cannot be deleted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)
		f.rooms.deleteErr = application.ErrRoomInUse

		rec := serve(t, f.handler, http.MethodDelete, "/rooms/room-1", "admin-token", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "ROOM_IN_USE", decodeBody(t, rec)["error_code"])

		rec = serve(t, f.handler, http.MethodDelete, "/room-types/type-lab", "admin-token", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "TYPE_IN_USE", decodeBody(t, rec)["error_code"])

		assert.Equal(t, http.StatusNoContent, serve(t, f.handler, http.MethodDelete, "/room-types/type-empty", "admin-token", "").Code)
	})

	t.Run("room types are listed and created", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/room-types", "member-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["room_types"], 1)

		assert.Equal(t, http.StatusForbidden, serve(t, f.handler, http.MethodPost, "/room-types", "member-token", `{"name":"Studio"}`).Code)
		assert.Equal(t, http.StatusCreated, serve(t, f.handler, http.MethodPost, "/room-types", "admin-token", `{"name":"Studio"}`).Code)
	})
}

func TestRoomHandlers_Availability(t *testing.T) {
	t.Parallel()

	const window = "start=2099-01-05T09:00:00Z&end=2099-01-05T10:00:00Z"

	t.Run("reports a free slot", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/rooms/room-1/availability?"+window+"&exclude=b-1", "member-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["available"])
		assert.NotContains(t, body, "conflicting_booking")
		assert.Equal(t, "b-1", f.availability.exclude)
	})

	t.Run("reports the conflicting booking", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)
		blocking := sampleBooking("b-7")
		f.availability.result = application.Availability{Conflicting: &blocking}

		rec := serve(t, f.handler, http.MethodGet, "/rooms/room-1/availability?"+window, "member-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["available"])
		assert.Equal(t, "b-7", body["conflicting_booking"].(map[string]any)["id"])
	})

	t.Run("validates the window", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/rooms/room-1/availability?start=tomorrow&end=2099-01-05T10:00:00Z", "member-token", "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["errors"], "start")

		rec = serve(t, f.handler, http.MethodGet, "/rooms/room-1/availability?start=2099-01-05T10:00:00Z&end=2099-01-05T09:00:00Z", "member-token", "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "INVALID_INTERVAL", decodeBody(t, rec)["error_code"])
	})

	t.Run("room calendar receives the parsed range", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodGet, "/rooms/room-1/bookings?"+window, "member-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, f.calendar.start.Equal(futureStart))
		assert.Len(t, decodeBody(t, rec)["bookings"], 1)
	})
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("local routes are hidden in external mode", func(t *testing.T) {
		t.Parallel()
		f := newFixture(false)

		rec := serve(t, f.handler, http.MethodPost, "/auth/login", "", `{"email":"user@example.com","password":"secret-pass"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("login issues a token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(true)

		rec := serve(t, f.handler, http.MethodPost, "/auth/login", "", `{"email":"user@example.com","password":"secret-pass"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "member-token", body["token"])
		assert.Equal(t, "2099-01-05T09:00:00Z", body["expires_at"])

		rec = serve(t, f.handler, http.MethodPost, "/auth/login", "", `{"email":"user@example.com","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "INVALID_CREDENTIALS", decodeBody(t, rec)["error_code"])
	})

	t.Run("register validates input", func(t *testing.T) {
		t.Parallel()
		f := newFixture(true)

		rec := serve(t, f.handler, http.MethodPost, "/auth/register", "", `{"email":"new@example.com","password":"short"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = serve(t, f.handler, http.MethodPost, "/auth/register", "", `{"email":"new@example.com","password":"long enough"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "user-new", decodeBody(t, rec)["user"].(map[string]any)["id"])
	})

	t.Run("me requires a token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(true)

		assert.Equal(t, http.StatusUnauthorized, serve(t, f.handler, http.MethodGet, "/auth/me", "", "").Code)

		rec := serve(t, f.handler, http.MethodGet, "/auth/me", "admin-token", "")
		require.Equal(t, http.StatusOK, rec.Code)
		user := decodeBody(t, rec)["user"].(map[string]any)
		assert.Equal(t, "admin-1", user["id"])
		assert.Equal(t, true, user["is_admin"])
	})
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(false)

	rec := serve(t, f.handler, http.MethodPatch, "/bookings/b-1", "member-token", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

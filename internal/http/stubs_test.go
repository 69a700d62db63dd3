package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

var (
	member = application.Principal{UserID: "user-1"}
	admin  = application.Principal{UserID: "admin-1", IsAdmin: true}

	futureStart = time.Date(2099, 1, 5, 9, 0, 0, 0, time.UTC)
)

type resolverStub map[string]application.Principal

func (r resolverStub) Resolve(_ context.Context, token string) (application.Principal, error) {
	principal, ok := r[token]
	if !ok {
		return application.Principal{}, application.ErrUnauthorized
	}
	return principal, nil
}

var testTokens = resolverStub{"member-token": member, "admin-token": admin}

type bookingServiceStub struct {
	createErr  error
	created    []application.CreateBookingParams
	updated    []application.UpdateBookingParams
	cancelErr  error
	deleteErr  error
	deletedIDs []string
}

func (s *bookingServiceStub) CreateBooking(_ context.Context, params application.CreateBookingParams) (application.Booking, error) {
	s.created = append(s.created, params)
	if s.createErr != nil {
		return application.Booking{}, s.createErr
	}
	userID := params.Input.UserID
	if userID == "" {
		userID = params.Principal.UserID
	}
	return application.Booking{
		ID:     "b-new",
		RoomID: params.Input.RoomID,
		UserID: userID,
		Start:  params.Input.Start,
		End:    params.Input.End,
		Notes:  params.Input.Notes,
		Status: scheduler.StatusConfirmed,
	}, nil
}

func (s *bookingServiceStub) UpdateBooking(_ context.Context, params application.UpdateBookingParams) (application.Booking, error) {
	s.updated = append(s.updated, params)
	booking := sampleBooking(params.BookingID)
	if params.Start != nil {
		booking.Start = *params.Start
	}
	if params.End != nil {
		booking.End = *params.End
	}
	return booking, nil
}

func (s *bookingServiceStub) CancelBooking(_ context.Context, _ application.Principal, bookingID string) (application.Booking, error) {
	if s.cancelErr != nil {
		return application.Booking{}, s.cancelErr
	}
	booking := sampleBooking(bookingID)
	booking.Status = scheduler.StatusCancelled
	return booking, nil
}

func (s *bookingServiceStub) DeleteBooking(_ context.Context, principal application.Principal, bookingID string) error {
	if !principal.IsAdmin {
		return application.ErrForbidden
	}
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedIDs = append(s.deletedIDs, bookingID)
	return nil
}

func (s *bookingServiceStub) GetBooking(_ context.Context, _ application.Principal, bookingID string) (application.Booking, error) {
	if bookingID != "b-1" {
		return application.Booking{}, application.ErrBookingNotFound
	}
	return sampleBooking(bookingID), nil
}

type bookingQueryStub struct {
	lastUserID string
	lastOpts   application.ListOptions
	viewErr    error
}

func (q *bookingQueryStub) ListForUser(_ context.Context, principal application.Principal, userID string, opts application.ListOptions) ([]application.BookingView, error) {
	q.lastUserID, q.lastOpts = userID, opts
	if userID != "" && userID != principal.UserID && !principal.IsAdmin {
		return nil, application.ErrForbidden
	}
	return []application.BookingView{sampleView("b-1")}, nil
}

func (q *bookingQueryStub) ListAll(_ context.Context, principal application.Principal, opts application.ListOptions) ([]application.BookingView, error) {
	q.lastOpts = opts
	if !principal.IsAdmin {
		return nil, application.ErrForbidden
	}
	return []application.BookingView{sampleView("b-1"), sampleView("b-2")}, nil
}

func (q *bookingQueryStub) View(_ context.Context, booking application.Booking) (application.BookingView, error) {
	if q.viewErr != nil {
		return application.BookingView{}, q.viewErr
	}
	view := sampleView(booking.ID)
	view.Booking = booking
	if booking.IsCancelled() {
		view.DisplayStatus = scheduler.DisplayCancelled
	}
	return view, nil
}

func sampleBooking(id string) application.Booking {
	return application.Booking{
		ID:     id,
		RoomID: "room-1",
		UserID: member.UserID,
		Start:  futureStart,
		End:    futureStart.Add(time.Hour),
		Status: scheduler.StatusConfirmed,
	}
}

func sampleView(id string) application.BookingView {
	return application.BookingView{
		Booking:       sampleBooking(id),
		Room:          application.RoomSummary{ID: "room-1", Name: "Lab", Capacity: 20, IsActive: true},
		RoomType:      application.RoomTypeSummary{ID: "type-lab", Name: "Laboratory"},
		User:          application.UserSummary{ID: member.UserID, Email: "user@example.com"},
		DisplayStatus: scheduler.DisplayUpcoming,
	}
}

func serve(t *testing.T, handler http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), "body: %s", rec.Body.String())
	return payload
}

type roomServiceStub struct {
	rooms       []application.Room
	lastTypeID  *string
	createInput application.RoomInput
	deleteErr   error
}

func (s *roomServiceStub) ListRoomTypes(context.Context) ([]application.RoomType, error) {
	return []application.RoomType{{ID: "type-lab", Name: "Laboratory"}}, nil
}

func (s *roomServiceStub) CreateRoomType(_ context.Context, params application.CreateRoomTypeParams) (application.RoomType, error) {
	if !params.Principal.IsAdmin {
		return application.RoomType{}, application.ErrForbidden
	}
	return application.RoomType{ID: "type-new", Name: params.Input.Name, Description: params.Input.Description}, nil
}

func (s *roomServiceStub) UpdateRoomType(_ context.Context, params application.UpdateRoomTypeParams) (application.RoomType, error) {
	return application.RoomType{ID: params.RoomTypeID, Name: params.Input.Name}, nil
}

func (s *roomServiceStub) DeleteRoomType(_ context.Context, _ application.Principal, roomTypeID string) error {
	if roomTypeID == "type-lab" {
		return application.ErrTypeInUse
	}
	return nil
}

func (s *roomServiceStub) ListActiveRooms(_ context.Context, roomTypeID *string) ([]application.Room, error) {
	s.lastTypeID = roomTypeID
	return s.rooms, nil
}

func (s *roomServiceStub) ListAllRooms(_ context.Context, principal application.Principal) ([]application.Room, error) {
	if !principal.IsAdmin {
		return nil, application.ErrForbidden
	}
	return s.rooms, nil
}

func (s *roomServiceStub) GetRoom(_ context.Context, roomID string) (application.RoomDetails, error) {
	for _, room := range s.rooms {
		if room.ID == roomID {
			return application.RoomDetails{Room: room, RoomType: application.RoomType{ID: room.RoomTypeID, Name: "Laboratory"}}, nil
		}
	}
	return application.RoomDetails{}, application.ErrRoomNotFound
}

func (s *roomServiceStub) CreateRoom(_ context.Context, params application.CreateRoomParams) (application.Room, error) {
	s.createInput = params.Input
	if strings.TrimSpace(params.Input.Name) == "" {
		return application.Room{}, &application.ValidationError{FieldErrors: map[string]string{"name": "name is required"}}
	}
	return application.Room{ID: "room-new", Name: params.Input.Name, Capacity: application.DefaultRoomCapacity, RoomTypeID: params.Input.RoomTypeID, IsActive: true}, nil
}

func (s *roomServiceStub) UpdateRoom(_ context.Context, params application.UpdateRoomParams) (application.Room, error) {
	return application.Room{ID: params.RoomID, Name: params.Input.Name, IsActive: params.Input.IsActive == nil || *params.Input.IsActive}, nil
}

func (s *roomServiceStub) DeleteRoom(_ context.Context, _ application.Principal, _ string) error {
	return s.deleteErr
}

type availabilityStub struct {
	result  application.Availability
	err     error
	exclude string
}

func (a *availabilityStub) CheckAvailability(_ context.Context, _ string, start, end time.Time, excludeBookingID string) (application.Availability, error) {
	a.exclude = excludeBookingID
	if a.err != nil {
		return application.Availability{}, a.err
	}
	if !start.Before(end) {
		return application.Availability{}, application.ErrInvalidInterval
	}
	return a.result, nil
}

type calendarStub struct {
	start, end time.Time
}

func (c *calendarStub) ListForRoom(_ context.Context, _ application.Principal, _ string, rangeStart, rangeEnd time.Time, _ application.ListOptions) ([]application.BookingView, error) {
	c.start, c.end = rangeStart, rangeEnd
	return []application.BookingView{sampleView("b-1")}, nil
}

type authServiceStub struct{}

func (authServiceStub) Register(_ context.Context, params application.RegisterParams) (application.AuthenticateResult, error) {
	if len(params.Password) < 8 {
		return application.AuthenticateResult{}, &application.ValidationError{FieldErrors: map[string]string{"password": "password is too short"}}
	}
	return application.AuthenticateResult{User: application.User{ID: "user-new", Email: params.Email}, Token: "new-token", ExpiresAt: futureStart}, nil
}

func (authServiceStub) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	if params.Password != "secret-pass" {
		return application.AuthenticateResult{}, application.ErrInvalidCredentials
	}
	return application.AuthenticateResult{User: application.User{ID: member.UserID, Email: params.Email}, Token: "member-token", ExpiresAt: futureStart}, nil
}

func (authServiceStub) Me(_ context.Context, principal application.Principal) (application.User, error) {
	return application.User{ID: principal.UserID, Email: "user@example.com", IsAdmin: principal.IsAdmin}, nil
}

type fixture struct {
	handler      http.Handler
	bookings     *bookingServiceStub
	query        *bookingQueryStub
	rooms        *roomServiceStub
	availability *availabilityStub
	calendar     *calendarStub
}

func newFixture(localAuth bool) *fixture {
	f := &fixture{
		bookings:     &bookingServiceStub{},
		query:        &bookingQueryStub{},
		rooms:        &roomServiceStub{rooms: []application.Room{{ID: "room-1", Name: "Lab", Capacity: 20, RoomTypeID: "type-lab", IsActive: true}}},
		availability: &availabilityStub{result: application.Availability{Available: true}},
		calendar:     &calendarStub{},
	}
	f.handler = NewRouter(RouterConfig{
		Auth:      NewAuthHandler(authServiceStub{}, nil),
		Rooms:     NewRoomHandler(f.rooms, f.availability, f.calendar, nil),
		Bookings:  NewBookingHandler(f.bookings, f.query, nil),
		Resolver:  testTokens,
		LocalAuth: localAuth,
	})
	return f
}

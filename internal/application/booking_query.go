package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// BookingQueryService answers read-only booking listings. Every result is
// classified with scheduler.DeriveDisplayStatus against a single instant per call.
type BookingQueryService struct {
	bookings  BookingRepository
	rooms     RoomRepository
	roomTypes RoomTypeRepository
	users     UserRepository
	now       func() time.Time
	logger    *slog.Logger
}

// NewBookingQueryService constructs a query service with the provided dependencies.
func NewBookingQueryService(bookings BookingRepository, rooms RoomRepository, roomTypes RoomTypeRepository, users UserRepository, now func() time.Time) *BookingQueryService {
	return NewBookingQueryServiceWithLogger(bookings, rooms, roomTypes, users, now, nil)
}

// NewBookingQueryServiceWithLogger constructs a query service with a specified logger.
func NewBookingQueryServiceWithLogger(bookings BookingRepository, rooms RoomRepository, roomTypes RoomTypeRepository, users UserRepository, now func() time.Time, logger *slog.Logger) *BookingQueryService {
	if now == nil {
		now = time.Now
	}
	return &BookingQueryService{
		bookings:  bookings,
		rooms:     rooms,
		roomTypes: roomTypes,
		users:     users,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

func (s *BookingQueryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingQueryService", operation, attrs...)
}

// ListForUser returns the bookings owned by userID. An empty userID means the
// principal's own bookings. Only the owner or an administrator may list.
func (s *BookingQueryService) ListForUser(ctx context.Context, principal Principal, userID string, opts ListOptions) (views []BookingView, err error) {
	if s == nil {
		err = fmt.Errorf("BookingQueryService is nil")
		return
	}
	if userID == "" {
		userID = principal.UserID
	}

	logger := s.loggerWith(ctx, "ListForUser",
		"principal_id", principal.UserID,
		"user_id", userID,
	)
	defer s.logResult(ctx, logger, &views, &err)

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if !principal.owns(userID) {
		err = ErrForbidden
		return
	}

	var bookings []Booking
	bookings, err = s.bookings.FindByUser(ctx, userID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	views, err = s.present(ctx, bookings, opts)
	return
}

// ListForRoom returns the confirmed bookings of a room that touch the
// inclusive range [rangeStart, rangeEnd].
func (s *BookingQueryService) ListForRoom(ctx context.Context, principal Principal, roomID string, rangeStart, rangeEnd time.Time, opts ListOptions) (views []BookingView, err error) {
	if s == nil {
		err = fmt.Errorf("BookingQueryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListForRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)
	defer s.logResult(ctx, logger, &views, &err)

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if rangeStart.IsZero() || rangeEnd.IsZero() || rangeEnd.Before(rangeStart) {
		err = ErrInvalidInterval
		return
	}
	if _, err = s.rooms.GetRoom(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
		return
	}

	var confirmed []Booking
	confirmed, err = s.bookings.FindConfirmedByRoom(ctx, roomID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	inRange := make([]Booking, 0, len(confirmed))
	for _, booking := range confirmed {
		if booking.Interval().Intersects(rangeStart, rangeEnd) {
			inRange = append(inRange, booking)
		}
	}

	views, err = s.present(ctx, inRange, opts)
	return
}

// ListAll returns every booking. Administrators only.
func (s *BookingQueryService) ListAll(ctx context.Context, principal Principal, opts ListOptions) (views []BookingView, err error) {
	if s == nil {
		err = fmt.Errorf("BookingQueryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListAll", "principal_id", principal.UserID)
	defer s.logResult(ctx, logger, &views, &err)

	if !principal.IsAdmin {
		err = ErrForbidden
		return
	}

	var bookings []Booking
	bookings, err = s.bookings.FindAll(ctx)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	views, err = s.present(ctx, bookings, opts)
	return
}

// View resolves a single booking for display.
func (s *BookingQueryService) View(ctx context.Context, booking Booking) (BookingView, error) {
	views, err := s.present(ctx, []Booking{booking}, ListOptions{})
	if err != nil {
		return BookingView{}, err
	}
	return views[0], nil
}

func (s *BookingQueryService) logResult(ctx context.Context, logger *slog.Logger, views *[]BookingView, err *error) {
	if *err != nil {
		logger.ErrorContext(ctx, "failed to list bookings", "error", *err, "error_kind", ErrorKind(*err))
		return
	}
	logger.With("result_count", len(*views)).InfoContext(ctx, "bookings listed")
}

// present orders, filters and resolves bookings. The input slice is not modified.
func (s *BookingQueryService) present(ctx context.Context, bookings []Booking, opts ListOptions) ([]BookingView, error) {
	now := s.now()
	wanted := make(map[scheduler.DisplayStatus]struct{}, len(opts.Statuses))
	for _, status := range opts.Statuses {
		wanted[status] = struct{}{}
	}

	ordered := make([]Booking, len(bookings))
	copy(ordered, bookings)
	SortBookings(ordered, opts.Order)

	resolver := newViewResolver(s.rooms, s.roomTypes, s.users)
	views := make([]BookingView, 0, len(ordered))
	for _, booking := range ordered {
		display := scheduler.DeriveDisplayStatus(booking.Interval(), booking.Status, now)
		if len(wanted) > 0 {
			if _, ok := wanted[display]; !ok {
				continue
			}
		}

		view, err := resolver.resolve(ctx, booking)
		if err != nil {
			return nil, err
		}
		view.DisplayStatus = display
		views = append(views, view)
	}
	return views, nil
}

// SortBookings orders bookings by start time, then ID. Descending reverses
// the whole order.
func SortBookings(bookings []Booking, order SortOrder) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if order == SortDescending {
			a, b = b, a
		}
		if a.Start.Equal(b.Start) {
			return a.ID < b.ID
		}
		return a.Start.Before(b.Start)
	})
}

// ParseSortOrder accepts "asc", "desc" and the empty string.
func ParseSortOrder(value string) (SortOrder, error) {
	switch SortOrder(value) {
	case "", SortAscending:
		return SortAscending, nil
	case SortDescending:
		return SortDescending, nil
	}
	vErr := &ValidationError{}
	vErr.add("order", "order must be asc or desc")
	return "", vErr
}

// viewResolver caches lookups for the duration of one listing.
type viewResolver struct {
	rooms     RoomRepository
	roomTypes RoomTypeRepository
	users     UserRepository

	roomCache map[string]Room
	typeCache map[string]RoomType
	userCache map[string]User
}

func newViewResolver(rooms RoomRepository, roomTypes RoomTypeRepository, users UserRepository) *viewResolver {
	return &viewResolver{
		rooms:     rooms,
		roomTypes: roomTypes,
		users:     users,
		roomCache: make(map[string]Room),
		typeCache: make(map[string]RoomType),
		userCache: make(map[string]User),
	}
}

func (r *viewResolver) resolve(ctx context.Context, booking Booking) (BookingView, error) {
	view := BookingView{
		Booking: booking,
		Room:    RoomSummary{ID: booking.RoomID},
		User:    UserSummary{ID: booking.UserID},
	}

	room, err := r.room(ctx, booking.RoomID)
	if err != nil {
		return BookingView{}, err
	}
	if room.ID != "" {
		view.Room = RoomSummary{
			ID:       room.ID,
			Name:     room.Name,
			Capacity: room.Capacity,
			Building: room.Building,
			Floor:    room.Floor,
			IsActive: room.IsActive,
		}
		view.RoomType.ID = room.RoomTypeID

		roomType, err := r.roomType(ctx, room.RoomTypeID)
		if err != nil {
			return BookingView{}, err
		}
		view.RoomType.Name = roomType.Name
	}

	user, err := r.user(ctx, booking.UserID)
	if err != nil {
		return BookingView{}, err
	}
	if user.ID != "" {
		view.User = UserSummary{ID: user.ID, Email: user.Email, FirstName: user.FirstName, LastName: user.LastName}
	}

	return view, nil
}

func (r *viewResolver) room(ctx context.Context, id string) (Room, error) {
	if room, ok := r.roomCache[id]; ok {
		return room, nil
	}
	var room Room
	if r.rooms != nil {
		found, err := r.rooms.GetRoom(ctx, id)
		if err != nil && !isNotFound(err) {
			return Room{}, err
		}
		room = found
	}
	r.roomCache[id] = room
	return room, nil
}

func (r *viewResolver) roomType(ctx context.Context, id string) (RoomType, error) {
	if roomType, ok := r.typeCache[id]; ok {
		return roomType, nil
	}
	var roomType RoomType
	if r.roomTypes != nil {
		found, err := r.roomTypes.GetRoomType(ctx, id)
		if err != nil && !isNotFound(err) {
			return RoomType{}, err
		}
		roomType = found
	}
	r.typeCache[id] = roomType
	return roomType, nil
}

func (r *viewResolver) user(ctx context.Context, id string) (User, error) {
	if user, ok := r.userCache[id]; ok {
		return user, nil
	}
	var user User
	if r.users != nil {
		found, err := r.users.GetUser(ctx, id)
		if err != nil && !isNotFound(err) {
			return User{}, err
		}
		user = found
	}
	r.userCache[id] = user
	return user, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

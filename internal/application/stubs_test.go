package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/room-booking/internal/events"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

var baseTime = time.Date(2025, time.April, 7, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return baseTime }

func minutes(n int) time.Time { return baseTime.Add(time.Duration(n) * time.Minute) }

func sequence(ids ...string) func() string {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(ids) {
			next++
			return "generated-" + string(rune('a'+next))
		}
		id := ids[next]
		next++
		return id
	}
}

func stringPtr(v string) *string { return &v }

type bookingRepoStub struct {
	mu       sync.Mutex
	bookings map[string]Booking

	// guard mirrors the store level overlap constraint.
	guard bool
	// beforeInsert runs before an insert is applied, outside the stub lock.
	beforeInsert func()

	insertErr error
	updateErr error
	findErr   error
	inserts   int
}

func newBookingRepoStub(existing ...Booking) *bookingRepoStub {
	repo := &bookingRepoStub{bookings: make(map[string]Booking)}
	for _, booking := range existing {
		repo.bookings[booking.ID] = booking
	}
	return repo
}

func (r *bookingRepoStub) FindConfirmedByRoom(ctx context.Context, roomID string) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []Booking
	for _, booking := range r.bookings {
		if booking.RoomID == roomID && booking.Status == scheduler.StatusConfirmed {
			out = append(out, booking)
		}
	}
	sortByID(out)
	return out, nil
}

func (r *bookingRepoStub) FindByID(ctx context.Context, id string) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

func (r *bookingRepoStub) Insert(ctx context.Context, booking Booking) (Booking, error) {
	if r.beforeInsert != nil {
		r.beforeInsert()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return Booking{}, r.insertErr
	}
	if _, exists := r.bookings[booking.ID]; exists {
		return Booking{}, persistence.ErrDuplicate
	}
	if r.guard && r.overlapsLocked(booking) {
		return Booking{}, persistence.ErrOverlap
	}
	r.inserts++
	r.bookings[booking.ID] = booking
	return booking, nil
}

func (r *bookingRepoStub) Update(ctx context.Context, booking Booking) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return Booking{}, r.updateErr
	}
	if _, ok := r.bookings[booking.ID]; !ok {
		return Booking{}, persistence.ErrNotFound
	}
	if r.guard && r.overlapsLocked(booking) {
		return Booking{}, persistence.ErrOverlap
	}
	r.bookings[booking.ID] = booking
	return booking, nil
}

func (r *bookingRepoStub) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

func (r *bookingRepoStub) FindByUser(ctx context.Context, userID string) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Booking
	for _, booking := range r.bookings {
		if booking.UserID == userID {
			out = append(out, booking)
		}
	}
	sortByID(out)
	return out, nil
}

func (r *bookingRepoStub) FindAll(ctx context.Context) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Booking, 0, len(r.bookings))
	for _, booking := range r.bookings {
		out = append(out, booking)
	}
	sortByID(out)
	return out, nil
}

func (r *bookingRepoStub) CountByRoom(ctx context.Context, roomID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, booking := range r.bookings {
		if booking.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (r *bookingRepoStub) overlapsLocked(candidate Booking) bool {
	if candidate.Status != scheduler.StatusConfirmed {
		return false
	}
	for _, booking := range r.bookings {
		if booking.ID == candidate.ID || booking.RoomID != candidate.RoomID || booking.Status != scheduler.StatusConfirmed {
			continue
		}
		if booking.Interval().Overlaps(candidate.Interval()) {
			return true
		}
	}
	return false
}

func (r *bookingRepoStub) get(id string) Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookings[id]
}

func sortByID(bookings []Booking) {
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
}

type roomRepoStub struct {
	rooms map[string]Room

	createErr error
	created   Room
	updated   Room
	deletedID string
}

func newRoomRepoStub(rooms ...Room) *roomRepoStub {
	repo := &roomRepoStub{rooms: make(map[string]Room)}
	for _, room := range rooms {
		repo.rooms[room.ID] = room
	}
	return repo
}

func (r *roomRepoStub) CreateRoom(ctx context.Context, room Room) (Room, error) {
	if r.createErr != nil {
		return Room{}, r.createErr
	}
	r.created = room
	r.rooms[room.ID] = room
	return room, nil
}

func (r *roomRepoStub) GetRoom(ctx context.Context, id string) (Room, error) {
	room, ok := r.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (r *roomRepoStub) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	if _, ok := r.rooms[room.ID]; !ok {
		return Room{}, persistence.ErrNotFound
	}
	r.updated = room
	r.rooms[room.ID] = room
	return room, nil
}

func (r *roomRepoStub) DeleteRoom(ctx context.Context, id string) error {
	if _, ok := r.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	r.deletedID = id
	delete(r.rooms, id)
	return nil
}

func (r *roomRepoStub) ListRooms(ctx context.Context, roomTypeID *string, activeOnly bool) ([]Room, error) {
	var out []Room
	for _, room := range r.rooms {
		if activeOnly && !room.IsActive {
			continue
		}
		if roomTypeID != nil && room.RoomTypeID != *roomTypeID {
			continue
		}
		out = append(out, room)
	}
	return out, nil
}

func (r *roomRepoStub) CountRoomsByType(ctx context.Context, roomTypeID string) (int, error) {
	count := 0
	for _, room := range r.rooms {
		if room.RoomTypeID == roomTypeID {
			count++
		}
	}
	return count, nil
}

type roomTypeRepoStub struct {
	types     map[string]RoomType
	deletedID string
}

func newRoomTypeRepoStub(types ...RoomType) *roomTypeRepoStub {
	repo := &roomTypeRepoStub{types: make(map[string]RoomType)}
	for _, roomType := range types {
		repo.types[roomType.ID] = roomType
	}
	return repo
}

func (r *roomTypeRepoStub) CreateRoomType(ctx context.Context, roomType RoomType) (RoomType, error) {
	for _, existing := range r.types {
		if existing.Name == roomType.Name {
			return RoomType{}, persistence.ErrDuplicate
		}
	}
	r.types[roomType.ID] = roomType
	return roomType, nil
}

func (r *roomTypeRepoStub) GetRoomType(ctx context.Context, id string) (RoomType, error) {
	roomType, ok := r.types[id]
	if !ok {
		return RoomType{}, persistence.ErrNotFound
	}
	return roomType, nil
}

func (r *roomTypeRepoStub) UpdateRoomType(ctx context.Context, roomType RoomType) (RoomType, error) {
	if _, ok := r.types[roomType.ID]; !ok {
		return RoomType{}, persistence.ErrNotFound
	}
	r.types[roomType.ID] = roomType
	return roomType, nil
}

func (r *roomTypeRepoStub) DeleteRoomType(ctx context.Context, id string) error {
	if _, ok := r.types[id]; !ok {
		return persistence.ErrNotFound
	}
	r.deletedID = id
	delete(r.types, id)
	return nil
}

func (r *roomTypeRepoStub) ListRoomTypes(ctx context.Context) ([]RoomType, error) {
	var out []RoomType
	for _, roomType := range r.types {
		out = append(out, roomType)
	}
	return out, nil
}

type userRepoStub struct {
	mu     sync.Mutex
	users  map[string]UserCredentials
	getErr error
}

func newUserRepoStub(users ...UserCredentials) *userRepoStub {
	repo := &userRepoStub{users: make(map[string]UserCredentials)}
	for _, creds := range users {
		repo.users[creds.User.ID] = creds
	}
	return repo
}

func (r *userRepoStub) CreateUser(ctx context.Context, creds UserCredentials) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.User.Email == creds.User.Email {
			return User{}, persistence.ErrDuplicate
		}
	}
	r.users[creds.User.ID] = creds
	return creds.User, nil
}

func (r *userRepoStub) GetUser(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return User{}, r.getErr
	}
	creds, ok := r.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return creds.User, nil
}

func (r *userRepoStub) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, creds := range r.users {
		if creds.User.Email == email {
			return creds, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (r *userRepoStub) GetUserBySubject(ctx context.Context, subject string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, creds := range r.users {
		if creds.User.Subject != nil && *creds.User.Subject == subject {
			return creds.User, nil
		}
	}
	return User{}, persistence.ErrNotFound
}

type publisherStub struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *publisherStub) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, event := range p.events {
		out[i] = event.Type
	}
	return out
}

// noLocker grants every request immediately, leaving the store guard as the
// only protection.
type noLocker struct{}

func (noLocker) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

func activeRoom(id string) Room {
	return Room{ID: id, Name: "Room " + id, Capacity: 20, RoomTypeID: "type-lab", IsActive: true}
}

func confirmed(id, roomID, userID string, startMin, endMin int) Booking {
	return Booking{
		ID:     id,
		RoomID: roomID,
		UserID: userID,
		Start:  minutes(startMin),
		End:    minutes(endMin),
		Status: scheduler.StatusConfirmed,
	}
}

package testfixtures

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/room-booking/internal/adapter"
	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/events"
	apihttp "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/identity"
	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

var tokenSecret = []byte("testfixtures-secret")

const tokenIssuer = "room-booking-tests"

// Harness is a fully wired booking engine on top of one store.
type Harness struct {
	Clock  *Clock
	IDs    *IDGenerator
	Store  persistence.Store
	Repos  adapter.Repositories
	Events *EventRecorder

	Bookings     *application.BookingService
	Queries      *application.BookingQueryService
	Rooms        *application.RoomService
	Auth         *application.AuthService
	Availability *application.AvailabilityChecker

	issuer   *identity.TokenIssuer
	resolver *identity.JWTResolver
	logger   *slog.Logger
}

type options struct {
	locker application.RoomLocker
	logger *slog.Logger
	start  time.Time
}

// Option customises a Harness.
type Option func(*options)

// WithLocker replaces the in-process room lock.
func WithLocker(locker application.RoomLocker) Option {
	return func(o *options) { o.locker = locker }
}

// WithLogger routes service logs to logger instead of discarding them.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStart sets the initial clock time.
func WithStart(start time.Time) Option {
	return func(o *options) { o.start = start }
}

// NewMemoryHarness wires the engine onto the in-memory store.
func NewMemoryHarness(tb testing.TB, opts ...Option) *Harness {
	tb.Helper()
	return New(tb, memory.New(), opts...)
}

// NewSQLiteHarness wires the engine onto a migrated SQLite file in a
// temporary directory.
func NewSQLiteHarness(tb testing.TB, opts ...Option) *Harness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "roombooking.db")
	store, err := sqlite.Open(context.Background(), path, nil)
	if err != nil {
		tb.Fatalf("failed to open sqlite store: %v", err)
	}
	return New(tb, store, opts...)
}

// New migrates store and wires every service onto it. The store is closed
// when the test ends.
func New(tb testing.TB, store persistence.Store, opts ...Option) *Harness {
	tb.Helper()

	cfg := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.locker == nil {
		cfg.locker = lock.NewLocal()
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	clock := NewClock(cfg.start)
	ids := NewIDGenerator("id")
	repos := adapter.New(store)
	recorder := &EventRecorder{}

	issuer, err := identity.NewTokenIssuer(tokenSecret, tokenIssuer, time.Hour, clock.Now)
	if err != nil {
		tb.Fatalf("failed to build token issuer: %v", err)
	}

	h := &Harness{
		Clock:  clock,
		IDs:    ids,
		Store:  store,
		Repos:  repos,
		Events: recorder,
		issuer: issuer,
		logger: cfg.logger,
	}
	h.Bookings = application.NewBookingServiceWithLogger(repos.Directory, repos.Bookings, cfg.locker, recorder, ids.Next, clock.Now, cfg.logger)
	h.Availability = h.Bookings.Checker()
	h.Queries = application.NewBookingQueryServiceWithLogger(repos.Bookings, repos.Rooms, repos.RoomTypes, repos.Users, clock.Now, cfg.logger)
	h.Rooms = application.NewRoomServiceWithLogger(repos.Rooms, repos.RoomTypes, repos.Bookings, ids.Next, clock.Now, cfg.logger)
	h.Auth = application.NewAuthServiceWithLogger(repos.Users, issuer, plainHash, plainVerify, ids.Next, clock.Now, cfg.logger)

	h.resolver, err = identity.NewLocalResolver(tokenSecret, tokenIssuer, h.Auth, clock.Now)
	if err != nil {
		tb.Fatalf("failed to build resolver: %v", err)
	}
	return h
}

// Router returns the HTTP API backed by this harness with local auth enabled.
func (h *Harness) Router() http.Handler {
	return apihttp.NewRouter(apihttp.RouterConfig{
		Auth:      apihttp.NewAuthHandler(h.Auth, h.logger),
		Rooms:     apihttp.NewRoomHandler(h.Rooms, h.Availability, h.Queries, h.logger),
		Bookings:  apihttp.NewBookingHandler(h.Bookings, h.Queries, h.logger),
		Resolver:  h.resolver,
		LocalAuth: true,
		Logger:    h.logger,
	})
}

// Token issues a bearer token for the seeded user behind principal.
func (h *Harness) Token(tb testing.TB, principal application.Principal) string {
	tb.Helper()

	user, err := h.Repos.Users.GetUser(context.Background(), principal.UserID)
	if err != nil {
		tb.Fatalf("failed to load user %s: %v", principal.UserID, err)
	}
	token, _, err := h.issuer.Issue(user)
	if err != nil {
		tb.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// SeedUser stores an account directly; administrators cannot be created
// through the API.
func (h *Harness) SeedUser(tb testing.TB, email string, admin bool) application.Principal {
	tb.Helper()

	now := h.Clock.Now()
	user := persistence.User{
		ID:           h.IDs.Next(),
		Email:        email,
		PasswordHash: "plain:password",
		IsAdmin:      admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Store.CreateUser(context.Background(), user); err != nil {
		tb.Fatalf("failed to seed user %s: %v", email, err)
	}
	return application.Principal{UserID: user.ID, IsAdmin: admin}
}

// SeedRoomType stores a room type and returns its id.
func (h *Harness) SeedRoomType(tb testing.TB, name string) string {
	tb.Helper()

	now := h.Clock.Now()
	roomType := persistence.RoomType{ID: h.IDs.Next(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := h.Store.CreateRoomType(context.Background(), roomType); err != nil {
		tb.Fatalf("failed to seed room type %s: %v", name, err)
	}
	return roomType.ID
}

// SeedRoom stores a room of the given type and returns its id.
func (h *Harness) SeedRoom(tb testing.TB, name, roomTypeID string, active bool) string {
	tb.Helper()

	now := h.Clock.Now()
	room := persistence.Room{
		ID:         h.IDs.Next(),
		Name:       name,
		Capacity:   application.DefaultRoomCapacity,
		RoomTypeID: roomTypeID,
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Store.CreateRoom(context.Background(), room); err != nil {
		tb.Fatalf("failed to seed room %s: %v", name, err)
	}
	return room.ID
}

// Book creates a booking for principal spanning the given minute offsets from
// ReferenceTime, failing the test on error.
func (h *Harness) Book(tb testing.TB, principal application.Principal, roomID string, startMin, endMin int) application.Booking {
	tb.Helper()

	booking, err := h.Bookings.CreateBooking(context.Background(), application.CreateBookingParams{
		Principal: principal,
		Input: application.BookingInput{
			RoomID: roomID,
			Start:  At(startMin),
			End:    At(endMin),
		},
	})
	if err != nil {
		tb.Fatalf("failed to book %s [%d, %d): %v", roomID, startMin, endMin, err)
	}
	return booking
}

// EventRecorder captures published lifecycle events.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

// Publish implements application.EventPublisher.
func (r *EventRecorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// Types returns the recorded event types in publication order.
func (r *EventRecorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

// plainHash keeps harness registration fast; argon2 has its own tests.
func plainHash(password string) (string, error) { return "plain:" + password, nil }

func plainVerify(hash, password string) error {
	if hash != fmt.Sprintf("plain:%s", password) {
		return application.ErrInvalidCredentials
	}
	return nil
}

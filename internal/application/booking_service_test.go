package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/room-booking/internal/events"
	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/scheduler"
)

var (
	alice = Principal{UserID: "user-alice"}
	bob   = Principal{UserID: "user-bob"}
	admin = Principal{UserID: "user-admin", IsAdmin: true}
)

func newBookingFixture(repo *bookingRepoStub, locker RoomLocker, rooms ...Room) (*BookingService, *publisherStub) {
	if len(rooms) == 0 {
		rooms = []Room{activeRoom("room-1")}
	}
	publisher := &publisherStub{}
	directory := NewRoomDirectory(newRoomRepoStub(rooms...))
	svc := NewBookingService(directory, repo, locker, publisher, sequence("booking-1", "booking-2", "booking-3"), fixedNow)
	return svc, publisher
}

func createParams(principal Principal, roomID string, startMin, endMin int) CreateBookingParams {
	return CreateBookingParams{
		Principal: principal,
		Input:     BookingInput{RoomID: roomID, Start: minutes(startMin), End: minutes(endMin)},
	}
}

func TestBookingService_CreateBooking(t *testing.T) {
	t.Parallel()

	t.Run("persists a confirmed booking for the principal", func(t *testing.T) {
		t.Parallel()

		repo := newBookingRepoStub()
		svc, publisher := newBookingFixture(repo, nil)
		notes := "  weekly sync  "
		local := time.FixedZone("UTC+2", 2*60*60)

		booking, err := svc.CreateBooking(context.Background(), CreateBookingParams{
			Principal: alice,
			Input: BookingInput{
				RoomID: "room-1",
				Start:  minutes(60).In(local),
				End:    minutes(120).In(local),
				Notes:  &notes,
			},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		if booking.ID != "booking-1" || booking.UserID != alice.UserID {
			t.Fatalf("unexpected booking identity %#v", booking)
		}
		if booking.Status != scheduler.StatusConfirmed {
			t.Fatalf("expected confirmed status, got %q", booking.Status)
		}
		if booking.Start.Location() != time.UTC || !booking.Start.Equal(minutes(60)) {
			t.Fatalf("expected start normalised to UTC, got %v", booking.Start)
		}
		if booking.Notes == nil || *booking.Notes != "weekly sync" {
			t.Fatalf("expected trimmed notes, got %v", booking.Notes)
		}
		if !booking.CreatedAt.Equal(baseTime) {
			t.Fatalf("expected injected clock, got %v", booking.CreatedAt)
		}
		if got := publisher.types(); len(got) != 1 || got[0] != events.BookingCreated {
			t.Fatalf("expected one created event, got %v", got)
		}
	})

	t.Run("rejects invalid intervals before touching the store", func(t *testing.T) {
		t.Parallel()

		repo := newBookingRepoStub()
		svc, _ := newBookingFixture(repo, nil)

		for _, tc := range []struct {
			name       string
			start, end int
		}{
			{name: "zero length", start: 60, end: 60},
			{name: "inverted", start: 120, end: 60},
		} {
			_, err := svc.CreateBooking(context.Background(), createParams(alice, "room-1", tc.start, tc.end))
			if !errors.Is(err, ErrInvalidInterval) {
				t.Fatalf("%s: expected ErrInvalidInterval, got %v", tc.name, err)
			}
			if !errors.Is(err, scheduler.ErrInvalidInterval) {
				t.Fatalf("%s: expected scheduler sentinel to match too", tc.name)
			}
		}
		if repo.inserts != 0 {
			t.Fatalf("expected no inserts, got %d", repo.inserts)
		}
	})

	t.Run("rejects unknown rooms", func(t *testing.T) {
		t.Parallel()

		svc, _ := newBookingFixture(newBookingRepoStub(), nil)
		_, err := svc.CreateBooking(context.Background(), createParams(alice, "room-missing", 0, 60))
		if !errors.Is(err, ErrRoomNotFound) {
			t.Fatalf("expected ErrRoomNotFound, got %v", err)
		}
	})

	t.Run("rejects inactive rooms", func(t *testing.T) {
		t.Parallel()

		inactive := activeRoom("room-closed")
		inactive.IsActive = false
		repo := newBookingRepoStub()
		svc, publisher := newBookingFixture(repo, nil, inactive)

		_, err := svc.CreateBooking(context.Background(), createParams(alice, "room-closed", 0, 60))
		if !errors.Is(err, ErrRoomInactive) {
			t.Fatalf("expected ErrRoomInactive, got %v", err)
		}
		if repo.inserts != 0 || len(publisher.types()) != 0 {
			t.Fatalf("expected no side effects for inactive room")
		}
	})

	t.Run("reports the earliest conflicting booking", func(t *testing.T) {
		t.Parallel()

		repo := newBookingRepoStub(
			confirmed("existing-b", "room-1", bob.UserID, 90, 150),
			confirmed("existing-a", "room-1", bob.UserID, 30, 90),
		)
		svc, _ := newBookingFixture(repo, nil)

		_, err := svc.CreateBooking(context.Background(), createParams(alice, "room-1", 60, 120))
		if !errors.Is(err, ErrSlotConflict) {
			t.Fatalf("expected ErrSlotConflict, got %v", err)
		}
		var conflict *SlotConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected SlotConflictError, got %T", err)
		}
		if conflict.Conflicting.ID != "existing-a" {
			t.Fatalf("expected earliest conflict existing-a, got %q", conflict.Conflicting.ID)
		}
	})

	t.Run("allows back-to-back bookings", func(t *testing.T) {
		t.Parallel()

		repo := newBookingRepoStub(confirmed("existing", "room-1", bob.UserID, 0, 60))
		svc, _ := newBookingFixture(repo, nil)

		if _, err := svc.CreateBooking(context.Background(), createParams(alice, "room-1", 60, 120)); err != nil {
			t.Fatalf("expected adjacent booking to succeed, got %v", err)
		}
	})

	t.Run("ignores cancelled bookings", func(t *testing.T) {
		t.Parallel()

		cancelled := confirmed("old", "room-1", bob.UserID, 0, 60)
		cancelled.Status = scheduler.StatusCancelled
		repo := newBookingRepoStub(cancelled)
		svc, _ := newBookingFixture(repo, nil)

		if _, err := svc.CreateBooking(context.Background(), createParams(alice, "room-1", 0, 60)); err != nil {
			t.Fatalf("expected cancelled slot to be free, got %v", err)
		}
	})

	t.Run("only administrators book on behalf of others", func(t *testing.T) {
		t.Parallel()

		repo := newBookingRepoStub()
		svc, _ := newBookingFixture(repo, nil)

		params := createParams(alice, "room-1", 0, 60)
		params.Input.UserID = bob.UserID
		if _, err := svc.CreateBooking(context.Background(), params); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}

		params.Principal = admin
		booking, err := svc.CreateBooking(context.Background(), params)
		if err != nil {
			t.Fatalf("expected admin booking to succeed, got %v", err)
		}
		if booking.UserID != bob.UserID {
			t.Fatalf("expected booking owned by bob, got %q", booking.UserID)
		}
	})

	t.Run("requires an identified principal", func(t *testing.T) {
		t.Parallel()

		svc, _ := newBookingFixture(newBookingRepoStub(), nil)
		if _, err := svc.CreateBooking(context.Background(), createParams(Principal{}, "room-1", 0, 60)); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("publishing failures do not fail the mutation", func(t *testing.T) {
		t.Parallel()

		repo := newBookingRepoStub()
		svc, publisher := newBookingFixture(repo, nil)
		publisher.err = errors.New("broker down")

		if _, err := svc.CreateBooking(context.Background(), createParams(alice, "room-1", 0, 60)); err != nil {
			t.Fatalf("expected success despite publisher error, got %v", err)
		}
	})
}

func TestBookingService_ConcurrentCreatesHaveOneWinner(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		locker RoomLocker
		guard  bool
	}{
		{name: "room lock", locker: lock.NewLocal()},
		{name: "store guard only", locker: noLocker{}, guard: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			const attempts = 12
			repo := newBookingRepoStub()
			repo.guard = tc.guard
			start := make(chan struct{})
			repo.beforeInsert = func() { time.Sleep(time.Millisecond) }

			ids := make([]string, attempts)
			for i := range ids {
				ids[i] = fmt.Sprintf("booking-%02d", i)
			}
			svc := NewBookingService(NewRoomDirectory(newRoomRepoStub(activeRoom("room-1"))), repo, tc.locker, nil, sequence(ids...), fixedNow)

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
			)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(offset int) {
					defer wg.Done()
					<-start
					_, err := svc.CreateBooking(context.Background(), createParams(alice, "room-1", offset, 60+offset))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, ErrSlotConflict):
						conflicts++
					default:
						t.Errorf("unexpected error %v", err)
					}
				}(i)
			}
			close(start)
			wg.Wait()

			if successes != 1 || conflicts != attempts-1 {
				t.Fatalf("expected 1 success and %d conflicts, got %d and %d", attempts-1, successes, conflicts)
			}
		})
	}
}

func TestBookingService_UpdateBooking(t *testing.T) {
	t.Parallel()

	seed := func() *bookingRepoStub {
		return newBookingRepoStub(
			confirmed("mine", "room-1", alice.UserID, 0, 60),
			confirmed("theirs", "room-1", bob.UserID, 120, 180),
		)
	}

	t.Run("moves the booking to a free slot", func(t *testing.T) {
		t.Parallel()

		repo := seed()
		svc, publisher := newBookingFixture(repo, nil)
		newStart, newEnd := minutes(60), minutes(120)

		updated, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{
			Principal: alice, BookingID: "mine", Start: &newStart, End: &newEnd,
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if !updated.Start.Equal(newStart) || !updated.End.Equal(newEnd) {
			t.Fatalf("unexpected interval %v-%v", updated.Start, updated.End)
		}
		if got := publisher.types(); len(got) != 1 || got[0] != events.BookingUpdated {
			t.Fatalf("expected updated event, got %v", got)
		}
	})

	t.Run("does not conflict with itself", func(t *testing.T) {
		t.Parallel()

		repo := seed()
		svc, _ := newBookingFixture(repo, nil)
		newEnd := minutes(90)

		if _, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{Principal: alice, BookingID: "mine", End: &newEnd}); err != nil {
			t.Fatalf("expected extension to succeed, got %v", err)
		}
		if got := repo.get("mine"); !got.Start.Equal(minutes(0)) {
			t.Fatalf("expected missing start to keep stored value, got %v", got.Start)
		}
	})

	t.Run("rejects moves onto another booking", func(t *testing.T) {
		t.Parallel()

		repo := seed()
		svc, _ := newBookingFixture(repo, nil)
		newEnd := minutes(150)

		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{Principal: alice, BookingID: "mine", End: &newEnd})
		var conflict *SlotConflictError
		if !errors.As(err, &conflict) || conflict.Conflicting.ID != "theirs" {
			t.Fatalf("expected conflict with theirs, got %v", err)
		}
		if got := repo.get("mine"); !got.End.Equal(minutes(60)) {
			t.Fatalf("expected stored booking to be unchanged, got %v", got.End)
		}
	})

	t.Run("rejects invalid intervals", func(t *testing.T) {
		t.Parallel()

		svc, _ := newBookingFixture(seed(), nil)
		newEnd := minutes(0)
		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{Principal: alice, BookingID: "mine", End: &newEnd})
		if !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("expected ErrInvalidInterval, got %v", err)
		}
	})

	t.Run("enforces ownership", func(t *testing.T) {
		t.Parallel()

		svc, _ := newBookingFixture(seed(), nil)
		notes := "hijack"
		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{Principal: bob, BookingID: "mine", Notes: &notes})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}

		if _, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{Principal: admin, BookingID: "mine", Notes: &notes}); err != nil {
			t.Fatalf("expected admin edit to succeed, got %v", err)
		}
	})

	t.Run("cancelled bookings are immutable", func(t *testing.T) {
		t.Parallel()

		repo := seed()
		svc, _ := newBookingFixture(repo, nil)
		if _, err := svc.CancelBooking(context.Background(), alice, "mine"); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		notes := "late edit"
		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{Principal: alice, BookingID: "mine", Notes: &notes})
		if !errors.Is(err, ErrAlreadyCancelled) {
			t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
		}
	})

	t.Run("reports missing bookings", func(t *testing.T) {
		t.Parallel()

		svc, _ := newBookingFixture(seed(), nil)
		_, err := svc.UpdateBooking(context.Background(), UpdateBookingParams{Principal: alice, BookingID: "nope"})
		if !errors.Is(err, ErrBookingNotFound) || !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrBookingNotFound, got %v", err)
		}
	})
}

func TestBookingService_CancelBooking(t *testing.T) {
	t.Parallel()

	t.Run("re-cancelling always fails", func(t *testing.T) {
		t.Parallel()

		repo := newBookingRepoStub(confirmed("mine", "room-1", alice.UserID, 0, 60))
		svc, publisher := newBookingFixture(repo, nil)

		cancelled, err := svc.CancelBooking(context.Background(), alice, "mine")
		if err != nil {
			t.Fatalf("expected first cancel to succeed, got %v", err)
		}
		if cancelled.Status != scheduler.StatusCancelled {
			t.Fatalf("expected cancelled status, got %q", cancelled.Status)
		}

		for _, principal := range []Principal{alice, admin} {
			if _, err := svc.CancelBooking(context.Background(), principal, "mine"); !errors.Is(err, ErrAlreadyCancelled) {
				t.Fatalf("expected ErrAlreadyCancelled for %s, got %v", principal.UserID, err)
			}
		}
		if got := publisher.types(); len(got) != 1 || got[0] != events.BookingCancelled {
			t.Fatalf("expected a single cancelled event, got %v", got)
		}
	})

	t.Run("cancellation frees the slot", func(t *testing.T) {
		t.Parallel()

		repo := newBookingRepoStub(confirmed("mine", "room-1", alice.UserID, 0, 60))
		svc, _ := newBookingFixture(repo, nil)
		if _, err := svc.CancelBooking(context.Background(), alice, "mine"); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if _, err := svc.CreateBooking(context.Background(), createParams(bob, "room-1", 0, 60)); err != nil {
			t.Fatalf("expected slot to be free after cancel, got %v", err)
		}
		if got := repo.get("mine"); got.Status != scheduler.StatusCancelled {
			t.Fatalf("expected cancelled booking to be retained, got %#v", got)
		}
	})

	t.Run("other users cannot cancel", func(t *testing.T) {
		t.Parallel()

		repo := newBookingRepoStub(confirmed("mine", "room-1", alice.UserID, 0, 60))
		svc, _ := newBookingFixture(repo, nil)
		if _, err := svc.CancelBooking(context.Background(), bob, "mine"); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if _, err := svc.CancelBooking(context.Background(), admin, "mine"); err != nil {
			t.Fatalf("expected admin cancel to succeed, got %v", err)
		}
	})

	t.Run("cancelling a booking in an inactive room still works", func(t *testing.T) {
		t.Parallel()

		room := activeRoom("room-1")
		room.IsActive = false
		repo := newBookingRepoStub(confirmed("mine", "room-1", alice.UserID, 0, 60))
		svc, _ := newBookingFixture(repo, nil, room)
		if _, err := svc.CancelBooking(context.Background(), alice, "mine"); err != nil {
			t.Fatalf("expected cancel to succeed, got %v", err)
		}
	})
}

func TestBookingService_DeleteBooking(t *testing.T) {
	t.Parallel()

	repo := newBookingRepoStub(confirmed("mine", "room-1", alice.UserID, 0, 60))
	svc, publisher := newBookingFixture(repo, nil)

	if err := svc.DeleteBooking(context.Background(), alice, "mine"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected owner delete to be forbidden, got %v", err)
	}
	if err := svc.DeleteBooking(context.Background(), alice, "missing"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected authorization to be checked before lookup, got %v", err)
	}
	if err := svc.DeleteBooking(context.Background(), admin, "missing"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
	if err := svc.DeleteBooking(context.Background(), admin, "mine"); err != nil {
		t.Fatalf("expected admin delete to succeed, got %v", err)
	}
	if _, err := repo.FindByID(context.Background(), "mine"); err == nil {
		t.Fatalf("expected booking to be removed")
	}
	if got := publisher.types(); len(got) != 1 || got[0] != events.BookingDeleted {
		t.Fatalf("expected deleted event, got %v", got)
	}
}

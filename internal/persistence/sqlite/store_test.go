package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/storetest"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	config := DefaultConfig(filepath.Join(t.TempDir(), "booking.db"))
	config.BusyTimeout = 10 * time.Second
	storage, err := OpenWithConfig(context.Background(), config, nil)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func TestStorageConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.Store {
		return newTestStorage(t)
	})
}

func TestStorage_InMemory(t *testing.T) {
	ctx := context.Background()
	storage, err := Open(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer storage.Close()

	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate should be a no-op: %v", err)
	}

	if _, err := storage.GetRoom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTimestampLayoutSortsLexically(t *testing.T) {
	earlier := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	later := earlier.Add(500 * time.Millisecond)
	inOtherZone := later.In(time.FixedZone("JST", 9*60*60))

	if !(formatTime(earlier) < formatTime(inOtherZone)) {
		t.Fatalf("expected %s < %s", formatTime(earlier), formatTime(inOtherZone))
	}
	if len(formatTime(earlier)) != len(formatTime(later)) {
		t.Fatalf("expected fixed width timestamps")
	}

	parsed, err := parseTime("start_time", formatTime(inOtherZone))
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if !parsed.Equal(later) {
		t.Fatalf("expected %v, got %v", later, parsed)
	}
}

func TestErrorMapper(t *testing.T) {
	var mapper ErrorMapper

	cases := []struct {
		msg  string
		want error
	}{
		{msg: "constraint failed: booking overlap (1811)", want: persistence.ErrOverlap},
		{msg: "constraint failed: UNIQUE constraint failed: rooms.name (2067)", want: persistence.ErrDuplicate},
		{msg: "constraint failed: FOREIGN KEY constraint failed (787)", want: persistence.ErrForeignKeyViolation},
		{msg: "constraint failed: CHECK constraint failed: capacity > 0 (275)", want: persistence.ErrConstraintViolation},
	}
	for _, tc := range cases {
		if got := mapper.MapError(errors.New(tc.msg)); !errors.Is(got, tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.msg, tc.want, got)
		}
	}

	plain := errors.New("disk I/O error")
	if got := mapper.MapError(plain); got != plain {
		t.Fatalf("expected unmapped error to pass through, got %v", got)
	}
}

func TestRetryHelper(t *testing.T) {
	helper := NewRetryHelper(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2})

	attempts := 0
	err := helper.WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked (5)")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("expected success on third attempt, got %v after %d attempts", err, attempts)
	}

	attempts = 0
	err = helper.WithRetry(context.Background(), func() error {
		attempts++
		return persistence.ErrOverlap
	})
	if !errors.Is(err, persistence.ErrOverlap) || attempts != 1 {
		t.Fatalf("expected permanent error without retry, got %v after %d attempts", err, attempts)
	}
}

// Package sqlite implements the persistence repositories on an embedded
// SQLite database via modernc.org/sqlite.
package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Storage bundles the SQLite repositories behind one connection pool.
type Storage struct {
	*UserRepository
	*RoomTypeRepository
	*RoomRepository
	*BookingRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to the database described by dsn using server defaults.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	return OpenWithConfig(ctx, ParseDSN(dsn), logger)
}

// OpenWithConfig connects using explicit settings.
func OpenWithConfig(ctx context.Context, config Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}

	retry := NewRetryHelper(DefaultRetryConfig())
	return &Storage{
		UserRepository:     NewUserRepository(pool),
		RoomTypeRepository: NewRoomTypeRepository(pool),
		RoomRepository:     NewRoomRepository(pool),
		BookingRepository:  NewBookingRepository(pool, retry),
		pool:               pool,
		logger:             logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	return migration.NewManager(s.pool.DB(), migration.SQLite, migrationFS, "migrations", s.logger).Run(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

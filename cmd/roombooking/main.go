package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/room-booking/internal/adapter"
	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	"github.com/example/room-booking/internal/events"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/identity"
	"github.com/example/room-booking/internal/lock"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/postgres"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate storage: %w", err)
	}

	locker, closeLocker := newLocker(cfg, logger)
	defer closeLocker()

	publisher := newPublisher(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close event publisher", "error", err)
		}
	}()

	handler, err := buildHandler(cfg, store, locker, publisher, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("room booking service listening",
		"port", cfg.HTTPPort,
		"storage", cfg.StorageDriver,
		"auth_mode", cfg.AuthMode,
		"lock_backend", cfg.LockBackend,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("room booking service stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.PostgresDSN, logger)
	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), nil
	case config.DriverSQLite, "":
		return sqlite.Open(ctx, cfg.SQLiteDSN, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func newLocker(cfg config.Config, logger *slog.Logger) (application.RoomLocker, func()) {
	if cfg.LockBackend != config.LockRedis {
		return lock.NewLocal(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	locker := lock.NewRedis(client, lock.RedisOptions{TTL: cfg.LockTTL, Logger: logger})
	return locker, func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}
}

func newPublisher(cfg config.Config, logger *slog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}

func buildHandler(cfg config.Config, store persistence.Store, locker application.RoomLocker, publisher application.EventPublisher, logger *slog.Logger) (http.Handler, error) {
	repos := adapter.New(store)

	bookingService := application.NewBookingServiceWithLogger(repos.Directory, repos.Bookings, locker, publisher, adapter.NewID, time.Now, logger)
	queryService := application.NewBookingQueryServiceWithLogger(repos.Bookings, repos.Rooms, repos.RoomTypes, repos.Users, time.Now, logger)
	roomService := application.NewRoomServiceWithLogger(repos.Rooms, repos.RoomTypes, repos.Bookings, adapter.NewID, time.Now, logger)

	authService, resolver, err := buildIdentity(cfg, repos.Users, logger)
	if err != nil {
		return nil, err
	}

	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:      httptransport.NewAuthHandler(authService, logger),
		Rooms:     httptransport.NewRoomHandler(roomService, bookingService.Checker(), queryService, logger),
		Bookings:  httptransport.NewBookingHandler(bookingService, queryService, logger),
		Resolver:  resolver,
		LocalAuth: cfg.AuthMode == config.AuthLocal,
		Logger:    logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	}), nil
}

// buildIdentity wires the account service and the token resolver for the
// configured auth mode. External mode never signs tokens.
func buildIdentity(cfg config.Config, users application.UserRepository, logger *slog.Logger) (*application.AuthService, identity.Resolver, error) {
	switch cfg.AuthMode {
	case config.AuthExternal:
		key, err := identity.LoadRSAPublicKey(cfg.JWTPublicKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load identity provider key: %w", err)
		}
		auth := application.NewAuthServiceWithLogger(users, nil, nil, nil, adapter.NewID, time.Now, logger)
		resolver, err := identity.NewExternalResolver(key, cfg.JWTIssuer, auth, time.Now)
		if err != nil {
			return nil, nil, err
		}
		return auth, resolver, nil
	default:
		secret := []byte(cfg.JWTSecret)
		issuer, err := identity.NewTokenIssuer(secret, cfg.JWTIssuer, cfg.TokenTTL, time.Now)
		if err != nil {
			return nil, nil, err
		}
		auth := application.NewAuthServiceWithLogger(users, issuer, nil, nil, adapter.NewID, time.Now, logger)
		resolver, err := identity.NewLocalResolver(secret, cfg.JWTIssuer, auth, time.Now)
		if err != nil {
			return nil, nil, err
		}
		return auth, resolver, nil
	}
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/room-booking/internal/identity"
)

type RouterConfig struct {
	Auth     *AuthHandler
	Rooms    *RoomHandler
	Bookings *BookingHandler
	// Resolver authenticates every route except registration and login.
	Resolver identity.Resolver
	// LocalAuth exposes POST /auth/register and POST /auth/login.
	LocalAuth  bool
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	responder := newResponder(cfg.Logger)
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		responder.writeJSON(req.Context(), w, http.StatusNotFound, errorResponse{Message: statusMessage(http.StatusNotFound)})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		responder.writeJSON(req.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: http.StatusText(http.StatusMethodNotAllowed)})
	})

	if cfg.Auth != nil && cfg.LocalAuth {
		r.HandleFunc("/auth/register", cfg.Auth.Register).Methods(http.MethodPost)
		r.HandleFunc("/auth/login", cfg.Auth.Login).Methods(http.MethodPost)
	}

	api := r.NewRoute().Subrouter()
	if cfg.Resolver != nil {
		api.Use(RequireAuth(cfg.Resolver, cfg.Logger))
	}

	if cfg.Auth != nil {
		api.HandleFunc("/auth/me", cfg.Auth.Me).Methods(http.MethodGet)
	}

	if cfg.Rooms != nil {
		api.HandleFunc("/room-types", cfg.Rooms.ListRoomTypes).Methods(http.MethodGet)
		api.HandleFunc("/room-types", cfg.Rooms.CreateRoomType).Methods(http.MethodPost)
		api.HandleFunc("/room-types/{id}", cfg.Rooms.UpdateRoomType).Methods(http.MethodPut)
		api.HandleFunc("/room-types/{id}", cfg.Rooms.DeleteRoomType).Methods(http.MethodDelete)

		api.HandleFunc("/rooms", cfg.Rooms.List).Methods(http.MethodGet)
		api.HandleFunc("/rooms", cfg.Rooms.Create).Methods(http.MethodPost)
		api.HandleFunc("/rooms/all", cfg.Rooms.ListAll).Methods(http.MethodGet)
		api.HandleFunc("/rooms/{id}", cfg.Rooms.Get).Methods(http.MethodGet)
		api.HandleFunc("/rooms/{id}", cfg.Rooms.Update).Methods(http.MethodPut)
		api.HandleFunc("/rooms/{id}", cfg.Rooms.Delete).Methods(http.MethodDelete)
		api.HandleFunc("/rooms/{id}/availability", cfg.Rooms.Availability).Methods(http.MethodGet)
		api.HandleFunc("/rooms/{id}/bookings", cfg.Rooms.Bookings).Methods(http.MethodGet)
	}

	if cfg.Bookings != nil {
		api.HandleFunc("/bookings", cfg.Bookings.ListAll).Methods(http.MethodGet)
		api.HandleFunc("/bookings", cfg.Bookings.Create).Methods(http.MethodPost)
		api.HandleFunc("/bookings/mine", cfg.Bookings.ListMine).Methods(http.MethodGet)
		api.HandleFunc("/bookings/{id}", cfg.Bookings.Get).Methods(http.MethodGet)
		api.HandleFunc("/bookings/{id}", cfg.Bookings.Update).Methods(http.MethodPut)
		api.HandleFunc("/bookings/{id}", cfg.Bookings.Delete).Methods(http.MethodDelete)
		api.HandleFunc("/bookings/{id}/cancel", cfg.Bookings.Cancel).Methods(http.MethodPost)
		api.HandleFunc("/users/{id}/bookings", cfg.Bookings.ListForUser).Methods(http.MethodGet)
	}

	var handler http.Handler = r
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

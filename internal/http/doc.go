// Package http exposes the booking engine as a JSON API routed with gorilla/mux.
//
// Every route except registration and login requires a bearer token that the
// configured identity.Resolver turns into an application.Principal:
//   - POST /auth/register, POST /auth/login: local accounts only. Both respond
//     with {"token","expires_at","user"}.
//   - GET /auth/me: the caller's profile.
//   - GET /room-types, POST /room-types, PUT /room-types/{id},
//     DELETE /room-types/{id}: room type catalogue; mutations are admin only.
//   - GET /rooms?room_type_id=, GET /rooms/all, POST /rooms, GET /rooms/{id},
//     PUT /rooms/{id}, DELETE /rooms/{id}: room catalogue exchanging the
//     `roomDTO` payload defined in room_handler.go.
//   - GET /rooms/{id}/availability?start=&end=&exclude=: availability probe.
//   - GET /rooms/{id}/bookings?start=&end=&status=&order=: room calendar.
//   - GET /bookings/mine, GET /bookings (admin), GET /users/{id}/bookings:
//     booking listings filtered by `status` and ordered by `order`.
//   - POST /bookings, GET /bookings/{id}, PUT /bookings/{id},
//     POST /bookings/{id}/cancel, DELETE /bookings/{id} (admin).
//
// Timestamps are RFC 3339. Every booking payload carries the derived
// `display_status`. A slot conflict responds 409 with the blocking booking
// under `conflicting_booking`.
package http

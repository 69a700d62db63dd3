package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/room-booking/internal/persistence"
)

// CreateRoomType inserts a room type.
func (s *Store) CreateRoomType(ctx context.Context, roomType persistence.RoomType) error {
	if roomType.ID == "" || strings.TrimSpace(roomType.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_types (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, roomType.ID, roomType.Name, nullableString(roomType.Description), roomType.CreatedAt.UTC(), roomType.UpdatedAt.UTC())
	return mapError(err)
}

// UpdateRoomType overwrites name and description.
func (s *Store) UpdateRoomType(ctx context.Context, roomType persistence.RoomType) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE room_types SET name = $2, description = $3, updated_at = $4 WHERE id = $1
	`, roomType.ID, roomType.Name, nullableString(roomType.Description), roomType.UpdatedAt.UTC())
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetRoomType retrieves a room type by ID.
func (s *Store) GetRoomType(ctx context.Context, id string) (persistence.RoomType, error) {
	roomType, err := scanRoomType(s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at FROM room_types WHERE id = $1
	`, id))
	if err != nil {
		return persistence.RoomType{}, mapError(err)
	}
	return roomType, nil
}

// ListRoomTypes returns all room types ordered by name.
func (s *Store) ListRoomTypes(ctx context.Context) ([]persistence.RoomType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM room_types
		ORDER BY lower(name) ASC, id ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	roomTypes := make([]persistence.RoomType, 0)
	for rows.Next() {
		roomType, err := scanRoomType(rows)
		if err != nil {
			return nil, mapError(err)
		}
		roomTypes = append(roomTypes, roomType)
	}
	return roomTypes, mapError(rows.Err())
}

// DeleteRoomType removes a room type.
func (s *Store) DeleteRoomType(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM room_types WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

func scanRoomType(row rowScanner) (persistence.RoomType, error) {
	var (
		roomType    persistence.RoomType
		description sql.NullString
	)
	if err := row.Scan(&roomType.ID, &roomType.Name, &description, &roomType.CreatedAt, &roomType.UpdatedAt); err != nil {
		return persistence.RoomType{}, err
	}
	roomType.Description = stringPointer(description)
	roomType.CreatedAt = roomType.CreatedAt.UTC()
	roomType.UpdatedAt = roomType.UpdatedAt.UTC()
	return roomType, nil
}

const roomColumns = `id, name, capacity, building, floor, description, room_type_id, is_active, created_at, updated_at`

// CreateRoom inserts a room.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		room.ID,
		room.Name,
		room.Capacity,
		nullableString(room.Building),
		nullableString(room.Floor),
		nullableString(room.Description),
		room.RoomTypeID,
		room.IsActive,
		room.CreatedAt.UTC(),
		room.UpdatedAt.UTC(),
	)
	return mapError(err)
}

// UpdateRoom overwrites an existing room.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE rooms
		SET name = $2, capacity = $3, building = $4, floor = $5, description = $6,
		    room_type_id = $7, is_active = $8, updated_at = $9
		WHERE id = $1
	`,
		room.ID,
		room.Name,
		room.Capacity,
		nullableString(room.Building),
		nullableString(room.Floor),
		nullableString(room.Description),
		room.RoomTypeID,
		room.IsActive,
		room.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	room, err := scanRoom(s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns rooms matching filter ordered by name then ID.
func (s *Store) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE ($1::text IS NULL OR room_type_id = $1)
		  AND (NOT $2 OR is_active)
		ORDER BY lower(name) ASC, id ASC
	`, nullableString(filter.RoomTypeID), filter.ActiveOnly)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, mapError(err)
		}
		rooms = append(rooms, room)
	}
	return rooms, mapError(rows.Err())
}

// DeleteRoom removes a room.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// CountRoomsByType counts rooms of the given type.
func (s *Store) CountRoomsByType(ctx context.Context, roomTypeID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE room_type_id = $1`, roomTypeID).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room                         persistence.Room
		building, floor, description sql.NullString
	)
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Capacity,
		&building,
		&floor,
		&description,
		&room.RoomTypeID,
		&room.IsActive,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		return persistence.Room{}, err
	}
	room.Building = stringPointer(building)
	room.Floor = stringPointer(floor)
	room.Description = stringPointer(description)
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return room, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/room-booking/internal/persistence"
)

// RoomTypeRepository implements persistence.RoomTypeRepository using SQLite.
type RoomTypeRepository struct {
	pool   *ConnectionPool
	mapper ErrorMapper
}

// NewRoomTypeRepository creates a new SQLite room type repository.
func NewRoomTypeRepository(pool *ConnectionPool) *RoomTypeRepository {
	return &RoomTypeRepository{pool: pool}
}

// CreateRoomType inserts a room type.
func (r *RoomTypeRepository) CreateRoomType(ctx context.Context, roomType persistence.RoomType) error {
	if roomType.ID == "" || strings.TrimSpace(roomType.Name) == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO room_types (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		roomType.ID,
		roomType.Name,
		nullableString(roomType.Description),
		formatTime(roomType.CreatedAt),
		formatTime(roomType.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateRoomType overwrites name and description.
func (r *RoomTypeRepository) UpdateRoomType(ctx context.Context, roomType persistence.RoomType) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE room_types SET name = ?, description = ?, updated_at = ? WHERE id = ?
	`,
		roomType.Name,
		nullableString(roomType.Description),
		formatTime(roomType.UpdatedAt),
		roomType.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetRoomType retrieves a room type by ID.
func (r *RoomTypeRepository) GetRoomType(ctx context.Context, id string) (persistence.RoomType, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at FROM room_types WHERE id = ?
	`, id)
	roomType, err := scanRoomType(row)
	if err != nil {
		return persistence.RoomType{}, r.mapper.MapError(err)
	}
	return roomType, nil
}

// ListRoomTypes returns all room types ordered by name.
func (r *RoomTypeRepository) ListRoomTypes(ctx context.Context) ([]persistence.RoomType, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM room_types
		ORDER BY name COLLATE NOCASE ASC, id ASC
	`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	roomTypes := make([]persistence.RoomType, 0)
	for rows.Next() {
		roomType, err := scanRoomType(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		roomTypes = append(roomTypes, roomType)
	}
	return roomTypes, r.mapper.MapError(rows.Err())
}

// DeleteRoomType removes a room type. Rooms still referencing it make the
// delete fail with persistence.ErrForeignKeyViolation.
func (r *RoomTypeRepository) DeleteRoomType(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM room_types WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func scanRoomType(row rowScanner) (persistence.RoomType, error) {
	var (
		roomType             persistence.RoomType
		description          sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&roomType.ID, &roomType.Name, &description, &createdAt, &updatedAt); err != nil {
		return persistence.RoomType{}, err
	}
	roomType.Description = stringPointer(description)

	var err error
	if roomType.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.RoomType{}, err
	}
	if roomType.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.RoomType{}, err
	}
	return roomType, nil
}

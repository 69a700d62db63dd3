package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/room-booking/internal/persistence"
)

const userColumns = `id, subject, email, first_name, last_name, password_hash, is_admin, created_at, updated_at`

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID,
		user.Subject,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsAdmin,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	return mapError(err)
}

// UpdateUser overwrites a user's mutable attributes.
func (s *Store) UpdateUser(ctx context.Context, user persistence.User) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET subject = NULLIF($2, ''), email = $3, first_name = $4, last_name = $5,
		    password_hash = $6, is_admin = $7, updated_at = $8
		WHERE id = $1
	`,
		user.ID,
		user.Subject,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsAdmin,
		user.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

// GetUserBySubject retrieves a user linked to an external identity subject.
func (s *Store) GetUserBySubject(ctx context.Context, subject string) (persistence.User, error) {
	if subject == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE subject = $1`, subject)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (persistence.User, error) {
	var (
		user    persistence.User
		subject sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&subject,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	user.Subject = subject.String
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

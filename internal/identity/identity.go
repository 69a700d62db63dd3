// Package identity turns bearer tokens into application principals. Tokens
// are either signed locally (HS256) after password login or issued by an
// external identity provider and verified with its RSA public key.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/room-booking/internal/application"
)

// ErrInvalidToken is returned for tokens that fail parsing or verification.
// It matches application.ErrUnauthorized.
var ErrInvalidToken = fmt.Errorf("identity: invalid token: %w", application.ErrUnauthorized)

// Claims are the JWT claims understood by the service.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Resolver maps a raw bearer token to the calling principal.
type Resolver interface {
	Resolve(ctx context.Context, token string) (application.Principal, error)
}

// PrincipalSource looks up local accounts for verified token subjects.
// *application.AuthService satisfies it.
type PrincipalSource interface {
	PrincipalForUser(ctx context.Context, userID string) (application.Principal, error)
	PrincipalForSubject(ctx context.Context, subject, email string) (application.Principal, error)
}

func invalidToken(err error) error {
	if err == nil {
		return ErrInvalidToken
	}
	if errors.Is(err, application.ErrUnauthorized) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}

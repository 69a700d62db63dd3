package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/room-booking/internal/application"
)

// Mode selects how verified subjects map onto local accounts.
type Mode string

const (
	// ModeLocal treats the subject as a local user ID.
	ModeLocal Mode = "local"
	// ModeExternal treats the subject as an external identity and provisions
	// a local account on first sight.
	ModeExternal Mode = "external"
)

// ParseMode validates a configured mode name.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeLocal:
		return ModeLocal, nil
	case ModeExternal:
		return ModeExternal, nil
	}
	return "", fmt.Errorf("identity: unknown auth mode %q", value)
}

// JWTResolver verifies bearer tokens and resolves them through a PrincipalSource.
type JWTResolver struct {
	mode    Mode
	source  PrincipalSource
	key     any
	methods []string
	issuer  string
	now     func() time.Time
}

var _ Resolver = (*JWTResolver)(nil)

// NewLocalResolver verifies HS256 tokens produced by a TokenIssuer sharing secret.
func NewLocalResolver(secret []byte, issuer string, source PrincipalSource, now func() time.Time) (*JWTResolver, error) {
	if len(secret) == 0 {
		return nil, errors.New("identity: signing secret is required")
	}
	return newResolver(ModeLocal, secret, []string{jwt.SigningMethodHS256.Alg()}, issuer, source, now)
}

// NewExternalResolver verifies RS256 tokens from an external identity provider.
func NewExternalResolver(publicKey *rsa.PublicKey, issuer string, source PrincipalSource, now func() time.Time) (*JWTResolver, error) {
	if publicKey == nil {
		return nil, errors.New("identity: public key is required")
	}
	return newResolver(ModeExternal, publicKey, []string{jwt.SigningMethodRS256.Alg()}, issuer, source, now)
}

func newResolver(mode Mode, key any, methods []string, issuer string, source PrincipalSource, now func() time.Time) (*JWTResolver, error) {
	if source == nil {
		return nil, errors.New("identity: principal source is required")
	}
	if now == nil {
		now = time.Now
	}
	return &JWTResolver{mode: mode, source: source, key: key, methods: methods, issuer: issuer, now: now}, nil
}

// Mode reports how the resolver maps subjects.
func (r *JWTResolver) Mode() Mode {
	return r.mode
}

// Resolve verifies token and returns the matching principal. The role always
// comes from the local account, never from token claims.
func (r *JWTResolver) Resolve(ctx context.Context, token string) (application.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return application.Principal{}, ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods(r.methods),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	}
	if r.issuer != "" {
		options = append(options, jwt.WithIssuer(r.issuer))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return r.key, nil
	}, options...); err != nil {
		return application.Principal{}, invalidToken(err)
	}
	if claims.Subject == "" {
		return application.Principal{}, invalidToken(errors.New("missing subject"))
	}

	var (
		principal application.Principal
		err       error
	)
	switch r.mode {
	case ModeExternal:
		principal, err = r.source.PrincipalForSubject(ctx, claims.Subject, claims.Email)
	default:
		principal, err = r.source.PrincipalForUser(ctx, claims.Subject)
	}
	if err != nil {
		return application.Principal{}, err
	}
	return principal, nil
}

// LoadRSAPublicKey reads a PEM encoded RSA public key.
func LoadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("identity: parse public key: %w", err)
	}
	return key, nil
}

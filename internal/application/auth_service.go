package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

const minPasswordLength = 8

// PasswordHasher derives a storable hash from a plain password.
type PasswordHasher func(password string) (string, error)

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(user User) (token string, expiresAt time.Time, err error)
}

// AuthService coordinates registration, login and the mapping of verified
// token subjects onto local accounts.
type AuthService struct {
	users          UserRepository
	issuer         TokenIssuer
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	idGenerator    func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(users UserRepository, issuer TokenIssuer, idGenerator func() string, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(users, issuer, nil, nil, idGenerator, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
// Nil password functions default to argon2id.
func NewAuthServiceWithLogger(users UserRepository, issuer TokenIssuer, hash PasswordHasher, verify PasswordVerifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if hash == nil {
		hash = func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		}
	}
	if verify == nil {
		verify = VerifyPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:          users,
		issuer:         issuer,
		hashPassword:   hash,
		verifyPassword: verify,
		idGenerator:    idGenerator,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Register creates a local account and signs the caller in. New accounts are
// never administrators.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Register", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "user registered")
	}()

	vErr := validateEmail(email)
	if len(params.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		return
	}

	now := s.now().UTC()
	var user User
	user, err = s.users.CreateUser(ctx, UserCredentials{
		User: User{
			ID:        s.idGenerator(),
			Email:     email,
			FirstName: normalizeOptionalString(params.FirstName),
			LastName:  normalizeOptionalString(params.LastName),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: hash,
	})
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	result, err = s.issue(user)
	return
}

// Authenticate validates credentials and issues a new access token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.users.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			err = ErrInvalidCredentials
		}
		return
	}
	if creds.PasswordHash == "" {
		// externally provisioned accounts have no local password
		err = ErrInvalidCredentials
		return
	}
	if s.verifyPassword(creds.PasswordHash, params.Password) != nil {
		err = ErrInvalidCredentials
		return
	}

	result, err = s.issue(creds.User)
	return
}

// Me returns the account behind the principal.
func (s *AuthService) Me(ctx context.Context, principal Principal) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("AuthService is nil")
	}
	if principal.UserID == "" {
		return User{}, ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		if isNotFound(err) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}
	return user, nil
}

// PrincipalForUser resolves a locally issued token subject. The role always
// comes from the stored account.
func (s *AuthService) PrincipalForUser(ctx context.Context, userID string) (Principal, error) {
	user, err := s.Me(ctx, Principal{UserID: userID})
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

// PrincipalForSubject maps an external identity subject onto a local account,
// provisioning a regular user on first sight.
func (s *AuthService) PrincipalForSubject(ctx context.Context, subject, email string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		err = ErrUnauthorized
		return
	}

	var user User
	user, err = s.users.GetUserBySubject(ctx, subject)
	if err == nil {
		principal = Principal{UserID: user.ID, IsAdmin: user.IsAdmin}
		return
	}
	if !isNotFound(err) {
		return
	}

	logger := s.loggerWith(ctx, "PrincipalForSubject", "subject", subject)
	email = normalizeEmail(email)
	if validateEmail(email).HasErrors() {
		err = ErrUnauthorized
		logger.WarnContext(ctx, "cannot provision user without a valid email claim")
		return
	}

	now := s.now().UTC()
	user, err = s.users.CreateUser(ctx, UserCredentials{User: User{
		ID:        s.idGenerator(),
		Subject:   &subject,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}})
	if err != nil {
		err = mapUserRepoError(err)
		logger.ErrorContext(ctx, "failed to provision user", "error", err, "error_kind", ErrorKind(err))
		return
	}

	logger.With("user_id", user.ID).InfoContext(ctx, "user provisioned")
	principal = Principal{UserID: user.ID, IsAdmin: user.IsAdmin}
	return
}

func (s *AuthService) issue(user User) (AuthenticateResult, error) {
	if s.issuer == nil {
		return AuthenticateResult{User: user}, nil
	}
	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return AuthenticateResult{}, err
	}
	return AuthenticateResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) *ValidationError {
	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "email is invalid")
	}
	return vErr
}

func mapUserRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	}
	return err
}

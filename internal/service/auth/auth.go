package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

var DefaultHasher PasswordHasher = BcryptHasher{}

type tokenManager interface {
	Issue(userID int64) (models.IssuedToken, error)
	Validate(token string) (userID int64, err error)
}

type userRepo interface {
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Service logs users in and authorizes requests by bearer token
type Service struct {
	tokens tokenManager
	hasher PasswordHasher
	users  userRepo

	// Compared against when user does not exist, so response time does not reveal usernames
	dummyHash string
}

func NewService(tokens tokenManager, hasher PasswordHasher, users userRepo) (*Service, error) {
	if tokens == nil || users == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}

	if hasher == nil {
		hasher = DefaultHasher
	}

	dummyHash, err := hasher.Hash("dummy-password")
	if err != nil {
		return nil, fmt.Errorf("hasher is broken. Err: %w", err)
	}

	return &Service{
		tokens:    tokens,
		hasher:    hasher,
		users:     users,
		dummyHash: dummyHash,
	}, nil
}

// Login user with username and password
// Returns apperrors.ErrUserNotFound if user does not exist or password does not match
// Returns apperrors.ErrUserNotActivated if credentials are fine but user is not activated
func (s *Service) Login(ctx context.Context, username string, password string) (models.IssuedToken, error) {
	var token models.IssuedToken

	user, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return token, apperrors.ErrUserNotFound
	default:
		return token, fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return token, apperrors.ErrUserNotFound
	}

	if !user.Activated {
		return token, apperrors.ErrUserNotActivated
	}

	token, err = s.tokens.Issue(user.ID)
	if err != nil {
		return token, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	return token, nil
}

// Authorize returns activated user the token was issued for
// Invalid token, missing or deactivated user are all apperrors.ErrUnauthorized
func (s *Service) Authorize(ctx context.Context, token string) (models.User, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return models.User{}, apperrors.ErrUnauthorized
	}

	user, err := s.users.GetUserByID(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, apperrors.ErrUnauthorized
	default:
		return models.User{}, fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
	}

	if !user.Activated {
		return models.User{}, apperrors.ErrUnauthorized
	}

	return user, nil
}

// RequireSuperuser authorizes the token and checks user is superuser
// Returns apperrors.ErrForbidden for regular users
func (s *Service) RequireSuperuser(ctx context.Context, token string) (models.User, error) {
	user, err := s.Authorize(ctx, token)
	if err != nil {
		return user, err
	}

	if !user.Superuser {
		return models.User{}, apperrors.ErrForbidden
	}

	return user, nil
}

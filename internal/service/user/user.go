package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/service/auth"
)

type UserService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

// Register creates not activated user with a zero balance account
// Returned user carries activation token
func (s *UserService) Register(ctx context.Context, username string, password string) (models.User, error) {
	return s.create(ctx, repository.CreateUserParams{Username: username}, password)
}

// Activate user by token from activation link
// Activating already active user is a no-op
func (s *UserService) Activate(ctx context.Context, token uuid.UUID) (models.User, error) {
	user, err := s.storage.User().GetUserByActivationToken(ctx, token)
	if err != nil {
		return user, err
	}

	if user.Activated {
		return user, nil
	}

	return s.storage.User().SetActivated(ctx, user.ID, true)
}

func (s *UserService) SetActivated(ctx context.Context, userID int64, activated bool) (models.User, error) {
	return s.storage.User().SetActivated(ctx, userID, activated)
}

func (s *UserService) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.storage.User().ListUsers(ctx)
}

func (s *UserService) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	return s.storage.Account().ListAccounts(ctx, userID)
}

// EnsureSuperuser creates activated superuser unless user with the login exists
// Existing user is returned as is, its password and flags are not touched
func (s *UserService) EnsureSuperuser(ctx context.Context, login string, password string) (models.User, bool, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, login)
	switch {
	case err == nil:
		return user, false, nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return user, false, err
	}

	user, err = s.create(ctx, repository.CreateUserParams{Username: login, Activated: true, Superuser: true}, password)
	if err != nil {
		return user, false, err
	}

	return user, true, nil
}

func (s *UserService) create(ctx context.Context, params repository.CreateUserParams, password string) (models.User, error) {
	var user models.User
	if password == "" {
		return user, errors.New("can't use empty password")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}
	params.HashedPassword = hash

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		user, err = tx.User().CreateUser(ctx, params)
		if err != nil {
			return err
		}

		_, err = tx.Account().CreateAccount(ctx, user.ID)
		return err
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

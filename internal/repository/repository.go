package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
)

// Storage gives access to repositories bound to the same connection or transaction
type Storage interface {
	User() UserRepo
	Account() AccountRepo
	Ledger() LedgerRepo
	Product() ProductRepo

	// Run fn in a transaction. Commit if fn returns nil, rollback otherwise.
	// Storage passed to fn is bound to the transaction; nested InTx uses savepoints.
	InTx(ctx context.Context, fn func(Storage) error) error
}

type CreateUserParams struct {
	Username       string
	HashedPassword string
	Activated      bool
	Superuser      bool
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by id, username or activation token
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByActivationToken(ctx context.Context, token uuid.UUID) (models.User, error)

	// Set activated flag and return updated user
	// If user not found must return apperrors.ErrUserNotFound
	SetActivated(ctx context.Context, userID int64, activated bool) (models.User, error)

	ListUsers(ctx context.Context) ([]models.User, error)
}

// Account repository interface
// Balances are never negative: mutations that would break it fail and leave the balance unchanged
type AccountRepo interface {
	// Create zero balance account for the user
	// If user not found must return apperrors.ErrUserNotFound
	CreateAccount(ctx context.Context, userID int64) (models.Account, error)

	// If account not found must return apperrors.ErrAccountNotFound
	GetAccount(ctx context.Context, accountID int64) (models.Account, error)

	ListAccounts(ctx context.Context, userID int64) ([]models.Account, error)

	// Add delta to the account balance, create account owned by ownerID if it does not exist
	// The existing account keeps its owner; created reports whether a new account was made
	// If account has to be created and owner not found must return apperrors.ErrUserNotFound
	CreditOrCreate(ctx context.Context, accountID int64, ownerID int64, delta money.Amount) (account models.Account, created bool, err error)

	// Subtract amount from the account owned by ownerID
	// If account not found or owned by someone else must return apperrors.ErrAccountNotFound
	// If balance is less than amount must return apperrors.ErrInsufficientFunds
	Debit(ctx context.Context, accountID int64, ownerID int64, amount money.Amount) (models.Account, error)
}

// Ledger repository interface
type LedgerRepo interface {
	// Insert transaction unless one with the same idempotency key exists
	// Returns inserted=false and the stored transaction if key is already taken
	Insert(ctx context.Context, t models.Transaction) (stored models.Transaction, inserted bool, err error)

	// If transaction not found must return apperrors.ErrTransactionNotFound
	GetByKey(ctx context.Context, key string) (models.Transaction, error)

	// List transactions newest first
	ListByUser(ctx context.Context, userID int64) ([]models.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error)
}

// Product repository interface
type ProductRepo interface {
	CreateProduct(ctx context.Context, title string, description string, price money.Amount) (models.Product, error)

	// If product not found must return apperrors.ErrProductNotFound
	GetProduct(ctx context.Context, productID int64) (models.Product, error)

	ListProducts(ctx context.Context) ([]models.Product, error)
}

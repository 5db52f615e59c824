package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
)

// Accounts credited by the payment provider get explicit ids, so the identity sequence may
// hand out an id that is already taken. Skip such ids up to this many times.
const createAccountAttempts = 10

type AccountRepo struct {
	DB DBTX
}

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (user_id)
VALUES ($1)
ON CONFLICT (id) DO NOTHING
RETURNING id, created_at, user_id, balance
`

func (r *AccountRepo) CreateAccount(ctx context.Context, userID int64) (models.Account, error) {
	for range createAccountAttempts {
		rows, _ := r.DB.Query(ctx, createAccount, userID)
		account, err := pgx.CollectOneRow(rows, rowToAccount)

		switch {
		case err == nil:
			return account, nil
		case errors.Is(err, pgx.ErrNoRows):
			continue
		case isPgError(err, pgerrcode.ForeignKeyViolation):
			return account, apperrors.ErrUserNotFound
		default:
			return account, fmt.Errorf("db error: %w", err)
		}
	}

	return models.Account{}, fmt.Errorf("db error: no free account id after %d attempts", createAccountAttempts)
}

const getAccount = `-- name: GetAccount
SELECT id, created_at, user_id, balance FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetAccount(ctx context.Context, accountID int64) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccount, accountID)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const listAccounts = `-- name: ListAccounts
SELECT id, created_at, user_id, balance FROM accounts
WHERE user_id = $1
ORDER BY id
`

func (r *AccountRepo) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	rows, _ := r.DB.Query(ctx, listAccounts, userID)
	accounts, err := pgx.CollectRows(rows, rowToAccount)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return accounts, nil
}

// Upsert keeps read and write under the row lock, so concurrent credits never lose an update.
// xmax is zero only for a freshly inserted row version.
const creditOrCreate = `-- name: CreditOrCreate
INSERT INTO accounts (id, user_id, balance)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance
RETURNING id, created_at, user_id, balance, (xmax = 0) AS created
`

func (r *AccountRepo) CreditOrCreate(ctx context.Context, accountID int64, ownerID int64, delta money.Amount) (models.Account, bool, error) {
	var (
		account models.Account
		created bool
	)

	err := r.DB.QueryRow(ctx, creditOrCreate, accountID, ownerID, int64(delta)).Scan(
		&account.ID,
		&account.CreatedAt,
		&account.UserID,
		(*int64)(&account.Balance),
		&created,
	)

	switch {
	case err == nil:
		return account, created, nil
	case isPgError(err, pgerrcode.ForeignKeyViolation):
		return account, false, apperrors.ErrUserNotFound
	case isPgError(err, pgerrcode.CheckViolation), isPgError(err, pgerrcode.NumericValueOutOfRange):
		return account, false, fmt.Errorf("%w: %w", apperrors.ErrInvalidAmount, err)
	default:
		return account, false, fmt.Errorf("db error: %w", err)
	}
}

const debitAccount = `-- name: DebitAccount
UPDATE accounts SET balance = balance - $3
WHERE id = $1 AND user_id = $2 AND balance >= $3
RETURNING id, created_at, user_id, balance
`

const getAccountOwner = `-- name: GetAccountOwner
SELECT user_id FROM accounts
WHERE id = $1
`

func (r *AccountRepo) Debit(ctx context.Context, accountID int64, ownerID int64, amount money.Amount) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, debitAccount, accountID, ownerID, int64(amount))
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Nothing updated: tell missing or foreign account from lack of funds
	default:
		return account, fmt.Errorf("db error: %w", err)
	}

	var owner int64
	err = r.DB.QueryRow(ctx, getAccountOwner, accountID).Scan(&owner)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	case err != nil:
		return account, fmt.Errorf("db error: %w", err)
	case owner != ownerID:
		return account, apperrors.ErrAccountNotFound
	default:
		return account, apperrors.ErrInsufficientFunds
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.CreatedAt, &a.UserID, (*int64)(&a.Balance))
	return a, err
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
)

type LedgerRepo struct {
	DB DBTX
}

const insertTransaction = `-- name: InsertTransaction
INSERT INTO transactions (id, idempotency_key, account_id, kind, amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING id, created_at, idempotency_key, account_id, kind, amount
`

func (r *LedgerRepo) Insert(ctx context.Context, t models.Transaction) (models.Transaction, bool, error) {
	rows, _ := r.DB.Query(ctx, insertTransaction, t.ID, t.IdempotencyKey, t.AccountID, t.Kind, int64(t.Amount))
	stored, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return stored, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Key is taken by a committed transaction
		stored, err = r.GetByKey(ctx, t.IdempotencyKey)
		return stored, false, err
	default:
		return stored, false, fmt.Errorf("db error: %w", err)
	}
}

const getTransactionByKey = `-- name: GetTransactionByKey
SELECT id, created_at, idempotency_key, account_id, kind, amount FROM transactions
WHERE idempotency_key = $1
`

func (r *LedgerRepo) GetByKey(ctx context.Context, key string) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, getTransactionByKey, key)
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrTransactionNotFound
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

const listTransactionsByUser = `-- name: ListTransactionsByUser
SELECT t.id, t.created_at, t.idempotency_key, t.account_id, t.kind, t.amount FROM transactions t
JOIN accounts a ON a.id = t.account_id
WHERE a.user_id = $1
ORDER BY t.created_at DESC, t.id
`

func (r *LedgerRepo) ListByUser(ctx context.Context, userID int64) ([]models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listTransactionsByUser, userID)
	return collectTransactions(rows)
}

const listTransactionsByAccount = `-- name: ListTransactionsByAccount
SELECT id, created_at, idempotency_key, account_id, kind, amount FROM transactions
WHERE account_id = $1
ORDER BY created_at DESC, id
`

func (r *LedgerRepo) ListByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listTransactionsByAccount, accountID)
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transactions, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.CreatedAt, &t.IdempotencyKey, &t.AccountID, &t.Kind, (*int64)(&t.Amount))
	return t, err
}

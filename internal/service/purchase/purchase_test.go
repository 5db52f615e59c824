package purchase

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/repository/postgres"
	"github.com/nkiryanov/ledger/internal/service/ledger"
	"github.com/nkiryanov/ledger/internal/testutil"
)

func TestPurchase(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	type fixture struct {
		storage repository.Storage
		user    models.User
		account models.Account
		product models.Product
	}

	// Account has 100.00, product costs 30.00
	inTx := func(t *testing.T, fn func(s *Service, f fixture)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			user, err := storage.User().CreateUser(t.Context(), repository.CreateUserParams{
				Username:       "buyer",
				HashedPassword: "hash",
				Activated:      true,
			})
			require.NoError(t, err)
			account, err := storage.Account().CreateAccount(t.Context(), user.ID)
			require.NoError(t, err)
			account, _, err = storage.Account().CreditOrCreate(t.Context(), account.ID, user.ID, 10000)
			require.NoError(t, err)
			product, err := storage.Product().CreateProduct(t.Context(), "book", "paper", 3000)
			require.NoError(t, err)

			ledgerSvc := ledger.NewService(storage, nil, logger.NewNoOpLogger())
			fn(NewService(storage.Product(), ledgerSvc, logger.NewNoOpLogger()), fixture{storage, user, account, product})
		})
	}

	t.Run("buy ok", func(t *testing.T) {
		inTx(t, func(s *Service, f fixture) {
			result, err := s.Buy(t.Context(), f.user, Params{ProductID: f.product.ID, AccountID: f.account.ID})

			require.NoError(t, err)
			assert.False(t, result.AlreadyApplied)
			assert.Equal(t, f.product.ID, result.Product.ID)
			assert.EqualValues(t, 7000, result.Account.Balance)
			assert.EqualValues(t, -3000, result.Transaction.Amount)
			assert.Equal(t, models.TransactionKindPurchase, result.Transaction.Kind)
		})
	})

	t.Run("no key buys every time", func(t *testing.T) {
		inTx(t, func(s *Service, f fixture) {
			params := Params{ProductID: f.product.ID, AccountID: f.account.ID}
			_, err := s.Buy(t.Context(), f.user, params)
			require.NoError(t, err)

			result, err := s.Buy(t.Context(), f.user, params)

			require.NoError(t, err)
			assert.EqualValues(t, 4000, result.Account.Balance)

			entries, err := f.storage.Ledger().ListByAccount(t.Context(), f.account.ID)
			require.NoError(t, err)
			assert.Len(t, entries, 2)
		})
	})

	t.Run("same key charges once", func(t *testing.T) {
		inTx(t, func(s *Service, f fixture) {
			params := Params{ProductID: f.product.ID, AccountID: f.account.ID, IdempotencyKey: "order-1"}
			first, err := s.Buy(t.Context(), f.user, params)
			require.NoError(t, err)

			second, err := s.Buy(t.Context(), f.user, params)

			require.NoError(t, err)
			assert.True(t, second.AlreadyApplied)
			assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
			assert.Equal(t, fmt.Sprintf("purchase:%d:order-1", f.user.ID), second.Transaction.IdempotencyKey)
			assert.EqualValues(t, 7000, second.Account.Balance)
		})
	})

	t.Run("insufficient funds", func(t *testing.T) {
		inTx(t, func(s *Service, f fixture) {
			expensive, err := f.storage.Product().CreateProduct(t.Context(), "car", "", 10001)
			require.NoError(t, err)

			_, err = s.Buy(t.Context(), f.user, Params{ProductID: expensive.ID, AccountID: f.account.ID})

			require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
			got, err := f.storage.Account().GetAccount(t.Context(), f.account.ID)
			require.NoError(t, err)
			assert.EqualValues(t, 10000, got.Balance, "balance must stay unchanged")
		})
	})

	t.Run("unknown product", func(t *testing.T) {
		inTx(t, func(s *Service, f fixture) {
			_, err := s.Buy(t.Context(), f.user, Params{ProductID: f.product.ID + 100, AccountID: f.account.ID})

			require.ErrorIs(t, err, apperrors.ErrProductNotFound)
		})
	})

	t.Run("someone else's account", func(t *testing.T) {
		inTx(t, func(s *Service, f fixture) {
			thief, err := f.storage.User().CreateUser(t.Context(), repository.CreateUserParams{
				Username:       "thief",
				HashedPassword: "hash",
				Activated:      true,
			})
			require.NoError(t, err)

			_, err = s.Buy(t.Context(), thief, Params{ProductID: f.product.ID, AccountID: f.account.ID})

			require.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "purchase:7:abc", key(7, "abc"))
	assert.NotEqual(t, key(7, ""), key(7, ""), "generated keys must be unique")
	assert.NotEqual(t, key(7, "abc"), key(8, "abc"), "client keys are scoped by user")
}

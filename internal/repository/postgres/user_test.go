package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/repository"
	"github.com/nkiryanov/ledger/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	params := repository.CreateUserParams{Username: "testuser", HashedPassword: "hashedpassword123"}

	t.Run("create user ok", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), params)

			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assert.Equal(t, "testuser", user.Username)
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.False(t, user.Activated, "user is not activated unless asked")
			assert.False(t, user.Superuser)
			assert.NotEqual(t, uuid.Nil, user.ActivationToken, "activation token has to be generated")
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create activated superuser", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), repository.CreateUserParams{
				Username:       "admin",
				HashedPassword: "hash",
				Activated:      true,
				Superuser:      true,
			})

			require.NoError(t, err)
			assert.True(t, user.Activated)
			assert.True(t, user.Superuser)
		})
	})

	t.Run("create duplicate fail", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			_, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			_, err = r.CreateUser(t.Context(), params)

			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("get user by id ok", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by id not found", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByID(t.Context(), 100500)

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
		})
	})

	t.Run("get user by username", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			got, err := r.GetUserByUsername(t.Context(), "testuser")
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)

			_, err = r.GetUserByUsername(t.Context(), "unknown")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("get user by activation token", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			got, err := r.GetUserByActivationToken(t.Context(), created.ActivationToken)
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)

			_, err = r.GetUserByActivationToken(t.Context(), uuid.New())
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("set activated", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			activated, err := r.SetActivated(t.Context(), created.ID, true)
			require.NoError(t, err)
			assert.True(t, activated.Activated)

			deactivated, err := r.SetActivated(t.Context(), created.ID, false)
			require.NoError(t, err)
			assert.False(t, deactivated.Activated)

			_, err = r.SetActivated(t.Context(), 100500, true)
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("list users", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			first, err := r.CreateUser(t.Context(), repository.CreateUserParams{Username: "first", HashedPassword: "h"})
			require.NoError(t, err)
			second, err := r.CreateUser(t.Context(), repository.CreateUserParams{Username: "second", HashedPassword: "h"})
			require.NoError(t, err)

			users, err := r.ListUsers(t.Context())

			require.NoError(t, err)
			require.Len(t, users, 2)
			assert.Equal(t, first.ID, users[0].ID)
			assert.Equal(t, second.ID, users[1].ID)
		})
	})
}

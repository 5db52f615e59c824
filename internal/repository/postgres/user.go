package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (username, password_hash, activated, superuser, activation_token)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, username, password_hash, activated, superuser, activation_token
`

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser,
		params.Username,
		params.HashedPassword,
		params.Activated,
		params.Superuser,
		uuid.New(),
	)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT id, created_at, username, password_hash, activated, superuser, activation_token FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT id, created_at, username, password_hash, activated, superuser, activation_token FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows)
}

const getUserByActivationToken = `-- name: GetUserByActivationToken
SELECT id, created_at, username, password_hash, activated, superuser, activation_token FROM users
WHERE activation_token = $1
`

func (r *UserRepo) GetUserByActivationToken(ctx context.Context, token uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByActivationToken, token)
	return collectUser(rows)
}

const setUserActivated = `-- name: SetUserActivated
UPDATE users SET activated = $2
WHERE id = $1
RETURNING id, created_at, username, password_hash, activated, superuser, activation_token
`

func (r *UserRepo) SetActivated(ctx context.Context, id int64, activated bool) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setUserActivated, id, activated)
	return collectUser(rows)
}

const listUsers = `-- name: ListUsers
SELECT id, created_at, username, password_hash, activated, superuser, activation_token FROM users
ORDER BY id
`

func (r *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, _ := r.DB.Query(ctx, listUsers)
	users, err := pgx.CollectRows(rows, rowToUser)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return users, nil
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.HashedPassword, &u.Activated, &u.Superuser, &u.ActivationToken)
	return u, err
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
)

type ProductRepo struct {
	DB DBTX
}

const createProduct = `-- name: CreateProduct
INSERT INTO products (title, description, price)
VALUES ($1, $2, $3)
RETURNING id, created_at, title, description, price
`

func (r *ProductRepo) CreateProduct(ctx context.Context, title string, description string, price money.Amount) (models.Product, error) {
	rows, _ := r.DB.Query(ctx, createProduct, title, description, int64(price))
	product, err := pgx.CollectOneRow(rows, rowToProduct)

	switch {
	case err == nil:
		return product, nil
	case isPgError(err, pgerrcode.CheckViolation):
		return product, fmt.Errorf("%w: price must be positive", apperrors.ErrInvalidAmount)
	default:
		return product, fmt.Errorf("db error: %w", err)
	}
}

const getProduct = `-- name: GetProduct
SELECT id, created_at, title, description, price FROM products
WHERE id = $1
`

func (r *ProductRepo) GetProduct(ctx context.Context, productID int64) (models.Product, error) {
	rows, _ := r.DB.Query(ctx, getProduct, productID)
	product, err := pgx.CollectOneRow(rows, rowToProduct)

	switch {
	case err == nil:
		return product, nil
	case errors.Is(err, pgx.ErrNoRows):
		return product, apperrors.ErrProductNotFound
	default:
		return product, fmt.Errorf("db error: %w", err)
	}
}

const listProducts = `-- name: ListProducts
SELECT id, created_at, title, description, price FROM products
ORDER BY id
`

func (r *ProductRepo) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, _ := r.DB.Query(ctx, listProducts)
	products, err := pgx.CollectRows(rows, rowToProduct)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return products, nil
}

func rowToProduct(row pgx.CollectableRow) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.CreatedAt, &p.Title, &p.Description, (*int64)(&p.Price))
	return p, err
}

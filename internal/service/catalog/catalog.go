package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
	"github.com/nkiryanov/ledger/internal/repository"
)

var ErrEmptyTitle = errors.New("product title must not be empty")

type CatalogService struct {
	productRepo repository.ProductRepo
}

func NewService(productRepo repository.ProductRepo) *CatalogService {
	return &CatalogService{
		productRepo: productRepo,
	}
}

// CreateProduct fails with apperrors.ErrInvalidAmount if price is not positive
func (s *CatalogService) CreateProduct(ctx context.Context, title string, description string, price money.Amount) (models.Product, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Product{}, ErrEmptyTitle
	}

	return s.productRepo.CreateProduct(ctx, title, description, price)
}

func (s *CatalogService) GetProduct(ctx context.Context, productID int64) (models.Product, error) {
	return s.productRepo.GetProduct(ctx, productID)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.productRepo.ListProducts(ctx)
}

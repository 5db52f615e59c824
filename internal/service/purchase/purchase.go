package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
	"github.com/nkiryanov/ledger/internal/service/ledger"
)

type products interface {
	GetProduct(ctx context.Context, productID int64) (models.Product, error)
}

type debitor interface {
	Debit(ctx context.Context, key string, kind string, accountID int64, ownerID int64, amount money.Amount) (ledger.Result, error)
}

type Params struct {
	ProductID int64
	AccountID int64

	// Client supplied key. Repeated purchase with the same key charges once.
	// Empty key makes every call a new purchase.
	IdempotencyKey string
}

type Result struct {
	Product        models.Product
	Account        models.Account
	Transaction    models.Transaction
	AlreadyApplied bool
}

type Service struct {
	products products
	ledger   debitor
	logger   logger.Logger
}

func NewService(products products, ledger debitor, l logger.Logger) *Service {
	return &Service{
		products: products,
		ledger:   ledger,
		logger:   l.With("component", "purchase"),
	}
}

// Buy charges product price from the user's account
// Fails with apperrors.ErrProductNotFound, ErrAccountNotFound (missing or someone else's account)
// or ErrInsufficientFunds
func (s *Service) Buy(ctx context.Context, user models.User, p Params) (Result, error) {
	product, err := s.products.GetProduct(ctx, p.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrProductNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
	}

	applied, err := s.ledger.Debit(ctx, key(user.ID, p.IdempotencyKey), models.TransactionKindPurchase, p.AccountID, user.ID, product.Price)
	if err != nil {
		if errors.Is(err, apperrors.ErrStorage) {
			s.logger.Error("purchase failed", "error", err, "user_id", user.ID, "product_id", product.ID)
		}
		return Result{}, err
	}

	s.logger.Info("product bought",
		"user_id", user.ID,
		"product_id", product.ID,
		"account_id", applied.Account.ID,
		"already_applied", applied.Status == ledger.StatusAlreadyApplied,
	)

	return Result{
		Product:        product,
		Account:        applied.Account,
		Transaction:    applied.Transaction,
		AlreadyApplied: applied.Status == ledger.StatusAlreadyApplied,
	}, nil
}

// Client keys are scoped by user so one user can't replay another's purchase
func key(userID int64, clientKey string) string {
	if clientKey == "" {
		return "purchase:" + uuid.NewString()
	}
	return fmt.Sprintf("purchase:%d:%s", userID, clientKey)
}

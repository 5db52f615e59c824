package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/handlers/userctx"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
	"github.com/nkiryanov/ledger/internal/service/purchase"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

type productResponse struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Price       money.Amount `json:"price"`
	CreatedAt   time.Time    `json:"created_at"`
}

func newProductResponse(p models.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		CreatedAt:   p.CreatedAt,
	}
}

func handleListProducts(catalogService catalogService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		products, err := catalogService.ListProducts(r.Context())
		if err != nil {
			l.Error("Failed to list products", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]productResponse, 0, len(products))
		for _, p := range products {
			resp = append(resp, newProductResponse(p))
		}
		render.JSON(w, resp)
	})
}

func handleGetProduct(catalogService catalogService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		productID, ok := pathID(r, "id")
		if !ok {
			render.NotFound(w)
			return
		}

		product, err := catalogService.GetProduct(r.Context(), productID)
		switch {
		case err == nil:
			render.JSON(w, newProductResponse(product))
		case errors.Is(err, apperrors.ErrProductNotFound):
			render.NotFound(w)
		default:
			l.Error("Failed to get product", "error", err, "product_id", productID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleCreateProduct(catalogService catalogService, l logger.Logger) http.Handler {
	type request struct {
		Title       string          `json:"title" validate:"required,max=200"`
		Description string          `json:"description" validate:"max=2000"`
		Price       decimal.Decimal `json:"price" validate:"money"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		price, err := money.FromDecimal(data.Price)
		if err != nil {
			render.ServiceError(w, "Invalid price", http.StatusBadRequest)
			return
		}

		product, err := catalogService.CreateProduct(r.Context(), data.Title, data.Description, price)
		switch {
		case err == nil:
			render.JSON(w, newProductResponse(product))
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Invalid price", http.StatusBadRequest)
		default:
			l.Error("Failed to create product", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleBuy(purchaseService purchaseService, l logger.Logger) http.Handler {
	type request struct {
		AccountID int64 `json:"account_id" validate:"required,gt=0"`
	}
	type response struct {
		Success        bool                `json:"success"`
		AlreadyApplied bool                `json:"already_applied"`
		Account        accountResponse     `json:"account"`
		Transaction    transactionResponse `json:"transaction"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		productID, ok := pathID(r, "id")
		if !ok {
			render.NotFound(w)
			return
		}

		key := r.Header.Get(idempotencyKeyHeader)
		if len(key) > maxIdempotencyKeyLen {
			render.ServiceError(w, "Idempotency key is too long", http.StatusBadRequest)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		result, err := purchaseService.Buy(r.Context(), user, purchase.Params{
			ProductID:      productID,
			AccountID:      data.AccountID,
			IdempotencyKey: key,
		})
		switch {
		case err == nil:
			render.JSON(w, response{
				Success:        true,
				AlreadyApplied: result.AlreadyApplied,
				Account:        newAccountResponse(result.Account),
				Transaction:    newTransactionResponse(result.Transaction),
			})
		case errors.Is(err, apperrors.ErrProductNotFound):
			render.NotFound(w)
		case errors.Is(err, apperrors.ErrAccountNotFound):
			render.ServiceError(w, "Wrong account", http.StatusUnprocessableEntity)
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			render.ServiceError(w, "Insufficient funds", http.StatusPaymentRequired)
		default:
			l.Error("Failed to buy product", "error", err, "user_id", user.ID, "product_id", productID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/handlers/userctx"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
)

func handleMyAccounts(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		accounts, err := userService.ListAccounts(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to list accounts", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]accountResponse, 0, len(accounts))
		for _, a := range accounts {
			resp = append(resp, newAccountResponse(a))
		}
		render.JSON(w, resp)
	})
}

type transactionResponse struct {
	ID             uuid.UUID    `json:"id"`
	IdempotencyKey string       `json:"idempotency_key"`
	BillID         int64        `json:"bill_id"`
	Kind           string       `json:"kind"`
	Amount         money.Amount `json:"amount"`
	CreatedAt      time.Time    `json:"created_at"`
}

func newTransactionResponse(t models.Transaction) transactionResponse {
	return transactionResponse{
		ID:             t.ID,
		IdempotencyKey: t.IdempotencyKey,
		BillID:         t.AccountID,
		Kind:           t.Kind,
		Amount:         t.Amount,
		CreatedAt:      t.CreatedAt,
	}
}

func handleMyTransactions(ledgerService ledgerService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		transactions, err := ledgerService.History(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to get transactions", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]transactionResponse, 0, len(transactions))
		for _, t := range transactions {
			resp = append(resp, newTransactionResponse(t))
		}
		render.JSON(w, resp)
	})
}

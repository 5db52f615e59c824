package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/money"
)

const (
	TransactionKindWebhook  = "webhook"
	TransactionKindPurchase = "purchase"
)

// Ledger entry
// Positive amount credits the account, negative debits it
type Transaction struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	IdempotencyKey string
	AccountID      int64
	Kind           string
	Amount         money.Amount
}

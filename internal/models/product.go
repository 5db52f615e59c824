package models

import (
	"time"

	"github.com/nkiryanov/ledger/internal/money"
)

type Product struct {
	ID          int64
	CreatedAt   time.Time
	Title       string
	Description string
	Price       money.Amount
}

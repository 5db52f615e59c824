package models

import (
	"time"

	"github.com/nkiryanov/ledger/internal/money"
)

type Account struct {
	ID        int64
	CreatedAt time.Time
	UserID    int64
	Balance   money.Amount
}

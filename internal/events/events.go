// Package events publishes ledger changes to subscribers after they are committed.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/money"
)

const (
	TypeCredited = "ledger.credited"
	TypeDebited  = "ledger.debited"
)

// Event about applied ledger transaction
type Event struct {
	Type           string       `json:"type"`
	TransactionID  uuid.UUID    `json:"transaction_id"`
	IdempotencyKey string       `json:"idempotency_key"`
	AccountID      int64        `json:"account_id"`
	UserID         int64        `json:"user_id"`
	Amount         money.Amount `json:"amount"`
	Balance        money.Amount `json:"balance"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Publisher used when no broker is configured
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func (NoopPublisher) Close() error { return nil }

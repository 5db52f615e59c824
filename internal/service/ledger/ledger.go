// Package ledger applies balance changes exactly once per idempotency key.
//
// Every change is a ledger row plus a balance mutation written in one transaction. The ledger row
// claims the key first: a concurrent or repeated change with the same key either waits for the
// first one to commit and becomes a no-op, or takes over if the first one rolled back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/events"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
	"github.com/nkiryanov/ledger/internal/repository"
)

const publishTimeout = 5 * time.Second

type Status int

const (
	StatusApplied Status = iota + 1
	StatusAlreadyApplied
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusAlreadyApplied:
		return "already_applied"
	default:
		return "unknown"
	}
}

// Entry to record
// Positive amount credits the account (creating it for OwnerID if missing), negative debits
// the account owned by OwnerID
type Entry struct {
	Key       string
	Kind      string
	AccountID int64
	OwnerID   int64
	Amount    money.Amount
}

type Result struct {
	Status         Status
	Transaction    models.Transaction
	Account        models.Account
	AccountCreated bool
}

type Service struct {
	storage   repository.Storage
	publisher events.Publisher
	logger    logger.Logger
}

func NewService(storage repository.Storage, publisher events.Publisher, l logger.Logger) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	return &Service{
		storage:   storage,
		publisher: publisher,
		logger:    l,
	}
}

// Record applies the entry unless an entry with the same key was applied before
// Domain failures are returned as is: apperrors.ErrUserNotFound, ErrAccountNotFound,
// ErrInsufficientFunds, ErrInvalidAmount. Anything else is wrapped with apperrors.ErrStorage.
// Nothing is changed on error.
func (s *Service) Record(ctx context.Context, e Entry) (Result, error) {
	if e.Key == "" {
		return Result{}, fmt.Errorf("%w: idempotency key", apperrors.ErrMissingFields)
	}
	if e.Amount == 0 {
		return Result{}, fmt.Errorf("%w: zero amount", apperrors.ErrInvalidAmount)
	}

	var result Result

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		stored, inserted, err := tx.Ledger().Insert(ctx, models.Transaction{
			ID:             uuid.New(),
			IdempotencyKey: e.Key,
			AccountID:      e.AccountID,
			Kind:           e.Kind,
			Amount:         e.Amount,
		})
		if err != nil {
			return err
		}
		result.Transaction = stored

		if !inserted {
			result.Status = StatusAlreadyApplied
			result.Account, err = tx.Account().GetAccount(ctx, stored.AccountID)
			return err
		}

		result.Status = StatusApplied
		if e.Amount.IsPositive() {
			result.Account, result.AccountCreated, err = tx.Account().CreditOrCreate(ctx, e.AccountID, e.OwnerID, e.Amount)
		} else {
			result.Account, err = tx.Account().Debit(ctx, e.AccountID, e.OwnerID, e.Amount.Neg())
		}
		return err
	})
	if err != nil {
		return Result{}, classify(err)
	}

	if result.Status == StatusAlreadyApplied && (result.Transaction.AccountID != e.AccountID || result.Transaction.Amount != e.Amount) {
		s.logger.Warn("idempotency key reused with different payload",
			"idempotency_key", e.Key,
			"stored_account_id", result.Transaction.AccountID,
			"stored_amount", result.Transaction.Amount.String(),
			"account_id", e.AccountID,
			"amount", e.Amount.String(),
		)
	}

	if result.Status == StatusApplied {
		s.publish(ctx, result)
	}

	return result, nil
}

// Credit is Record with positive amount
func (s *Service) Credit(ctx context.Context, key string, kind string, accountID int64, ownerID int64, amount money.Amount) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: credit must be positive", apperrors.ErrInvalidAmount)
	}
	return s.Record(ctx, Entry{Key: key, Kind: kind, AccountID: accountID, OwnerID: ownerID, Amount: amount})
}

// Debit is Record with amount subtracted from account owned by ownerID
func (s *Service) Debit(ctx context.Context, key string, kind string, accountID int64, ownerID int64, amount money.Amount) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: debit must be positive", apperrors.ErrInvalidAmount)
	}
	return s.Record(ctx, Entry{Key: key, Kind: kind, AccountID: accountID, OwnerID: ownerID, Amount: amount.Neg()})
}

// History returns user transactions across all of the user's accounts, newest first
func (s *Service) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	transactions, err := s.storage.Ledger().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
	}
	return transactions, nil
}

// Events are best effort: transaction is committed already
func (s *Service) publish(ctx context.Context, result Result) {
	eventType := events.TypeCredited
	if result.Transaction.Amount < 0 {
		eventType = events.TypeDebited
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, events.Event{
		Type:           eventType,
		TransactionID:  result.Transaction.ID,
		IdempotencyKey: result.Transaction.IdempotencyKey,
		AccountID:      result.Account.ID,
		UserID:         result.Account.UserID,
		Amount:         result.Transaction.Amount,
		Balance:        result.Account.Balance,
		OccurredAt:     result.Transaction.CreatedAt,
	})
	if err != nil {
		s.logger.Error("failed to publish ledger event",
			"error", err,
			"transaction_id", result.Transaction.ID,
			"idempotency_key", result.Transaction.IdempotencyKey,
		)
	}
}

var domainErrors = []error{
	apperrors.ErrUserNotFound,
	apperrors.ErrAccountNotFound,
	apperrors.ErrInsufficientFunds,
	apperrors.ErrInvalidAmount,
}

func classify(err error) error {
	for _, domainErr := range domainErrors {
		if errors.Is(err, domainErr) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
}

// Package webhook processes payment provider notifications.
//
// A notification moves through states:
//
//	received -> verified -> idempotency_checked -> applied
//	                 \               \
//	                  rejected        rejected | failed
//
// Nothing is read from or written to storage before the signature is verified.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
	"github.com/nkiryanov/ledger/internal/service/ledger"
	"github.com/nkiryanov/ledger/internal/signature"
)

const defaultTimeout = 10 * time.Second

type State string

const (
	StateReceived           State = "received"
	StateVerified           State = "verified"
	StateIdempotencyChecked State = "idempotency_checked"
	StateApplied            State = "applied"
	StateRejected           State = "rejected"
	StateFailed             State = "failed"
)

// Payload as sent by provider
// Pointers tell missing fields from zero values
type Payload struct {
	Signature     string           `json:"signature"`
	TransactionID *int64           `json:"transaction_id"`
	UserID        *int64           `json:"user_id"`
	BillID        *int64           `json:"bill_id"`
	Amount        *decimal.Decimal `json:"amount"`
}

// Fields returns signed fields or apperrors.ErrMissingFields
// Amount out of money bounds is apperrors.ErrInvalidAmount, so it is never rendered for signing
func (p Payload) Fields() (signature.Fields, error) {
	var missing []string
	if p.TransactionID == nil {
		missing = append(missing, "transaction_id")
	}
	if p.UserID == nil {
		missing = append(missing, "user_id")
	}
	if p.BillID == nil {
		missing = append(missing, "bill_id")
	}
	if p.Amount == nil {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return signature.Fields{}, fmt.Errorf("%w: %v", apperrors.ErrMissingFields, missing)
	}
	if err := money.CheckBounds(*p.Amount); err != nil {
		return signature.Fields{}, err
	}

	return signature.Fields{
		TransactionID: *p.TransactionID,
		UserID:        *p.UserID,
		BillID:        *p.BillID,
		Amount:        *p.Amount,
	}, nil
}

type Result struct {
	// Final state and every state passed on the way, including the final one
	State State
	Trail []State

	AlreadyApplied bool
	Transaction    models.Transaction
	Account        models.Account
}

type signer interface {
	Sign(f signature.Fields) string
	Verify(f signature.Fields, digest string) bool
}

type creditor interface {
	Credit(ctx context.Context, key string, kind string, accountID int64, ownerID int64, amount money.Amount) (ledger.Result, error)
}

type Config struct {
	// Max time to apply verified notification
	// If not set than default is used
	Timeout time.Duration
}

type Processor struct {
	signer  signer
	ledger  creditor
	timeout time.Duration
	logger  logger.Logger
}

func NewProcessor(cfg Config, signer signer, ledger creditor, l logger.Logger) *Processor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Processor{
		signer:  signer,
		ledger:  ledger,
		timeout: cfg.Timeout,
		logger:  l.With("component", "webhook"),
	}
}

// Process verifies and applies notification
// Rejected notifications return apperrors.ErrMissingFields, ErrBadSignature, ErrInvalidAmount or ErrUserNotFound;
// failed ones return error wrapping apperrors.ErrStorage. A notification already applied before is applied.
func (p *Processor) Process(ctx context.Context, payload Payload) (Result, error) {
	result := Result{}
	result.to(StateReceived)

	fields, err := payload.Fields()
	if err != nil {
		return p.reject(result, err)
	}
	l := p.logger.With("transaction_id", fields.TransactionID, "bill_id", fields.BillID)

	if !p.signer.Verify(fields, payload.Signature) {
		l.Info("webhook rejected: bad signature")
		return p.reject(result, apperrors.ErrBadSignature)
	}
	result.to(StateVerified)

	if err := validate(fields); err != nil {
		l.Info("webhook rejected", "error", err)
		return p.reject(result, err)
	}
	amount, err := money.FromDecimal(fields.Amount)
	if err != nil {
		l.Info("webhook rejected", "error", err)
		return p.reject(result, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	applied, err := p.ledger.Credit(ctx,
		strconv.FormatInt(fields.TransactionID, 10),
		models.TransactionKindWebhook,
		fields.BillID,
		fields.UserID,
		amount,
	)
	switch {
	case err == nil:
		result.to(StateIdempotencyChecked)
	case errors.Is(err, apperrors.ErrUserNotFound), errors.Is(err, apperrors.ErrInvalidAmount):
		result.to(StateIdempotencyChecked)
		l.Info("webhook rejected", "error", err)
		return p.reject(result, err)
	default:
		l.Error("webhook failed", "error", err)
		result.to(StateFailed)
		if !errors.Is(err, apperrors.ErrStorage) {
			err = fmt.Errorf("%w: %w", apperrors.ErrStorage, err)
		}
		return result, err
	}

	result.to(StateApplied)
	result.AlreadyApplied = applied.Status == ledger.StatusAlreadyApplied
	result.Transaction = applied.Transaction
	result.Account = applied.Account

	l.Info("webhook applied",
		"already_applied", result.AlreadyApplied,
		"account_created", applied.AccountCreated,
		"amount", amount.String(),
	)

	return result, nil
}

// Sign payload fields the way provider does
func (p *Processor) Sign(payload Payload) (string, error) {
	fields, err := payload.Fields()
	if err != nil {
		return "", err
	}
	return p.signer.Sign(fields), nil
}

func (p *Processor) reject(result Result, err error) (Result, error) {
	result.to(StateRejected)
	return result, err
}

func (r *Result) to(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

func validate(f signature.Fields) error {
	if f.TransactionID <= 0 || f.UserID <= 0 || f.BillID <= 0 {
		return fmt.Errorf("%w: ids must be positive", apperrors.ErrMissingFields)
	}

	if !f.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidAmount)
	}

	return nil
}

// Package money keeps amounts as integer minor units.
// Wire format is a decimal number with up to two fraction digits.
package money

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/apperrors"
)

// Number of fraction digits in the minor unit
const Scale = 2

// Limits on decimal representation accepted from outside
// Rescaling a value like 1e2000000000 allocates all of its digits
const (
	maxExponent        = 18
	minExponent        = -18
	maxCoefficientBits = 128
)

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// Amount in minor units, 150.50 is Amount(15050)
type Amount int64

// FromDecimal converts decimal to minor units
// Fails with apperrors.ErrInvalidAmount if the value has more than Scale fraction digits or overflows int64
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if err := CheckBounds(d); err != nil {
		return 0, err
	}

	shifted := d.Shift(Scale)

	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: more than %d fraction digits in %s", apperrors.ErrInvalidAmount, Scale, d.String())
	}

	if shifted.GreaterThan(maxAmount) || shifted.LessThan(minAmount) {
		return 0, fmt.Errorf("%w: %s is out of range", apperrors.ErrInvalidAmount, d.String())
	}

	return Amount(shifted.IntPart()), nil
}

// CheckBounds rejects decimals too large to be handled cheaply, without rescaling them
// Any valid Amount is within bounds
func CheckBounds(d decimal.Decimal) error {
	if exp := d.Exponent(); exp > maxExponent || exp < minExponent {
		return fmt.Errorf("%w: exponent %d is out of range", apperrors.ErrInvalidAmount, exp)
	}
	if d.Coefficient().BitLen() > maxCoefficientBits {
		return fmt.Errorf("%w: too many digits", apperrors.ErrInvalidAmount)
	}
	return nil
}

// Parse decimal string like "150.5"
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperrors.ErrInvalidAmount, err)
	}
	return FromDecimal(d)
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

// String returns canonical decimal form without trailing zeros: "150", "150.5"
func (a Amount) String() string {
	return a.Decimal().String()
}

func (a Amount) Neg() Amount {
	return -a
}

func (a Amount) IsPositive() bool {
	return a > 0
}

// MarshalJSON renders amount as JSON number
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidAmount, err)
	}

	amount, err := FromDecimal(d)
	if err != nil {
		return err
	}

	*a = amount
	return nil
}

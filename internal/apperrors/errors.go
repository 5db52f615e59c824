package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserNotActivated  = errors.New("user is not activated")

	ErrTokenInvalid = errors.New("token is invalid")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount is invalid")

	ErrTransactionNotFound = errors.New("transaction not found")

	ErrProductNotFound = errors.New("product not found")

	// Webhook rejections
	ErrMissingFields = errors.New("required fields are missing or malformed")
	ErrBadSignature  = errors.New("signature does not match")

	// Any infrastructure failure: database unavailable, timeout, constraint not mapped to a domain error
	ErrStorage = errors.New("storage error")
)

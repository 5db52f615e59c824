package models

import (
	"time"
)

// Token issued by TokenManager
// ExpiresAt is zero if token never expires
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

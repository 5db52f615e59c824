package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID              int64
	CreatedAt       time.Time
	Username        string
	HashedPassword  string
	Activated       bool
	Superuser       bool
	ActivationToken uuid.UUID
}

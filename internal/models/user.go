package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	Username     string
	Email        string
	PasswordHash string

	// Current refresh token secret. Empty until one is issued.
	// At most one value is valid per user at any time; rotated on every refresh.
	RefreshToken string
}

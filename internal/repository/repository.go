package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/cropadvisor/internal/models"
)

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	RefreshToken string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the same email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by its id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Unconditionally set user refresh token
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error

	// Atomically replace oldToken with newToken on whichever user holds oldToken.
	// Exactly one of several concurrent calls with the same oldToken may succeed;
	// the rest must return apperrors.ErrRefreshTokenNotFound.
	RotateRefreshToken(ctx context.Context, oldToken string, newToken string) (models.User, error)
}

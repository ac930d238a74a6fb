package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/cropadvisor/internal/apperrors"
	"github.com/nkiryanov/cropadvisor/internal/models"
	"github.com/nkiryanov/cropadvisor/internal/repository"
)

// In memory UserRepo for tests that don't need a real mongo.
// Rotation runs under the same lock as in a single-document conditional update,
// so the exactly-one-winner property holds here too.
type MemUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func NewMemUserRepo() *MemUserRepo {
	return &MemUserRepo{users: map[uuid.UUID]models.User{}}
}

func (r *MemUserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == arg.Email {
			return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUserAlreadyExists)
		}
	}

	user := models.User{
		ID:           uuid.New(),
		CreatedAt:    time.Now(),
		Username:     arg.Username,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		RefreshToken: arg.RefreshToken,
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *MemUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}
	return user, nil
}

func (r *MemUserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
}

func (r *MemUserRepo) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}
	user.RefreshToken = token
	r.users[userID] = user
	return nil
}

func (r *MemUserRepo) RotateRefreshToken(ctx context.Context, oldToken string, newToken string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.users {
		if u.RefreshToken == oldToken {
			u.RefreshToken = newToken
			r.users[id] = u
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
}

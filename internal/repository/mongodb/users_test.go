package mongodb_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/cropadvisor/internal/apperrors"
	"github.com/nkiryanov/cropadvisor/internal/repository"
	"github.com/nkiryanov/cropadvisor/internal/repository/mongodb"
	"github.com/nkiryanov/cropadvisor/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel()

	mc := testutil.StartMongoContainer(t)
	t.Cleanup(mc.Terminate)

	// Fresh database and repo per test
	newRepo := func(t *testing.T) *mongodb.UserRepo {
		return mongodb.NewUserRepo(testutil.FreshDatabase(t, mc.Client))
	}

	defaultParams := repository.CreateUserParams{
		Username:     "nkiryanov",
		Email:        "nkiryanov@example.com",
		PasswordHash: "hashed-password",
		RefreshToken: "refresh-token",
	}

	t.Run("CreateUser", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			repo := newRepo(t)

			user, err := repo.CreateUser(t.Context(), defaultParams)

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, user.ID, "user id should be generated")
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second)
			assert.Equal(t, "nkiryanov", user.Username)
			assert.Equal(t, "nkiryanov@example.com", user.Email)
			assert.Equal(t, "hashed-password", user.PasswordHash)
			assert.Equal(t, "refresh-token", user.RefreshToken)
		})

		t.Run("fail if email taken", func(t *testing.T) {
			repo := newRepo(t)

			_, err := repo.CreateUser(t.Context(), defaultParams)
			require.NoError(t, err)

			params := defaultParams
			params.Username = "other-username"
			_, err = repo.CreateUser(t.Context(), params)

			require.Error(t, err)
			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists, "unique email index should reject the duplicate")
		})

		t.Run("usernames may repeat", func(t *testing.T) {
			repo := newRepo(t)

			_, err := repo.CreateUser(t.Context(), defaultParams)
			require.NoError(t, err)

			params := defaultParams
			params.Email = "other@example.com"
			params.RefreshToken = "other-refresh-token"
			_, err = repo.CreateUser(t.Context(), params)

			require.NoError(t, err, "only email is unique, not the username")
		})
	})

	t.Run("GetUserByID", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.CreateUser(t.Context(), defaultParams)
		require.NoError(t, err)

		t.Run("ok", func(t *testing.T) {
			user, err := repo.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created.ID, user.ID)
			assert.Equal(t, created.Username, user.Username)
			assert.Equal(t, created.Email, user.Email)
			assert.Equal(t, created.PasswordHash, user.PasswordHash)
			assert.Equal(t, created.RefreshToken, user.RefreshToken)

			// Mongo returns times in UTC, compare the instant not the location
			assert.True(t, created.CreatedAt.Equal(user.CreatedAt), "created at should survive the round trip")
		})

		t.Run("not found", func(t *testing.T) {
			_, err := repo.GetUserByID(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("GetUserByEmail", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.CreateUser(t.Context(), defaultParams)
		require.NoError(t, err)

		t.Run("ok", func(t *testing.T) {
			user, err := repo.GetUserByEmail(t.Context(), "nkiryanov@example.com")

			require.NoError(t, err)
			assert.Equal(t, created.ID, user.ID)
		})

		t.Run("not found", func(t *testing.T) {
			_, err := repo.GetUserByEmail(t.Context(), "unknown@example.com")
			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("SetRefreshToken", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			repo := newRepo(t)

			created, err := repo.CreateUser(t.Context(), defaultParams)
			require.NoError(t, err)

			err = repo.SetRefreshToken(t.Context(), created.ID, "new-refresh-token")
			require.NoError(t, err)

			user, err := repo.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "new-refresh-token", user.RefreshToken)
		})

		t.Run("user not found", func(t *testing.T) {
			repo := newRepo(t)

			err := repo.SetRefreshToken(t.Context(), uuid.New(), "new-refresh-token")
			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("RotateRefreshToken", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			repo := newRepo(t)

			created, err := repo.CreateUser(t.Context(), defaultParams)
			require.NoError(t, err)

			user, err := repo.RotateRefreshToken(t.Context(), "refresh-token", "new-refresh-token")

			require.NoError(t, err)
			assert.Equal(t, created.ID, user.ID, "rotation should return the token owner")
			assert.Equal(t, "new-refresh-token", user.RefreshToken, "returned user should carry the new token")

			stored, err := repo.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "new-refresh-token", stored.RefreshToken)
		})

		t.Run("rotated token not usable again", func(t *testing.T) {
			repo := newRepo(t)

			_, err := repo.CreateUser(t.Context(), defaultParams)
			require.NoError(t, err)

			_, err = repo.RotateRefreshToken(t.Context(), "refresh-token", "new-refresh-token")
			require.NoError(t, err)

			_, err = repo.RotateRefreshToken(t.Context(), "refresh-token", "other-refresh-token")
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})

		t.Run("unknown token", func(t *testing.T) {
			repo := newRepo(t)

			_, err := repo.RotateRefreshToken(t.Context(), "never-issued", "new-refresh-token")
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})

		t.Run("exactly one concurrent rotation wins", func(t *testing.T) {
			repo := newRepo(t)

			_, err := repo.CreateUser(t.Context(), defaultParams)
			require.NoError(t, err)

			const workers = 8
			results := make(chan error, workers)

			var wg sync.WaitGroup
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := repo.RotateRefreshToken(t.Context(), "refresh-token", uuid.NewString())
					results <- err
				}()
			}
			wg.Wait()
			close(results)

			succeeded := 0
			for err := range results {
				if err == nil {
					succeeded++
				} else {
					require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
				}
			}
			require.Equal(t, 1, succeeded, "single document update should let exactly one rotation pass")
		})
	})
}

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nkiryanov/cropadvisor/internal/apperrors"
	"github.com/nkiryanov/cropadvisor/internal/models"
	"github.com/nkiryanov/cropadvisor/internal/repository"
)

const usersCollection = "users"

type UserRepo struct {
	coll *mongo.Collection

	// Per operation timeout, defaultOpTimeout if zero
	OpTimeout time.Duration
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(usersCollection)}
}

// Stored representation of models.User
type userDoc struct {
	ID           string    `bson:"_id"`
	CreatedAt    time.Time `bson:"created_at"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	RefreshToken string    `bson:"refresh_token,omitempty"`
}

func (r *UserRepo) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := r.OpTimeout
	if timeout == 0 {
		timeout = defaultOpTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	doc := userDoc{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().Truncate(time.Millisecond), // mongo stores times with ms precision
		Username:     arg.Username,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		RefreshToken: arg.RefreshToken,
	}

	_, err := r.coll.InsertOne(ctx, doc)
	switch {
	case err == nil:
		return docToUser(doc)
	case mongo.IsDuplicateKeyError(err):
		return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUserAlreadyExists)
	default:
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return r.getOne(ctx, bson.M{"_id": userID.String()})
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, bson.M{"email": email})
}

func (r *UserRepo) getOne(ctx context.Context, filter bson.M) (models.User, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var doc userDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)

	switch {
	case err == nil:
		return docToUser(doc)
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	default:
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
}

func (r *UserRepo) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID.String()},
		bson.M{"$set": bson.M{"refresh_token": token}},
	)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case result.MatchedCount == 0:
		return fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	default:
		return nil
	}
}

// Rotate token with single conditional update
// Mongo updates a single document atomically: of several concurrent calls with the
// same oldToken the filter matches for exactly one
func (r *UserRepo) RotateRefreshToken(ctx context.Context, oldToken string, newToken string) (models.User, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var doc userDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"refresh_token": oldToken},
		bson.M{"$set": bson.M{"refresh_token": newToken}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)

	switch {
	case err == nil:
		return docToUser(doc)
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
}

func docToUser(doc userDoc) (models.User, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("malformed user id in db: %w", err)
	}

	return models.User{
		ID:           id,
		CreatedAt:    doc.CreatedAt,
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		RefreshToken: doc.RefreshToken,
	}, nil
}

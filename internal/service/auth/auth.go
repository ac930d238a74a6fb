package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/cropadvisor/internal/apperrors"
	"github.com/nkiryanov/cropadvisor/internal/models"
	"github.com/nkiryanov/cropadvisor/internal/repository"
	"github.com/nkiryanov/cropadvisor/internal/service/auth/tokenmanager"
)

const (
	defaultAccessCookieName  = "auth_token"
	defaultRefreshCookieName = "refresh_token"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

var validate = validator.New()

type Config struct {
	// Hasher used during user registration or login
	// BcryptHasher is used if not set
	Hasher PasswordHasher

	// Cookie names for both tokens
	// If not set than default is used
	AccessCookieName  string
	RefreshCookieName string
}

// Auth service
type AuthService struct {
	// Manager to issue and verify token pairs (access and refresh)
	token *tokenmanager.TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Hash of a throwaway password, compared against when the email is unknown
	// so the login timing stays close to the wrong password case
	dummyHash string

	// Repository to access long term data
	userRepo repository.UserRepo

	accessCookieName  string
	refreshCookieName string
}

func NewService(cfg Config, token *tokenmanager.TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	dummyHash, err := hasher.Hash("not-a-password-of-any-user")
	if err != nil {
		return nil, fmt.Errorf("error while preparing dummy hash. Err: %w", err)
	}

	setDefaultString := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefaultString(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefaultString(&cfg.RefreshCookieName, defaultRefreshCookieName)

	return &AuthService{
		token:             token,
		hasher:            hasher,
		dummyHash:         dummyHash,
		userRepo:          userRepo,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
	}, nil
}

// Register new user
// Does not issue tokens: the client is expected to login explicitly
func (s *AuthService) Register(ctx context.Context, username string, email string, password string) (models.User, error) {
	if err := validate.Var(email, "required,email"); err != nil {
		return models.User{}, fmt.Errorf("%w: %s", apperrors.ErrInvalidEmail, email)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	// Users get their refresh token secret at creation time so the
	// "at most one valid token per user" invariant holds from the start
	refresh, err := tokenmanager.NewRefreshString()
	if err != nil {
		return models.User{}, err
	}

	user, err := s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		RefreshToken: refresh,
	})
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

// Login user with email and password
// Unknown email and wrong password are indistinguishable for the caller,
// in the response body and in response time
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, email)

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		// Burn a full compare against the dummy hash: bcrypt fast fails on a
		// malformed hash, so comparing the zero value user would answer
		// unknown emails orders of magnitude faster than wrong passwords
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	default:
		return models.TokenPair{}, fmt.Errorf("error while loading user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return pair, nil
}

// Refresh token pair using valid refresh token
// The used token is rotated: reusing it fails with apperrors.ErrRefreshTokenNotFound
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	pair, err := s.token.RefreshPair(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Authenticate request by its access token cookie
// Returns the user the token was issued for
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	cookie, err := r.Cookie(s.accessCookieName)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: no access token cookie", apperrors.ErrAccessTokenInvalid)
	}

	userID, err := s.token.ParseAccess(ctx, cookie.Value)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("error while loading token user. Err: %w", err)
	}

	return user, nil
}

// Read refresh token from request cookie
func (s *AuthService) ReadRefreshToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", fmt.Errorf("%w: no refresh token cookie", apperrors.ErrRefreshTokenNotFound)
	}
	return cookie.Value, nil
}

// Set both token cookies to response
// Cookies are HttpOnly, Secure and SameSite=None so the SPA on another origin
// may use them while scripts can not read them
func (s *AuthService) SetAuthCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, s.newCookie(s.accessCookieName, pair.Access))
	http.SetCookie(w, s.newCookie(s.refreshCookieName, pair.Refresh))
}

// Clear both token cookies
func (s *AuthService) ClearAuthCookies(w http.ResponseWriter) {
	expired := func(name string) *http.Cookie {
		c := s.newCookie(name, models.IssuedToken{})
		c.MaxAge = -1
		return c
	}
	http.SetCookie(w, expired(s.accessCookieName))
	http.SetCookie(w, expired(s.refreshCookieName))
}

func (s *AuthService) newCookie(name string, token models.IssuedToken) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token.Value,
		Path:     "/",
		MaxAge:   int(time.Until(token.ExpiresAt).Round(time.Second).Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	}
}

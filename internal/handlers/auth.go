package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/cropadvisor/internal/apperrors"
	"github.com/nkiryanov/cropadvisor/internal/handlers/render"
	"github.com/nkiryanov/cropadvisor/internal/models"
)

// Auth service
type AuthService interface {
	// Register new user
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	// and apperrors.ErrInvalidEmail if email is malformed
	Register(ctx context.Context, username string, email string, password string) (models.User, error)

	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials on any credential mismatch
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Refresh tokens using refresh token
	// If token not found or rotated already: has to return apperrors.ErrRefreshTokenNotFound
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Cookie lifecycle
	SetAuthCookies(w http.ResponseWriter, pair models.TokenPair)
	ClearAuthCookies(w http.ResponseWriter)
	ReadRefreshToken(r *http.Request) (string, error)
}

type AuthHandler struct {
	auth AuthService
}

func NewAuth(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("POST /logout", h.logout)

	return mux
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}
	type RegisterSuccessResponse struct {
		Message string `json:"message"`
		UserID  string `json:"user_id"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		// Consider to log errors here
		return
	}

	user, err := h.auth.Register(r.Context(), data.Username, data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidEmail):
			render.ServiceError(w, "Invalid email address", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			// Intentionally disclosed at registration, unlike login
			render.ServiceError(w, "User already exists", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, RegisterSuccessResponse{
		Message: "User registered successfully",
		UserID:  user.ID.String(),
	}, http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type LoginSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		// Consider to log errors here
		return
	}

	pair, err := h.auth.Login(r.Context(), data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.auth.SetAuthCookies(w, pair)
	render.JSON(w, LoginSuccessResponse{Message: "Login successful"})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshSuccessResponse struct {
		Message string `json:"message"`
	}

	refresh, err := h.auth.ReadRefreshToken(r)
	if err != nil {
		render.ServiceError(w, "No refresh token provided", http.StatusUnauthorized)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.auth.SetAuthCookies(w, pair)
	render.JSON(w, RefreshSuccessResponse{Message: "Token refreshed"})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutSuccessResponse struct {
		Message string `json:"message"`
	}

	h.auth.ClearAuthCookies(w)
	render.JSON(w, LogoutSuccessResponse{Message: "Logged out successfully"})
}

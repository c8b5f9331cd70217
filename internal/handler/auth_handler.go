// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/shelf/internal/auth"
	"github.com/hitoshi/shelf/internal/middleware"
	"github.com/hitoshi/shelf/internal/model"
	"github.com/hitoshi/shelf/internal/user"
)

// AuthServiceInterface は認証ハンドラーが必要とするトークン操作のインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID string) error
}

// UserServiceInterface は認証ハンドラーが必要とするユーザー操作のインターフェース。
type UserServiceInterface interface {
	Register(ctx context.Context, in user.RegisterInput) (*model.User, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandler は登録・ログイン・ログアウト・プロフィールのHTTPハンドラー。
type AuthHandler struct {
	auth  AuthServiceInterface
	users UserServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(authService AuthServiceInterface, userService UserServiceInterface) *AuthHandler {
	return &AuthHandler{
		auth:  authService,
		users: userService,
	}
}

// Register はユーザーを登録する。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	defer fields.Close()

	_, err = h.users.Register(r.Context(), user.RegisterInput{
		Name:                 fields.value("name"),
		Email:                fields.value("email"),
		Password:             fields.value("password"),
		PasswordConfirmation: fields.get("password_confirmation"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "User created successfully", nil)
}

// Login は資格情報を検証しトークンを発行する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r, 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	defer fields.Close()

	result, err := h.auth.Login(r.Context(), fields.value("email"), fields.value("password"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User logged in successfully", map[string]any{
		"token":      result.Token,
		"token_type": "Bearer",
		"expires_at": result.ExpiresAt,
	})
}

// Logout は提示されたトークンのみを失効させる。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.TokenFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthenticated(w)
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User logged out successfully", nil)
}

// LogoutAll はユーザーの全トークンを失効させる。
// POST /api/logout/all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.auth.RevokeAll(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User logged out from all devices", nil)
}

// Profile は認証済みユーザーの情報を返す。
// GET /api/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	u, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User Profile Info", map[string]any{
		"user": toUserResponse(u),
	})
}

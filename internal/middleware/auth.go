// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/shelf/internal/auth"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// tokenContextKey は提示されたトークンを格納するためのキー。ログアウト時に使う。
	tokenContextKey = contextKey("token")
	// userIDHolderContextKey はロギングミドルウェアへユーザーIDを返すためのキー。
	userIDHolderContextKey = contextKey("user_id_holder")
)

// userIDHolder は内側のミドルウェアで確定したユーザーIDを外側へ伝える。
type userIDHolder struct {
	userID string
}

func contextWithUserIDHolder(ctx context.Context, h *userIDHolder) context.Context {
	return context.WithValue(ctx, userIDHolderContextKey, h)
}

// TokenValidator はトークンを検証し所有ユーザーIDを返すインターフェース。
// 無効なトークンにはauth.ErrUnauthenticatedを返す。
type TokenValidator interface {
	Validate(ctx context.Context, raw string) (string, error)
}

// NewAuthMiddleware はAuthorization: Bearerヘッダーのトークンを検証するミドルウェアを返す。
// 認証済みユーザーIDとトークンをリクエストコンテキストに注入する。
// 欠落・不正・期限切れ・失効のいずれも同一の401レスポンスとなる。
func NewAuthMiddleware(validator TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				WriteUnauthenticated(w)
				return
			}

			userID, err := validator.Validate(r.Context(), raw)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					WriteUnauthenticated(w)
					return
				}
				slog.Error("failed to validate token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if h, ok := r.Context().Value(userIDHolderContextKey).(*userIDHolder); ok {
				h.userID = userID
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			ctx = context.WithValue(ctx, tokenContextKey, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// TokenFromContext は認証に使われたトークンを取得する。
func TokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(tokenContextKey).(string)
	if !ok || token == "" {
		return "", fmt.Errorf("token not found in context")
	}
	return token, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithToken はコンテキストにトークンを注入する。
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

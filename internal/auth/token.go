package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/shelf/internal/model"
)

// ErrUnauthenticated はトークンが欠落・不正・期限切れ・失効のいずれかであることを表す。
// 理由は区別しない。
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// tokenBytes は生成するトークンの乱数バイト数（256bit）。
const tokenBytes = 32

// generateToken は暗号的に安全な不透明トークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken はトークンの保存・検索に使うSHA-256ハッシュ（16進数）を返す。
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// hashPrefix はログ出力用にハッシュの先頭8文字を返す。
func hashPrefix(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}

// Issue はユーザーに新しいトークンを発行する。
// 平文トークンは戻り値としてのみ返し、永続化するのはハッシュ値のみ。
func (s *Service) Issue(ctx context.Context, userID string) (string, *model.Token, error) {
	raw, err := generateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	token := &model.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: HashToken(raw),
		ExpiresAt: now.Add(time.Duration(s.config.TokenMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return "", nil, fmt.Errorf("failed to save token: %w", err)
	}

	return raw, token, nil
}

// Validate はトークンを検証し、紐づくユーザーIDを返す。
// 無効なトークンはすべてErrUnauthenticatedとなる。
func (s *Service) Validate(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", ErrUnauthenticated
	}

	token, err := s.tokenRepo.FindValidByHash(ctx, HashToken(raw))
	if err != nil {
		return "", fmt.Errorf("failed to find token: %w", err)
	}
	if token == nil || token.Expired(s.now()) {
		return "", ErrUnauthenticated
	}

	return token.UserID, nil
}

// Revoke はトークンを失効させる。失効済み・未登録のトークンでもエラーにしない。
func (s *Service) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	if err := s.tokenRepo.DeleteByHash(ctx, HashToken(raw)); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// RevokeAll は指定ユーザーの全トークンを失効させる。
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	if err := s.tokenRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}
	return nil
}

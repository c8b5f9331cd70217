// Package auth はベアラートークンの発行・検証・失効と、ログイン・ログアウトを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/shelf/internal/metrics"
	"github.com/hitoshi/shelf/internal/model"
	"github.com/hitoshi/shelf/internal/repository"
	"github.com/hitoshi/shelf/internal/user"
)

// Authenticator はメールアドレスとパスワードでユーザーを認証するインターフェース。
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

// LoginRecorder はログイン結果を記録するインターフェース。
type LoginRecorder interface {
	RecordLogin(result string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenMaxAge int // トークン有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users     Authenticator
	tokenRepo repository.TokenRepository
	recorder  LoginRecorder
	config    ServiceConfig
	now       func() time.Time
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	users Authenticator,
	tokenRepo repository.TokenRepository,
	recorder LoginRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		users:     users,
		tokenRepo: tokenRepo,
		recorder:  recorder,
		config:    config,
		now:       time.Now,
	}
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token string
	User  *model.User
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time
}

// Login は資格情報を検証し、新しいトークンを発行する。
// 資格情報の不一致は理由を区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	fields := make(map[string]string)
	if strings.TrimSpace(email) == "" {
		fields["email"] = model.ReasonRequired
	}
	if password == "" {
		fields["password"] = model.ReasonRequired
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			s.record(metrics.LoginFailure)
			slog.Warn("login failed", slog.String("reason", "invalid_credentials"))
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	raw, token, err := s.Issue(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.record(metrics.LoginSuccess)
	slog.Info("user logged in",
		slog.String("user_id", u.ID),
		slog.String("token_hash", hashPrefix(token.TokenHash)),
	)

	return &LoginResult{Token: raw, User: u, ExpiresAt: token.ExpiresAt}, nil
}

// Logout は提示されたトークンのみを失効させる。
func (s *Service) Logout(ctx context.Context, raw string) error {
	if err := s.Revoke(ctx, raw); err != nil {
		return err
	}
	slog.Info("user logged out", slog.String("token_hash", hashPrefix(HashToken(raw))))
	return nil
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordLogin(result)
	}
}

// Package user はユーザー登録・認証・プロフィール取得のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/shelf/internal/model"
	"github.com/hitoshi/shelf/internal/repository"
)

// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しないことを表す。
// どちらが誤っているかは区別しない。
var ErrInvalidCredentials = errors.New("user: invalid credentials")

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 6

// RegisterInput はユーザー登録の入力値。
// PasswordConfirmationはクライアントが送信した場合のみ照合する。
type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation *string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	hasher   *PasswordHasher
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, hasher *PasswordHasher) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
	}
}

// NormalizeEmail はメールアドレスを比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register はユーザーを登録する。
// 入力不備はフィールド単位のバリデーションエラー、メールアドレス重複は重複エラーを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)

	fields := make(map[string]string)
	if name == "" {
		fields["name"] = model.ReasonRequired
	}
	switch {
	case email == "":
		fields["email"] = model.ReasonRequired
	case !validEmail(email):
		fields["email"] = model.ReasonInvalid
	}
	switch {
	case in.Password == "":
		fields["password"] = model.ReasonRequired
	case len([]rune(in.Password)) < minPasswordLength:
		fields["password"] = model.ReasonTooShort
	case len(in.Password) > maxPasswordBytes:
		fields["password"] = model.ReasonInvalid
	}
	if in.PasswordConfirmation != nil && *in.PasswordConfirmation != in.Password {
		fields["password_confirmation"] = model.ReasonMismatch
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	u := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, u); err != nil {
		// 同時登録で一意制約に違反した場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", u.ID))
	return u, nil
}

// Authenticate はメールアドレスとパスワードを照合し、一致したユーザーを返す。
// 失敗理由にかかわらずErrInvalidCredentialsを返す。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		s.hasher.CompareDummy(password)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Profile は指定ユーザーの情報を返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// validEmail は表示名を含まない単一のアドレスかどうかを判定する。
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(addr.Address, "@")
}

// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/shelf/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("repository: duplicate email")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
}

// TokenRepository はベアラートークンの永続化インターフェース。
// トークンは平文ではなくハッシュ値で保存・検索する。
type TokenRepository interface {
	// Create はトークンを保存する。
	Create(ctx context.Context, token *model.Token) error

	// FindValidByHash は有効期限内のトークンをハッシュ値で取得する。
	// 存在しない場合と期限切れの場合はどちらもnilを返す。
	FindValidByHash(ctx context.Context, tokenHash string) (*model.Token, error)

	// DeleteByHash はトークンを削除する。存在しない場合もエラーにしない。
	DeleteByHash(ctx context.Context, tokenHash string) error

	// DeleteByUserID は指定ユーザーの全トークンを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ExpiredTokenPurger は期限切れトークンの一括削除インターフェース。
// TTLで自動失効するストア（Redis）では不要なためTokenRepositoryとは分離する。
type ExpiredTokenPurger interface {
	// DeleteExpired はbefore以前に期限切れとなったトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// ListByUserID はユーザーの商品一覧を作成日時・ID昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Product, error)

	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	// 所有者の検証は呼び出し側で行う。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// Create は商品を作成する。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品の全カラムを指定値で上書きする。
	// 所有者（user_id）が一致しない場合は更新せずfalseを返す。
	Update(ctx context.Context, product *model.Product) (bool, error)

	// Delete は所有者が一致する商品を削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)
}

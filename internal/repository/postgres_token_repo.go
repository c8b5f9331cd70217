package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/shelf/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したトークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Create はトークンを作成する。
func (r *PostgresTokenRepo) Create(ctx context.Context, token *model.Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// FindValidByHash は有効期限内のトークンを取得する。
// 存在確認と期限確認を1つのクエリで行い、未登録と期限切れを区別しない。
func (r *PostgresTokenRepo) FindValidByHash(ctx context.Context, tokenHash string) (*model.Token, error) {
	token := &model.Token{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at
		 FROM tokens
		 WHERE token_hash = $1 AND expires_at > now()`,
		tokenHash,
	).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	return token, nil
}

// DeleteByHash は指定ハッシュのトークンを削除する。
// 削除対象がなくてもエラーにしない（冪等）。
func (r *PostgresTokenRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE token_hash = $1`,
		tokenHash,
	)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全トークンを削除する。
func (r *PostgresTokenRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}
	return nil
}

// DeleteExpired はbefore以前に期限切れとなったトークンを削除する。
func (r *PostgresTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE expires_at <= $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var (
	_ TokenRepository    = (*PostgresTokenRepo)(nil)
	_ ExpiredTokenPurger = (*PostgresTokenRepo)(nil)
)

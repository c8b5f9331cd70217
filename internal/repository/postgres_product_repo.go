package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shelf/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productColumns = `id, user_id, title, description, cost, banner_image, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProduct は1行分の商品を読み取る。
func scanProduct(s rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var description, bannerImage sql.NullString
	if err := s.Scan(
		&p.ID, &p.UserID, &p.Title, &description, &p.Cost, &bannerImage, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		p.Description = &description.String
	}
	if bannerImage.Valid {
		p.BannerImage = &bannerImage.String
	}
	return p, nil
}

// ListByUserID はユーザーの商品一覧を作成日時・ID昇順で返す。
func (r *PostgresProductRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return p, nil
}

// Create は商品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, p *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.Title, nullString(p.Description), p.Cost, nullString(p.BannerImage), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update は商品を上書き更新する。
// WHERE句で所有者を条件に含め、他ユーザーの商品は更新しない。
func (r *PostgresProductRepo) Update(ctx context.Context, p *model.Product) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products
		 SET title = $1, description = $2, cost = $3, banner_image = $4, updated_at = $5
		 WHERE id = $6 AND user_id = $7`,
		p.Title, nullString(p.Description), p.Cost, nullString(p.BannerImage), p.UpdatedAt, p.ID, p.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update product: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete は所有者が一致する商品を削除する。
func (r *PostgresProductRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// nullString は*stringをsql.NullStringに変換する。
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)

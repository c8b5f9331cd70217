// Package product は商品の所有者スコープ付きCRUDのドメインロジックを提供する。
package product

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/shelf/internal/model"
	"github.com/hitoshi/shelf/internal/repository"
	"github.com/hitoshi/shelf/internal/security"
	"github.com/hitoshi/shelf/internal/storage"
	"github.com/shopspring/decimal"
)

// imageNamespace は商品画像のストレージキーの接頭辞。
const imageNamespace = "products/"

// ImageRecorder は画像の保存と後片付けの結果を記録するインターフェース。
type ImageRecorder interface {
	RecordImageStored()
	RecordImageCleanupFailure()
}

// CreateInput は商品作成の入力値。
// Cost未指定または空文字の場合は0とする。
type CreateInput struct {
	Title       string
	Description *string
	Cost        *string
	Image       *model.ImageUpload
}

// UpdateInput は商品の部分更新の入力値。nilのフィールドは変更しない。
type UpdateInput struct {
	Title       *string
	Description *string
	Cost        *string
	Image       *model.ImageUpload
}

// Config は商品サービスの設定。
type Config struct {
	MaxUploadBytes int64
}

// Service は商品のサービス層。
// 取得・更新・削除はすべて所有者を検証し、他ユーザーの商品は存在しないものとして扱う。
type Service struct {
	repo      repository.ProductRepository
	store     storage.Storage
	sanitizer security.TextSanitizer
	recorder  ImageRecorder
	config    Config
	now       func() time.Time
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	repo repository.ProductRepository,
	store storage.Storage,
	sanitizer security.TextSanitizer,
	recorder ImageRecorder,
	config Config,
) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		sanitizer: sanitizer,
		recorder:  recorder,
		config:    config,
		now:       time.Now,
	}
}

// List はユーザーが所有する商品を作成日時・ID昇順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Product, error) {
	products, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Create は商品を作成する。所有者は常にuserIDとなる。
// 画像は先に保存し、DBへの保存に失敗した場合は保存済み画像を削除する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Product, error) {
	fields := make(map[string]string)

	title, reason := s.normalizeTitle(in.Title)
	if reason != "" {
		fields["title"] = reason
	}

	var desc *string
	if in.Description != nil {
		d, reason := s.normalizeDescription(*in.Description)
		if reason != "" {
			fields["description"] = reason
		} else if d != "" {
			desc = &d
		}
	}

	cost := decimal.Zero
	if present(in.Cost) {
		c, reason := parseCost(*in.Cost)
		if reason != "" {
			fields["cost"] = reason
		}
		cost = c
	}

	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	now := s.now()
	p := &model.Product{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: desc,
		Cost:        cost,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if in.Image != nil {
		key, err := s.storeImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		p.BannerImage = &key
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if p.BannerImage != nil {
			s.cleanupImage(ctx, *p.BannerImage, "create_failed")
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	slog.Info("product created",
		slog.String("product_id", p.ID),
		slog.String("user_id", userID),
	)
	return p, nil
}

// Get はユーザーが所有する商品を返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Product, error) {
	return s.findOwned(ctx, userID, id)
}

// Update は送信されたフィールドのみを更新する。
// 新しい画像は保存に成功した後で旧画像を削除する。旧画像の削除失敗は更新を妨げない。
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.Product, error) {
	p, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	patch, err := s.buildPatch(in)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return p, nil
	}

	patch.ApplyTo(p)

	var newKey, oldKey string
	if patch.Image != nil {
		newKey, err = s.storeImage(ctx, patch.Image)
		if err != nil {
			return nil, err
		}
		if p.BannerImage != nil {
			oldKey = *p.BannerImage
		}
		p.BannerImage = &newKey
	}

	p.UpdatedAt = s.now()

	updated, err := s.repo.Update(ctx, p)
	if err != nil || !updated {
		if newKey != "" {
			s.cleanupImage(ctx, newKey, "update_failed")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
		// 取得後に削除された場合
		return nil, model.NewProductNotFoundError()
	}

	// 旧画像は新しい参照の永続化後に削除し、失敗時に参照切れの画像が残らないようにする
	if oldKey != "" {
		s.cleanupImage(ctx, oldKey, "replaced")
	}

	slog.Info("product updated",
		slog.String("product_id", p.ID),
		slog.String("user_id", userID),
	)
	return p, nil
}

// Delete は商品を削除し、画像があれば削除を試みる。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	p, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, p.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if !deleted {
		return model.NewProductNotFoundError()
	}

	if p.BannerImage != nil {
		s.cleanupImage(ctx, *p.BannerImage, "deleted")
	}

	slog.Info("product deleted",
		slog.String("product_id", p.ID),
		slog.String("user_id", userID),
	)
	return nil
}

// ImageURL はバナー画像のストレージキーを公開URLに変換する。
func (s *Service) ImageURL(p *model.Product) *string {
	if p.BannerImage == nil {
		return nil
	}
	u := s.store.URL(*p.BannerImage)
	return &u
}

// findOwned は商品を取得し所有者を検証する。
// 不正なID・未登録・他ユーザー所有はすべてPRODUCT_NOT_FOUNDとなる。
func (s *Service) findOwned(ctx context.Context, userID, id string) (*model.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewProductNotFoundError()
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if p == nil {
		return nil, model.NewProductNotFoundError()
	}
	if p.UserID != userID {
		slog.Warn("product ownership mismatch",
			slog.String("product_id", id),
			slog.String("user_id", userID),
			slog.String("owner_id", p.UserID),
		)
		return nil, model.NewProductNotFoundError()
	}
	return p, nil
}

// buildPatch は入力値を検証し、部分更新内容に変換する。
func (s *Service) buildPatch(in UpdateInput) (model.ProductPatch, error) {
	var patch model.ProductPatch
	fields := make(map[string]string)

	if in.Title != nil {
		title, reason := s.normalizeTitle(*in.Title)
		if reason != "" {
			fields["title"] = reason
		} else {
			patch.Title = &title
		}
	}

	if in.Description != nil {
		desc, reason := s.normalizeDescription(*in.Description)
		if reason != "" {
			fields["description"] = reason
		} else {
			patch.Description = &desc
		}
	}

	if present(in.Cost) {
		cost, reason := parseCost(*in.Cost)
		if reason != "" {
			fields["cost"] = reason
		} else {
			patch.Cost = &cost
		}
	}

	if len(fields) > 0 {
		return model.ProductPatch{}, model.NewValidationError(fields)
	}

	patch.Image = in.Image
	return patch, nil
}

// storeImage は画像を検証して保存し、ストレージキーを返す。
func (s *Service) storeImage(ctx context.Context, upload *model.ImageUpload) (string, error) {
	data, contentType, ext, err := readImage(upload, s.config.MaxUploadBytes)
	if err != nil {
		return "", err
	}

	key := imageNamespace + uuid.New().String() + ext
	if err := s.store.Save(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		slog.Error("failed to store image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", model.NewStorageFailureError()
	}

	if s.recorder != nil {
		s.recorder.RecordImageStored()
	}
	return key, nil
}

// cleanupImage は画像の削除を試みる。失敗はログとメトリクスに記録するのみ。
// リクエストのキャンセル後も削除を続けるため、キャンセルを引き継がないコンテキストを使う。
func (s *Service) cleanupImage(ctx context.Context, key, reason string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("failed to delete image",
			slog.String("key", key),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		if s.recorder != nil {
			s.recorder.RecordImageCleanupFailure()
		}
	}
}

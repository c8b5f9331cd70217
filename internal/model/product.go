package model

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Product はユーザーが所有する商品を表す。
// 所有者は常に1人で、所有者の認証済みセッションからのみ参照・更新できる。
type Product struct {
	ID          string
	UserID      string
	Title       string
	Description *string
	Cost        decimal.Decimal
	BannerImage *string // ストレージキー（URLではない）
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductPatch は商品の部分更新内容を表す。
// nilのフィールドは既存の値を保持する。
type ProductPatch struct {
	Title       *string
	Description *string
	Cost        *decimal.Decimal
	Image       *ImageUpload
}

// Empty は更新対象のフィールドが1つもないかどうかを返す。
func (p ProductPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Cost == nil && p.Image == nil
}

// ImageUpload はアップロードされたバナー画像を表す。
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ApplyTo はnilでないフィールドを商品に反映する。
// 画像はストレージへの保存後に呼び出し側で反映する。
func (p ProductPatch) ApplyTo(prod *Product) {
	if p.Title != nil {
		prod.Title = *p.Title
	}
	if p.Description != nil {
		if *p.Description == "" {
			prod.Description = nil
		} else {
			d := *p.Description
			prod.Description = &d
		}
	}
	if p.Cost != nil {
		prod.Cost = *p.Cost
	}
}

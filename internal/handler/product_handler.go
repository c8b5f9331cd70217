package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shelf/internal/model"
	"github.com/hitoshi/shelf/internal/product"
)

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
// すべての操作は認証済みユーザーの所有する商品に限定される。
type ProductServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Product, error)
	Create(ctx context.Context, userID string, in product.CreateInput) (*model.Product, error)
	Get(ctx context.Context, userID, id string) (*model.Product, error)
	Update(ctx context.Context, userID, id string, in product.UpdateInput) (*model.Product, error)
	Delete(ctx context.Context, userID, id string) error
	ImageURL(p *model.Product) *string
}

// ProductHandler は商品CRUDのHTTPハンドラー。
type ProductHandler struct {
	service        ProductServiceInterface
	maxUploadBytes int64
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface, maxUploadBytes int64) *ProductHandler {
	return &ProductHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// List は自分の商品一覧を返す。
// GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	products, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	items := make([]productResponse, len(products))
	for i, p := range products {
		items[i] = h.toProductResponse(p)
	}

	writeSuccess(w, http.StatusOK, "Product List", map[string]any{
		"products": items,
	})
}

// Create は商品を作成する。multipartの場合はbanner_imageファイルを受け付ける。
// POST /api/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	fields, err := readFields(w, r, h.maxUploadBytes)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	defer fields.Close()

	p, err := h.service.Create(r.Context(), userID, product.CreateInput{
		Title:       fields.value("title"),
		Description: fields.get("description"),
		Cost:        fields.get("cost"),
		Image:       fields.image,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Product Created", map[string]any{
		"product": h.toProductResponse(p),
	})
}

// Get は商品詳細を返す。
// GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Product Info", map[string]any{
		"product": h.toProductResponse(p),
	})
}

// Update は送信されたフィールドのみを更新する。
// PUT/PATCH /api/products/{id}（POST + _method=PUT も可）
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	fields, err := readFields(w, r, h.maxUploadBytes)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	defer fields.Close()

	p, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), product.UpdateInput{
		Title:       fields.get("title"),
		Description: fields.get("description"),
		Cost:        fields.get("cost"),
		Image:       fields.image,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Product Updated", map[string]any{
		"product": h.toProductResponse(p),
	})
}

// Delete は商品を削除する。
// DELETE /api/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Product Deleted", nil)
}

func (h *ProductHandler) toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		Title:       p.Title,
		Description: p.Description,
		Cost:        json.Number(p.Cost.StringFixed(2)),
		BannerImage: h.service.ImageURL(p),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

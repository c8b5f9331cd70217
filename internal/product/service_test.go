package product

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/shelf/internal/model"
	"github.com/hitoshi/shelf/internal/repository"
	"github.com/hitoshi/shelf/internal/security"
	"github.com/hitoshi/shelf/internal/storage"
	"github.com/shopspring/decimal"
)

// --- モック ---

// memProductRepo はインメモリの商品リポジトリ。
type memProductRepo struct {
	mu        sync.Mutex
	products  map[string]*model.Product
	createErr error
	updateErr error
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[string]*model.Product)}
}

func clone(p *model.Product) *model.Product {
	c := *p
	if p.Description != nil {
		d := *p.Description
		c.Description = &d
	}
	if p.BannerImage != nil {
		b := *p.BannerImage
		c.BannerImage = &b
	}
	return &c
}

func (m *memProductRepo) ListByUserID(_ context.Context, userID string) ([]*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Product, 0)
	for _, p := range m.products {
		if p.UserID == userID {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memProductRepo) FindByID(_ context.Context, id string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

func (m *memProductRepo) Create(_ context.Context, p *model.Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = clone(p)
	return nil
}

func (m *memProductRepo) Update(_ context.Context, p *model.Product) (bool, error) {
	if m.updateErr != nil {
		return false, m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.products[p.ID]
	if !ok || cur.UserID != p.UserID {
		return false, nil
	}
	m.products[p.ID] = clone(p)
	return true, nil
}

func (m *memProductRepo) Delete(_ context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.products[id]
	if !ok || cur.UserID != userID {
		return false, nil
	}
	delete(m.products, id)
	return true, nil
}

// fakeStorage は保存内容をメモリに保持するストレージ。
type fakeStorage struct {
	mu        sync.Mutex
	files     map[string]string
	saveErr   error
	deleteErr error
	deleted   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string]string)}
}

func (f *fakeStorage) Save(_ context.Context, key, _ string, body io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = string(b)
	return nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.files, key)
	return nil
}

func (f *fakeStorage) URL(key string) string {
	return "http://localhost:8080/storage/" + key
}

type mockRecorder struct {
	stored          int
	cleanupFailures int
}

func (m *mockRecorder) RecordImageStored()         { m.stored++ }
func (m *mockRecorder) RecordImageCleanupFailure() { m.cleanupFailures++ }

var (
	_ repository.ProductRepository = (*memProductRepo)(nil)
	_ storage.Storage              = (*fakeStorage)(nil)
	_ ImageRecorder                = (*mockRecorder)(nil)
)

// --- ヘルパー ---

const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

func pngUpload() *model.ImageUpload {
	return &model.ImageUpload{
		Filename:    "banner.png",
		ContentType: "image/png",
		Size:        int64(len(pngHeader)),
		Body:        strings.NewReader(pngHeader),
	}
}

type testEnv struct {
	svc      *Service
	repo     *memProductRepo
	store    *fakeStorage
	recorder *mockRecorder
}

func newTestEnv() *testEnv {
	repo := newMemProductRepo()
	store := newFakeStorage()
	rec := &mockRecorder{}
	svc := NewService(repo, store, security.NewTextSanitizer(), rec, Config{MaxUploadBytes: 1024})

	// 作成順を決定的にするため時刻を1秒ずつ進める
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return &testEnv{svc: svc, repo: repo, store: store, recorder: rec}
}

func strPtr(s string) *string { return &s }

func assertAPIErrorCode(t *testing.T, err error, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %T: %v", code, err, err)
	}
	if apiErr.Code != code {
		t.Fatalf("code = %q, want %q", apiErr.Code, code)
	}
	return apiErr
}

// --- テスト ---

// TestCreate_ThenListAndDelete は作成・一覧・削除・取得の一連の流れを検証する。
func TestCreate_ThenListAndDelete(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	p, err := env.svc.Create(ctx, "user-a", CreateInput{Title: "Widget", Cost: strPtr("9.99")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !p.Cost.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("cost = %s, want 9.99", p.Cost)
	}

	list, err := env.svc.List(ctx, "user-a")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("list = %+v, want the created product", list)
	}

	if err := env.svc.Delete(ctx, "user-a", p.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	_, err = env.svc.Get(ctx, "user-a", p.ID)
	assertAPIErrorCode(t, err, model.ErrCodeProductNotFound)
}

// TestCreate_DefaultsAndOwner はコストの既定値と所有者の強制を検証する。
func TestCreate_DefaultsAndOwner(t *testing.T) {
	env := newTestEnv()

	p, err := env.svc.Create(context.Background(), "user-a", CreateInput{Title: "  Widget  ", Cost: strPtr("")})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !p.Cost.IsZero() {
		t.Errorf("cost = %s, want 0", p.Cost)
	}
	if p.UserID != "user-a" {
		t.Errorf("owner = %q, want user-a", p.UserID)
	}
	if p.Title != "Widget" {
		t.Errorf("title = %q, want trimmed", p.Title)
	}
	if p.Description != nil {
		t.Errorf("description = %q, want nil", *p.Description)
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		t.Errorf("id %q is not a uuid", p.ID)
	}
}

func TestCreate_RejectsMarkup(t *testing.T) {
	tests := []struct {
		name  string
		input CreateInput
		field string
	}{
		{"tag in title", CreateInput{Title: "<b>Widget</b>"}, "title"},
		{"unterminated tag in title", CreateInput{Title: "a<b"}, "title"},
		{"script in description", CreateInput{Title: "W", Description: strPtr(`<script>alert(1)</script>Nice`)}, "description"},
		{"tag-like description", CreateInput{Title: "W", Description: strPtr("x<y and y>z")}, "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			_, err := env.svc.Create(context.Background(), "user-a", tt.input)
			apiErr := assertAPIErrorCode(t, err, model.ErrCodeValidation)
			if apiErr.Fields[tt.field] != model.ReasonInvalid {
				t.Errorf("fields = %v, want %s: invalid", apiErr.Fields, tt.field)
			}
			if len(env.repo.products) != 0 {
				t.Error("no product should be created")
			}
		})
	}
}

// TestCreateThenUnchangedUpdate_KeepsText は保存したテキストをそのまま再送しても値が変わらないことを検証する。
func TestCreateThenUnchangedUpdate_KeepsText(t *testing.T) {
	tests := []struct {
		title string
		desc  string
	}{
		{"&lt;b&gt;", "Tom &lt;b&gt; Jerry"},
		{"5 < 6", "Nice & shiny, 7 > 3"},
		{"Fish &amp; chips", "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			env := newTestEnv()
			ctx := context.Background()

			p, err := env.svc.Create(ctx, "user-a", CreateInput{Title: tt.title, Description: strPtr(tt.desc)})
			if err != nil {
				t.Fatalf("Create error: %v", err)
			}
			if p.Title != tt.title || p.Description == nil || *p.Description != tt.desc {
				t.Fatalf("stored (%q, %v), want (%q, %q)", p.Title, p.Description, tt.title, tt.desc)
			}

			// クライアントは編集時に全フィールドを再送する
			updated, err := env.svc.Update(ctx, "user-a", p.ID, UpdateInput{
				Title:       strPtr(p.Title),
				Description: strPtr(*p.Description),
				Cost:        strPtr(p.Cost.StringFixed(2)),
			})
			if err != nil {
				t.Fatalf("unchanged Update error: %v", err)
			}
			if updated.Title != tt.title || *updated.Description != tt.desc {
				t.Errorf("after update (%q, %q), want (%q, %q)", updated.Title, *updated.Description, tt.title, tt.desc)
			}
		})
	}
}

func TestUpdate_MarkupTitle_IsValidationError(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "W"})

	_, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{Title: strPtr("a<b")})
	apiErr := assertAPIErrorCode(t, err, model.ErrCodeValidation)
	if apiErr.Fields["title"] != model.ReasonInvalid {
		t.Errorf("fields = %v", apiErr.Fields)
	}

	stored, _ := env.repo.FindByID(ctx, orig.ID)
	if stored.Title != "W" {
		t.Errorf("title = %q, want unchanged", stored.Title)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		input  CreateInput
		field  string
		reason string
	}{
		{"empty title", CreateInput{Title: ""}, "title", model.ReasonRequired},
		{"markup-only title", CreateInput{Title: "<p></p>"}, "title", model.ReasonInvalid},
		{"blank title", CreateInput{Title: "   "}, "title", model.ReasonRequired},
		{"long title", CreateInput{Title: strings.Repeat("a", 256)}, "title", model.ReasonTooLong},
		{"non-numeric cost", CreateInput{Title: "W", Cost: strPtr("abc")}, "cost", model.ReasonInvalid},
		{"negative cost", CreateInput{Title: "W", Cost: strPtr("-1")}, "cost", model.ReasonNegative},
		{"three decimals", CreateInput{Title: "W", Cost: strPtr("1.005")}, "cost", model.ReasonInvalid},
		{"too large", CreateInput{Title: "W", Cost: strPtr("10000000000")}, "cost", model.ReasonInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			_, err := env.svc.Create(context.Background(), "user-a", tt.input)
			apiErr := assertAPIErrorCode(t, err, model.ErrCodeValidation)
			if apiErr.Fields[tt.field] != tt.reason {
				t.Errorf("fields = %v, want %s: %s", apiErr.Fields, tt.field, tt.reason)
			}
			if len(env.repo.products) != 0 {
				t.Error("no product should be created")
			}
		})
	}
}

func TestCreate_WithImage_StoresUnderNamespace(t *testing.T) {
	env := newTestEnv()

	p, err := env.svc.Create(context.Background(), "user-a", CreateInput{Title: "W", Image: pngUpload()})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if p.BannerImage == nil {
		t.Fatal("expected banner image key")
	}
	key := *p.BannerImage
	if !strings.HasPrefix(key, "products/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("key = %q, want products/<uuid>.png", key)
	}
	if env.store.files[key] != pngHeader {
		t.Error("image content not stored")
	}
	if env.recorder.stored != 1 {
		t.Errorf("stored = %d, want 1", env.recorder.stored)
	}

	url := env.svc.ImageURL(p)
	if url == nil || *url != "http://localhost:8080/storage/"+key {
		t.Errorf("ImageURL = %v", url)
	}
}

func TestCreate_InvalidImage(t *testing.T) {
	env := newTestEnv()

	upload := &model.ImageUpload{Filename: "x.png", ContentType: "image/png", Body: strings.NewReader("plain text, not an image")}
	_, err := env.svc.Create(context.Background(), "user-a", CreateInput{Title: "W", Image: upload})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidImage)
	if len(env.store.files) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestCreate_ImageTooLarge(t *testing.T) {
	env := newTestEnv()

	big := pngHeader + strings.Repeat("x", 2048)
	upload := &model.ImageUpload{Filename: "x.png", Body: strings.NewReader(big)}
	_, err := env.svc.Create(context.Background(), "user-a", CreateInput{Title: "W", Image: upload})
	assertAPIErrorCode(t, err, model.ErrCodePayloadTooLarge)
}

// TestCreate_StorageFailure_FailsRequest は画像保存失敗時に作成が失敗することを検証する。
func TestCreate_StorageFailure_FailsRequest(t *testing.T) {
	env := newTestEnv()
	env.store.saveErr = errors.New("disk full")

	_, err := env.svc.Create(context.Background(), "user-a", CreateInput{Title: "W", Image: pngUpload()})
	assertAPIErrorCode(t, err, model.ErrCodeStorageFailure)
	if len(env.repo.products) != 0 {
		t.Error("no product should be created when the image cannot be stored")
	}
}

// TestCreate_DBFailure_RemovesStoredImage はDB保存失敗時に保存済み画像が削除されることを検証する。
func TestCreate_DBFailure_RemovesStoredImage(t *testing.T) {
	env := newTestEnv()
	env.repo.createErr = errors.New("insert failed")

	_, err := env.svc.Create(context.Background(), "user-a", CreateInput{Title: "W", Image: pngUpload()})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(env.store.files) != 0 {
		t.Errorf("stored image should be cleaned up, files = %v", env.store.files)
	}
}

// TestList_ScopedToOwner は他ユーザーの商品が一覧に含まれないことを検証する。
func TestList_ScopedToOwner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a1, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "A1"})
	_, _ = env.svc.Create(ctx, "user-b", CreateInput{Title: "B1"})
	a2, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "A2"})

	list, err := env.svc.List(ctx, "user-a")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != a1.ID || list[1].ID != a2.ID {
		t.Errorf("order = [%s %s], want [%s %s]", list[0].ID, list[1].ID, a1.ID, a2.ID)
	}
	for _, p := range list {
		if p.UserID != "user-a" {
			t.Errorf("foreign product in list: %+v", p)
		}
	}
}

// TestForeignProduct_SurfacesAsNotFound は他ユーザーの商品への操作がすべてNotFoundとなることを検証する。
func TestForeignProduct_SurfacesAsNotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	p, _ := env.svc.Create(ctx, "user-b", CreateInput{Title: "Secret", Description: strPtr("b's data")})

	got, err := env.svc.Get(ctx, "user-a", p.ID)
	assertAPIErrorCode(t, err, model.ErrCodeProductNotFound)
	if got != nil {
		t.Error("foreign product data must not be returned")
	}

	_, err = env.svc.Update(ctx, "user-a", p.ID, UpdateInput{Title: strPtr("Hijacked")})
	assertAPIErrorCode(t, err, model.ErrCodeProductNotFound)

	err = env.svc.Delete(ctx, "user-a", p.ID)
	assertAPIErrorCode(t, err, model.ErrCodeProductNotFound)

	stored, _ := env.repo.FindByID(ctx, p.ID)
	if stored == nil || stored.Title != "Secret" {
		t.Errorf("foreign product must be untouched, got %+v", stored)
	}
}

func TestGet_InvalidUUID_IsNotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Get(context.Background(), "user-a", "1; DROP TABLE products")
	assertAPIErrorCode(t, err, model.ErrCodeProductNotFound)
}

// TestUpdate_Partial_PreservesUnspecifiedFields は未指定フィールドが変わらないことを検証する。
func TestUpdate_Partial_PreservesUnspecifiedFields(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{
		Title:       "Widget",
		Description: strPtr("Original description"),
		Cost:        strPtr("9.99"),
		Image:       pngUpload(),
	})

	updated, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{Cost: strPtr("12.50")})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if updated.Title != orig.Title {
		t.Errorf("title changed: %q -> %q", orig.Title, updated.Title)
	}
	if *updated.Description != *orig.Description {
		t.Errorf("description changed: %q -> %q", *orig.Description, *updated.Description)
	}
	if *updated.BannerImage != *orig.BannerImage {
		t.Errorf("banner changed: %q -> %q", *orig.BannerImage, *updated.BannerImage)
	}
	if !updated.CreatedAt.Equal(orig.CreatedAt) || updated.UserID != orig.UserID {
		t.Error("created_at or owner changed")
	}
	if !updated.Cost.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("cost = %s, want 12.50", updated.Cost)
	}
	if !updated.UpdatedAt.After(orig.UpdatedAt) {
		t.Error("updated_at should advance")
	}
}

func TestUpdate_EmptyPatch_ReturnsUnchanged(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "Widget"})

	got, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if !got.UpdatedAt.Equal(orig.UpdatedAt) {
		t.Error("empty patch must not touch updated_at")
	}
}

func TestUpdate_EmptyTitle_IsValidationError(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "Widget"})

	_, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{Title: strPtr("   ")})
	apiErr := assertAPIErrorCode(t, err, model.ErrCodeValidation)
	if apiErr.Fields["title"] != model.ReasonRequired {
		t.Errorf("fields = %v", apiErr.Fields)
	}
}

func TestUpdate_EmptyDescription_ClearsIt(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "Widget", Description: strPtr("old")})

	got, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{Description: strPtr("")})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.Description != nil {
		t.Errorf("description = %q, want nil", *got.Description)
	}
}

// TestUpdate_NewImage_ReplacesAndDeletesOld は新画像保存後に旧画像が削除されることを検証する。
func TestUpdate_NewImage_ReplacesAndDeletesOld(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "W", Image: pngUpload()})
	oldKey := *orig.BannerImage

	got, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{Image: pngUpload()})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if *got.BannerImage == oldKey {
		t.Fatal("banner key should change")
	}
	if _, ok := env.store.files[oldKey]; ok {
		t.Error("old image should be deleted")
	}
	if _, ok := env.store.files[*got.BannerImage]; !ok {
		t.Error("new image should be stored")
	}
}

// TestUpdate_OldImageDeleteFailure_DoesNotFailUpdate は旧画像削除失敗が更新を妨げないことを検証する。
func TestUpdate_OldImageDeleteFailure_DoesNotFailUpdate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "W", Image: pngUpload()})
	env.store.deleteErr = errors.New("permission denied")

	got, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{Image: pngUpload()})
	if err != nil {
		t.Fatalf("Update should succeed despite cleanup failure: %v", err)
	}
	if *got.BannerImage == *orig.BannerImage {
		t.Error("banner key should change")
	}
	if env.recorder.cleanupFailures != 1 {
		t.Errorf("cleanup failures = %d, want 1", env.recorder.cleanupFailures)
	}

	stored, _ := env.repo.FindByID(ctx, orig.ID)
	if *stored.BannerImage != *got.BannerImage {
		t.Error("new banner key should be persisted")
	}
}

// TestUpdate_NewImageStoreFailure_KeepsRecord は新画像の保存失敗時に何も変更しないことを検証する。
func TestUpdate_NewImageStoreFailure_KeepsRecord(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "W", Image: pngUpload()})
	env.store.saveErr = errors.New("disk full")

	_, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{Title: strPtr("New"), Image: pngUpload()})
	assertAPIErrorCode(t, err, model.ErrCodeStorageFailure)

	stored, _ := env.repo.FindByID(ctx, orig.ID)
	if stored.Title != "W" || *stored.BannerImage != *orig.BannerImage {
		t.Errorf("record must be unchanged, got %+v", stored)
	}
	if len(env.store.deleted) != 0 {
		t.Errorf("old image must not be deleted, deleted = %v", env.store.deleted)
	}
}

func TestUpdate_DBFailure_RemovesNewImage(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "W"})
	env.repo.updateErr = errors.New("update failed")

	_, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{Image: pngUpload()})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(env.store.files) != 0 {
		t.Errorf("new image should be cleaned up, files = %v", env.store.files)
	}
}

// TestDelete_ImageDeleteFailure_DoesNotFailDelete は画像削除失敗が削除を妨げないことを検証する。
func TestDelete_ImageDeleteFailure_DoesNotFailDelete(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	p, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "W", Image: pngUpload()})
	env.store.deleteErr = errors.New("permission denied")

	if err := env.svc.Delete(ctx, "user-a", p.ID); err != nil {
		t.Fatalf("Delete should succeed: %v", err)
	}
	if got, _ := env.repo.FindByID(ctx, p.ID); got != nil {
		t.Error("record should be deleted")
	}
	if env.recorder.cleanupFailures != 1 {
		t.Errorf("cleanup failures = %d, want 1", env.recorder.cleanupFailures)
	}
}

func TestDelete_RemovesImage(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	p, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "W", Image: pngUpload()})

	if err := env.svc.Delete(ctx, "user-a", p.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(env.store.files) != 0 {
		t.Errorf("image should be deleted, files = %v", env.store.files)
	}
}

func TestImageURL_NoBanner_ReturnsNil(t *testing.T) {
	env := newTestEnv()
	if got := env.svc.ImageURL(&model.Product{}); got != nil {
		t.Errorf("ImageURL = %q, want nil", *got)
	}
}

// TestUpdate_DBFailure_KeepsOldImage は永続化失敗時に旧画像が残ることを検証する。
func TestUpdate_DBFailure_KeepsOldImage(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	orig, _ := env.svc.Create(ctx, "user-a", CreateInput{Title: "W", Image: pngUpload()})
	env.repo.updateErr = errors.New("update failed")

	if _, err := env.svc.Update(ctx, "user-a", orig.ID, UpdateInput{Image: pngUpload()}); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := env.store.files[*orig.BannerImage]; !ok {
		t.Errorf("old image must be kept, files = %v", env.store.files)
	}
	if len(env.store.files) != 1 {
		t.Errorf("only the old image should remain, files = %v", env.store.files)
	}
}

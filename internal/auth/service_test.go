package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/shelf/internal/metrics"
	"github.com/hitoshi/shelf/internal/model"
	"github.com/hitoshi/shelf/internal/repository"
	"github.com/hitoshi/shelf/internal/user"
)

// --- モック定義 ---

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, email, password string) (*model.User, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, email, password)
	}
	return nil, user.ErrInvalidCredentials
}

// memTokenRepo はハッシュをキーとするインメモリのトークンリポジトリ。
type memTokenRepo struct {
	mu        sync.Mutex
	tokens    map[string]*model.Token
	createErr error
	findErr   error
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]*model.Token)}
}

func (m *memTokenRepo) Create(_ context.Context, token *model.Token) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *memTokenRepo) FindValidByHash(_ context.Context, tokenHash string) (*model.Token, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenHash]
	if !ok || t.Expired(time.Now()) {
		return nil, nil
	}
	return t, nil
}

func (m *memTokenRepo) DeleteByHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, tokenHash)
	return nil
}

func (m *memTokenRepo) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, h)
		}
	}
	return nil
}

type mockRecorder struct {
	results []string
}

func (m *mockRecorder) RecordLogin(result string) {
	m.results = append(m.results, result)
}

// --- compile-time interface checks ---
var _ repository.TokenRepository = (*memTokenRepo)(nil)
var _ Authenticator = (*mockAuthenticator)(nil)
var _ LoginRecorder = (*metrics.Collector)(nil)

func newTestService(users Authenticator, repo repository.TokenRepository, rec LoginRecorder) *Service {
	return NewService(users, repo, rec, ServiceConfig{TokenMaxAge: 3600})
}

// --- テスト ---

// TestIssue_ThenValidate_ReturnsUser は発行したトークンが発行ユーザーに解決されることを検証する。
func TestIssue_ThenValidate_ReturnsUser(t *testing.T) {
	svc := newTestService(nil, newMemTokenRepo(), nil)
	ctx := context.Background()

	raw, token, err := svc.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if len(raw) != 64 {
		t.Errorf("token length = %d, want 64", len(raw))
	}
	if token.TokenHash == raw {
		t.Error("stored hash must not equal the raw token")
	}
	if token.TokenHash != HashToken(raw) {
		t.Error("stored hash must be sha256 of the raw token")
	}

	userID, err := svc.Validate(ctx, raw)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want %q", userID, "user-1")
	}
}

// TestIssue_SetsExpiryFromConfig は有効期限が設定値から算出されることを検証する。
func TestIssue_SetsExpiryFromConfig(t *testing.T) {
	svc := newTestService(nil, newMemTokenRepo(), nil)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, token, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if want := fixed.Add(time.Hour); !token.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", token.ExpiresAt, want)
	}
}

// TestIssue_TokensAreUnique は発行ごとに異なるトークンが生成されることを検証する。
func TestIssue_TokensAreUnique(t *testing.T) {
	svc := newTestService(nil, newMemTokenRepo(), nil)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		raw, _, err := svc.Issue(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("Issue error: %v", err)
		}
		if seen[raw] {
			t.Fatalf("duplicate token issued: %s", raw)
		}
		seen[raw] = true
	}
}

// TestRevoke_ThenValidate_Fails は失効後のトークンが常に拒否されることを検証する。
func TestRevoke_ThenValidate_Fails(t *testing.T) {
	svc := newTestService(nil, newMemTokenRepo(), nil)
	ctx := context.Background()

	raw, _, _ := svc.Issue(ctx, "user-1")
	if err := svc.Revoke(ctx, raw); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Validate(ctx, raw); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("Validate after revoke: got %v, want ErrUnauthenticated", err)
		}
	}

	// 失効済みトークンの再失効はエラーにならない
	if err := svc.Revoke(ctx, raw); err != nil {
		t.Errorf("second Revoke error: %v", err)
	}
	if err := svc.Revoke(ctx, "never-issued"); err != nil {
		t.Errorf("Revoke unknown token error: %v", err)
	}
}

// TestRevoke_OnlyAffectsPresentedToken は同一ユーザーの他のトークンが有効なままであることを検証する。
func TestRevoke_OnlyAffectsPresentedToken(t *testing.T) {
	svc := newTestService(nil, newMemTokenRepo(), nil)
	ctx := context.Background()

	first, _, _ := svc.Issue(ctx, "user-1")
	second, _, _ := svc.Issue(ctx, "user-1")

	if err := svc.Revoke(ctx, first); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if _, err := svc.Validate(ctx, second); err != nil {
		t.Errorf("second token should remain valid: %v", err)
	}
}

func TestRevokeAll_RevokesEveryTokenOfUser(t *testing.T) {
	svc := newTestService(nil, newMemTokenRepo(), nil)
	ctx := context.Background()

	a, _, _ := svc.Issue(ctx, "user-1")
	b, _, _ := svc.Issue(ctx, "user-1")
	other, _, _ := svc.Issue(ctx, "user-2")

	if err := svc.RevokeAll(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeAll error: %v", err)
	}
	for _, raw := range []string{a, b} {
		if _, err := svc.Validate(ctx, raw); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("expected revoked, got %v", err)
		}
	}
	if _, err := svc.Validate(ctx, other); err != nil {
		t.Errorf("other user's token should remain valid: %v", err)
	}
}

// TestValidate_ExpiredAndUnknown_SameError は期限切れと未登録を区別しないことを検証する。
func TestValidate_ExpiredAndUnknown_SameError(t *testing.T) {
	repo := newMemTokenRepo()
	svc := newTestService(nil, repo, nil)
	ctx := context.Background()

	raw, token, _ := svc.Issue(ctx, "user-1")
	token.ExpiresAt = time.Now().Add(-time.Second)

	_, errExpired := svc.Validate(ctx, raw)
	_, errUnknown := svc.Validate(ctx, "deadbeef")
	_, errEmpty := svc.Validate(ctx, "")

	for name, err := range map[string]error{"expired": errExpired, "unknown": errUnknown, "empty": errEmpty} {
		if !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: got %v, want ErrUnauthenticated", name, err)
		}
	}
}

// TestValidate_RepoError_IsNotUnauthenticated はストア障害を未認証と混同しないことを検証する。
func TestValidate_RepoError_IsNotUnauthenticated(t *testing.T) {
	repo := newMemTokenRepo()
	repo.findErr = errors.New("db down")
	svc := newTestService(nil, repo, nil)

	_, err := svc.Validate(context.Background(), "some-token")
	if err == nil || errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestLogin_Success_IssuesValidToken(t *testing.T) {
	users := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, email, password string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email}, nil
		},
	}
	rec := &mockRecorder{}
	svc := newTestService(users, newMemTokenRepo(), rec)

	result, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if result.User.ID != "user-1" {
		t.Errorf("user id = %q, want user-1", result.User.ID)
	}

	userID, err := svc.Validate(context.Background(), result.Token)
	if err != nil || userID != "user-1" {
		t.Errorf("Validate = (%q, %v), want (user-1, nil)", userID, err)
	}
	if len(rec.results) != 1 || rec.results[0] != metrics.LoginSuccess {
		t.Errorf("recorded = %v, want [success]", rec.results)
	}
}

func TestLogin_InvalidCredentials_ReturnsAPIError(t *testing.T) {
	repo := newMemTokenRepo()
	rec := &mockRecorder{}
	svc := newTestService(&mockAuthenticator{}, repo, rec)

	_, err := svc.Login(context.Background(), "a@x.com", "wrong")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
	if apiErr.Message != "Invalid credentials" {
		t.Errorf("message = %q, want %q", apiErr.Message, "Invalid credentials")
	}
	if len(repo.tokens) != 0 {
		t.Error("no token should be issued on failed login")
	}
	if len(rec.results) != 1 || rec.results[0] != metrics.LoginFailure {
		t.Errorf("recorded = %v, want [failure]", rec.results)
	}
}

func TestLogin_MissingFields_ReturnsValidationError(t *testing.T) {
	svc := newTestService(&mockAuthenticator{}, newMemTokenRepo(), nil)

	_, err := svc.Login(context.Background(), " ", "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if apiErr.Fields["email"] != model.ReasonRequired || apiErr.Fields["password"] != model.ReasonRequired {
		t.Errorf("fields = %v", apiErr.Fields)
	}
}

func TestLogin_TokenStoreFailure_ReturnsError(t *testing.T) {
	users := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, email, password string) (*model.User, error) {
			return &model.User{ID: "user-1"}, nil
		},
	}
	repo := newMemTokenRepo()
	repo.createErr = errors.New("insert failed")
	svc := newTestService(users, repo, nil)

	_, err := svc.Login(context.Background(), "a@x.com", "secret1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("store failure should not be reported as %s", apiErr.Code)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	svc := newTestService(nil, newMemTokenRepo(), nil)
	ctx := context.Background()

	raw, _, _ := svc.Issue(ctx, "user-1")
	if err := svc.Logout(ctx, raw); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if _, err := svc.Validate(ctx, raw); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated after logout, got %v", err)
	}
}

func TestHashToken_IsDeterministicHex(t *testing.T) {
	a := HashToken("abc")
	if a != HashToken("abc") {
		t.Error("hash must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64", len(a))
	}
	if a == HashToken("abd") {
		t.Error("different inputs must hash differently")
	}
}

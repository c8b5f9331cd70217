package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/shelf/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisClient はRedisTokenRepoが使用するコマンドの部分集合。
// *redis.Clientがこのインターフェースを満たす。
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// redisToken はRedisに保存するトークンのJSON表現。
type redisToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisTokenRepo はRedisを使用したトークンリポジトリ。
// トークンは残り有効期間をTTLとして保存し、期限切れはRedisが自動的に削除する。
// ユーザー単位の一括失効のため、ユーザーごとにトークンハッシュの集合を保持する。
type RedisTokenRepo struct {
	client RedisClient
	prefix string
}

// NewRedisTokenRepo はRedisTokenRepoを生成する。
func NewRedisTokenRepo(client RedisClient) *RedisTokenRepo {
	return &RedisTokenRepo{
		client: client,
		prefix: "shelf:",
	}
}

func (r *RedisTokenRepo) tokenKey(tokenHash string) string {
	return r.prefix + "token:" + tokenHash
}

func (r *RedisTokenRepo) userKey(userID string) string {
	return r.prefix + "user_tokens:" + userID
}

// Create はトークンを保存する。有効期限が過去の場合はエラーを返す。
func (r *RedisTokenRepo) Create(ctx context.Context, token *model.Token) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("token: expires_at must be in the future")
	}

	data, err := json.Marshal(redisToken{
		ID:        token.ID,
		UserID:    token.UserID,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := r.client.Set(ctx, r.tokenKey(token.TokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	userKey := r.userKey(token.UserID)
	if err := r.client.SAdd(ctx, userKey, token.TokenHash).Err(); err != nil {
		return fmt.Errorf("failed to index token: %w", err)
	}
	// ユーザー集合は最新トークンの有効期限まで保持する
	if err := r.client.Expire(ctx, userKey, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token index ttl: %w", err)
	}

	return nil
}

// FindValidByHash は有効期限内のトークンを取得する。
// 存在しない場合と期限切れの場合はどちらもnilを返す。
func (r *RedisTokenRepo) FindValidByHash(ctx context.Context, tokenHash string) (*model.Token, error) {
	stored, err := r.get(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if stored == nil || !time.Now().Before(stored.ExpiresAt) {
		return nil, nil
	}
	return &model.Token{
		ID:        stored.ID,
		UserID:    stored.UserID,
		TokenHash: tokenHash,
		ExpiresAt: stored.ExpiresAt,
		CreatedAt: stored.CreatedAt,
	}, nil
}

// DeleteByHash はトークンを削除する。存在しない場合もエラーにしない。
func (r *RedisTokenRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	stored, err := r.get(ctx, tokenHash)
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.tokenKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if stored != nil {
		if err := r.client.SRem(ctx, r.userKey(stored.UserID), tokenHash).Err(); err != nil {
			return fmt.Errorf("failed to unindex token: %w", err)
		}
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全トークンを削除する。
func (r *RedisTokenRepo) DeleteByUserID(ctx context.Context, userID string) error {
	userKey := r.userKey(userID)
	hashes, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user tokens: %w", err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, r.tokenKey(h))
	}
	keys = append(keys, userKey)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}
	return nil
}

// get は保存済みトークンを読み込む。キーが存在しない場合はnilを返す。
func (r *RedisTokenRepo) get(ctx context.Context, tokenHash string) (*redisToken, error) {
	val, err := r.client.Get(ctx, r.tokenKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	var stored redisToken
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &stored, nil
}

// compile-time interface check
var (
	_ TokenRepository = (*RedisTokenRepo)(nil)
	_ RedisClient     = (*redis.Client)(nil)
)

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージバックエンド種別
const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	TokenMaxAge          int // トークン有効期間（秒）
	TokenCleanupInterval time.Duration
	BcryptCost           int

	// Redis（設定時はトークンをRedisに保存する）
	RedisAddr     string
	RedisPassword string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// Upload
	MaxUploadBytes int64

	// Storage
	StorageBackend   string
	StorageDir       string
	PublicStorageURL string

	// S3
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	// Server
	ServerPort        string
	WorkerMetricsPort string // workerモードの/metrics公開ポート
	BaseURL           string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = strings.TrimRight(os.Getenv("BASE_URL"), "/")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", StorageBackendLocal))
	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	if cfg.StorageBackend == StorageBackendS3 && cfg.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if cfg.StorageBackend != StorageBackendLocal && cfg.StorageBackend != StorageBackendS3 {
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND: %q", cfg.StorageBackend)
	}

	// Optional fields with defaults
	cfg.TokenMaxAge = getEnvInt("TOKEN_MAX_AGE", 604800)
	cfg.TokenCleanupInterval = getEnvDuration("TOKEN_CLEANUP_INTERVAL", time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", 5242880)
	cfg.StorageDir = getEnvString("STORAGE_DIR", "./storage/public")
	cfg.PublicStorageURL = strings.TrimRight(getEnvString("PUBLIC_STORAGE_URL", cfg.BaseURL+"/storage"), "/")
	cfg.S3Endpoint = strings.TrimRight(getEnvString("S3_ENDPOINT", ""), "/")
	cfg.S3Region = getEnvString("S3_REGION", "us-east-1")
	cfg.S3AccessKey = getEnvString("S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvString("S3_SECRET_KEY", "")
	cfg.S3PublicURL = strings.TrimRight(getEnvString("S3_PUBLIC_URL", defaultS3PublicURL(cfg)), "/")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "9091")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// defaultS3PublicURL はS3_PUBLIC_URL未設定時の公開URLを組み立てる。
// エンドポイント指定時（MinIO等）はパススタイル、それ以外はAWSの仮想ホストスタイルとする。
func defaultS3PublicURL(cfg *Config) string {
	if cfg.S3Bucket == "" {
		return ""
	}
	if cfg.S3Endpoint != "" {
		return cfg.S3Endpoint + "/" + cfg.S3Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

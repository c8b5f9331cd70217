package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// テストで差し替え可能なAWS SDKの生成関数
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3API はS3Storageが使用するS3クライアントの操作。
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config はS3互換ストレージの接続設定。
type S3Config struct {
	Endpoint  string // MinIO等のエンドポイント。空の場合はAWS
	Region    string
	Bucket    string
	AccessKey string // 空の場合はデフォルトの認証情報チェーンを使用する
	SecretKey string
	PublicURL string
}

// S3Storage はS3互換オブジェクトストレージにファイルを保存する。
type S3Storage struct {
	client    S3API
	bucket    string
	publicURL string
}

// NewS3Storage は設定からS3クライアントを生成し、S3Storageを返す。
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StorageWithClient(client, cfg.Bucket, cfg.PublicURL), nil
}

// NewS3StorageWithClient は既存のクライアントでS3Storageを生成する。
func NewS3StorageWithClient(client S3API, bucket, publicURL string) *S3Storage {
	return &S3Storage{client: client, bucket: bucket, publicURL: publicURL}
}

// Save はオブジェクトをアップロードする。
// シーク不可能なbodyはContent-Length算出のためメモリに読み込む。
func (s *S3Storage) Save(ctx context.Context, key, contentType string, body io.Reader) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	rs, ok := body.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("failed to read upload: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        rs,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// Delete はオブジェクトを削除する。S3は存在しないキーの削除も成功として扱う。
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// URL は公開URLを返す。
func (s *S3Storage) URL(key string) string {
	return joinURL(s.publicURL, key)
}

// compile-time interface check
var (
	_ Storage = (*S3Storage)(nil)
	_ S3API   = (*s3.Client)(nil)
)

// Package storage はアップロード画像の保存先を抽象化する。
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey はストレージキーが不正であることを表す。
var ErrInvalidKey = errors.New("storage: invalid key")

// Storage はファイル保存先のインターフェース。
// キーは"products/<uuid>.png"のようなスラッシュ区切りの相対パス。
type Storage interface {
	// Save はbodyの内容をkeyに保存する。
	Save(ctx context.Context, key, contentType string, body io.Reader) error

	// Delete はkeyのファイルを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error

	// URL はkeyをクライアントが解決できる公開URLに変換する。
	URL(key string) string
}

// ValidateKey はキーがルート配下を指す正規化済みの相対パスかどうかを検証する。
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return ErrInvalidKey
		}
	}
	return nil
}

// joinURL は公開URLのベースとキーを連結する。
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

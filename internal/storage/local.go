package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
)

// LocalStorage はローカルファイルシステムにファイルを保存する。
// 保存したファイルはHandlerで公開する。
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage はLocalStorageを生成する。rootが存在しない場合は作成する。
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStorage{root: abs, baseURL: baseURL}, nil
}

// path はキーに対応するファイルパスを返す。
func (s *LocalStorage) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Save は一時ファイルに書き込んでからリネームし、途中の状態を公開しない。
func (s *LocalStorage) Save(ctx context.Context, key, contentType string, body io.Reader) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}

// Delete はファイルを削除する。
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// URL は公開URLを返す。
func (s *LocalStorage) URL(key string) string {
	return joinURL(s.baseURL, key)
}

// Handler は保存済みファイルを読み取り専用で配信するハンドラーを返す。
// ディレクトリと隠しファイルは404とする。
func (s *LocalStorage) Handler() http.Handler {
	return http.FileServer(filesOnlyFS{http.Dir(s.root)})
}

// filesOnlyFS は通常ファイルのみを公開するhttp.FileSystem。
type filesOnlyFS struct {
	fs http.FileSystem
}

func (f filesOnlyFS) Open(name string) (http.File, error) {
	if base := filepath.Base(name); len(base) > 0 && base[0] == '.' {
		return nil, fs.ErrNotExist
	}
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// compile-time interface check
var _ Storage = (*LocalStorage)(nil)

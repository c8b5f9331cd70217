package product

import (
	"io"
	"net/http"

	"github.com/hitoshi/shelf/internal/model"
)

// imageExtensions は受け付ける画像形式と保存時の拡張子。
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// sniffLen はhttp.DetectContentTypeが参照する先頭バイト数。
const sniffLen = 512

// readImage はアップロード画像を読み込み、内容から判定した形式と拡張子を返す。
// クライアントが申告したContent-Typeは信用しない。
func readImage(upload *model.ImageUpload, maxBytes int64) ([]byte, string, string, error) {
	if upload.Size > maxBytes {
		return nil, "", "", model.NewPayloadTooLargeError(maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, maxBytes+1))
	if err != nil {
		return nil, "", "", model.NewInvalidImageError("the file could not be read")
	}
	if int64(len(data)) > maxBytes {
		return nil, "", "", model.NewPayloadTooLargeError(maxBytes)
	}
	if len(data) == 0 {
		return nil, "", "", model.NewInvalidImageError("the file is empty")
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, "", "", model.NewInvalidImageError("must be a jpeg, png, gif or webp image")
	}

	return data, contentType, ext, nil
}

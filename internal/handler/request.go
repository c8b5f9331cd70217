package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/hitoshi/shelf/internal/model"
)

const (
	// multipartMemory はmultipartフォームをメモリに保持する上限。超過分は一時ファイルになる。
	multipartMemory = 8 << 20
	// bodyOverhead はファイル以外のフォーム要素に許容する追加バイト数。
	bodyOverhead = 1 << 20
	// imageField はバナー画像のフォームフィールド名。
	imageField = "banner_image"
)

// requestFields はJSON・URLエンコード・multipartのいずれかで送られた入力値。
// 送信されなかったフィールドと空文字を区別できるよう、存在するキーのみを保持する。
type requestFields struct {
	values map[string]string
	image  *model.ImageUpload
	form   *multipart.Form
	file   multipart.File
}

// get はフィールドの値を返す。送信されていない場合はnil。
func (f *requestFields) get(name string) *string {
	v, ok := f.values[name]
	if !ok {
		return nil
	}
	return &v
}

// value はフィールドの値を返す。送信されていない場合は空文字。
func (f *requestFields) value(name string) string {
	return f.values[name]
}

// Close はアップロードファイルと一時ファイルを解放する。
func (f *requestFields) Close() {
	if f.file != nil {
		f.file.Close()
	}
	if f.form != nil {
		f.form.RemoveAll()
	}
}

// readFields はContent-Typeに応じてリクエストボディを解析する。
// ボディ全体はmaxBodyBytesに制限され、超過した場合はPAYLOAD_TOO_LARGEとなる。
// 画像を受け付けない呼び出しではmaxImageBytesに0を渡す。
func readFields(w http.ResponseWriter, r *http.Request, maxImageBytes int64) (*requestFields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+bodyOverhead)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return readMultipart(r, maxImageBytes)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err, maxImageBytes)
		}
		return &requestFields{values: firstValues(r.PostForm)}, nil
	default:
		return readJSON(r, maxImageBytes)
	}
}

func readMultipart(r *http.Request, maxImageBytes int64) (*requestFields, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, bodyError(err, maxImageBytes)
	}

	f := &requestFields{
		values: firstValues(r.MultipartForm.Value),
		form:   r.MultipartForm,
	}

	if maxImageBytes <= 0 {
		return f, nil
	}

	file, header, err := r.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return f, nil
		}
		f.Close()
		return nil, model.NewInvalidRequestError()
	}
	f.file = file
	f.image = &model.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return f, nil
}

// readJSON はJSONオブジェクトを解析する。文字列・数値はそのまま文字列として、nullは空文字として扱う。
// 空のボディは空のオブジェクトとみなす。
func readJSON(r *http.Request, maxImageBytes int64) (*requestFields, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &requestFields{values: map[string]string{}}, nil
		}
		return nil, bodyError(err, maxImageBytes)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			values[k] = ""
		case string:
			values[k] = val
		case json.Number:
			values[k] = val.String()
		case bool:
			values[k] = fmt.Sprint(val)
		default:
			return nil, model.NewInvalidRequestError()
		}
	}
	return &requestFields{values: values}, nil
}

// bodyError はボディ解析エラーをAPIErrorに変換する。
func bodyError(err error, maxImageBytes int64) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return model.NewPayloadTooLargeError(maxImageBytes)
	}
	return model.NewInvalidRequestError()
}

func firstValues(form map[string][]string) map[string]string {
	values := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			values[k] = v[0]
		}
	}
	return values
}

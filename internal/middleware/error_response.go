package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/shelf/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 成功レスポンスと同じくstatusとmessageを持ち、機械判定用のcodeとcategoryを加える。
type ErrorResponseBody struct {
	Status   bool              `json:"status"`
	Message  string            `json:"message"`
	Code     string            `json:"code"`
	Category string            `json:"category"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Status:   false,
		Message:  apiErr.Message,
		Code:     apiErr.Code,
		Category: apiErr.Category,
		Errors:   apiErr.Fields,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteUnauthenticated は未認証レスポンスを書き込む。原因によらず本文は同一。
func WriteUnauthenticated(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
}

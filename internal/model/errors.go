// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに返すエラーコード、メッセージ、カテゴリ、フィールド単位の詳細を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, product, storage, system
	Fields   map[string]string // フィールド名 → 理由（バリデーションエラー時のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidImage       = "INVALID_IMAGE"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeStorageFailure     = "STORAGE_FAILURE"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// フィールドエラーの理由
const (
	ReasonRequired  = "required"
	ReasonInvalid   = "invalid"
	ReasonDuplicate = "duplicate"
	ReasonTooShort  = "too_short"
	ReasonTooLong   = "too_long"
	ReasonMismatch  = "mismatch"
	ReasonNegative  = "negative"
)

// NewValidationError はフィールド単位のバリデーションエラーを生成する。
// メッセージは最初に見つかったフィールドを基に組み立てる。
func NewValidationError(fields map[string]string) *APIError {
	msg := "The given data was invalid."
	for _, name := range fieldOrder {
		if reason, ok := fields[name]; ok {
			msg = fmt.Sprintf("The %s field is %s.", name, describeReason(reason))
			break
		}
	}
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  msg,
		Category: "validation",
		Fields:   fields,
	}
}

// fieldOrder はメッセージ生成時のフィールド優先順位。
var fieldOrder = []string{"name", "email", "password", "password_confirmation", "title", "description", "cost", "banner_image"}

func describeReason(reason string) string {
	switch reason {
	case ReasonRequired:
		return "required"
	case ReasonTooShort:
		return "too short"
	case ReasonTooLong:
		return "too long"
	case ReasonMismatch:
		return "not confirmed"
	case ReasonNegative:
		return "negative"
	default:
		return "invalid"
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "The email has already been taken.",
		Category: "validation",
		Fields:   map[string]string{"email": ReasonDuplicate},
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスとパスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
// トークン欠落・不正・期限切れ・失効のいずれでも同一の内容を返す。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Unauthenticated.",
		Category: "auth",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
// 他ユーザー所有の商品に対しても同じエラーを返す。
func NewProductNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  "Product not found",
		Category: "product",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
	}
}

// NewInvalidImageError は画像形式エラーを生成する。
func NewInvalidImageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  fmt.Sprintf("The banner image is invalid: %s", reason),
		Category: "validation",
		Fields:   map[string]string{"banner_image": ReasonInvalid},
	}
}

// NewPayloadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewPayloadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("The upload exceeds the maximum size of %d bytes.", maxBytes),
		Category: "validation",
	}
}

// NewStorageFailureError はファイル保存失敗エラーを生成する。
func NewStorageFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  "Failed to store the uploaded file.",
		Category: "storage",
	}
}

// NewInvalidRequestError はリクエストボディ解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "The request body could not be parsed.",
		Category: "validation",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error.",
		Category: "system",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
	}
}

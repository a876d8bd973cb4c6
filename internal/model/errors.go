// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはレスポンスの"error"、Detailは任意の"message"として返される。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Detail   string // 補足情報（任意）
	Category string // カテゴリ: validation, auth, approval, upstream, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeMissingToken       = "MISSING_TOKEN"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeActionLocked       = "ACTION_LOCKED"
	ErrCodeApprovalRejected   = "APPROVAL_REJECTED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUpstreamFailed     = "UPSTREAM_FAILED"
	ErrCodeNotConfigured      = "NOT_CONFIGURED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeRouteNotFound      = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は必須項目の欠落や形式不正のエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewDuplicateEmailError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "Email already registered",
		Category: "validation",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー列挙を防ぐため、未登録メールアドレスとパスワード不一致で同一のエラーを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
	}
}

// NewMissingTokenError はトークン未指定エラーを生成する。
func NewMissingTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingToken,
		Message:  "Authentication token is missing",
		Category: "auth",
	}
}

// NewInvalidTokenError は署名不正・形式不正のトークンエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid token",
		Category: "auth",
	}
}

// NewTokenExpiredError は有効期限切れトークンのエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "Token has expired",
		Category: "auth",
	}
}

// NewActionLockedError は承認フラグのないリクエストに対するエラーを生成する。
func NewActionLockedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeActionLocked,
		Message:  message,
		Category: "approval",
	}
}

// NewApprovalRejectedError は承認トークンの検証失敗エラーを生成する。
func NewApprovalRejectedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeApprovalRejected,
		Message:  "Approval could not be verified",
		Detail:   reason,
		Category: "approval",
	}
}

// NewUserNotFoundError はトークンは有効だがユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
	}
}

// NewUpstreamError は生成APIの呼び出し失敗エラーを生成する。
// 上流のエラーメッセージはDetailとしてそのまま返す。
func NewUpstreamError(message string, cause error) *APIError {
	e := &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  message,
		Category: "upstream",
	}
	if cause != nil {
		e.Detail = cause.Error()
	}
	return e
}

// NewNotConfiguredError はAPIキー未設定エラーを生成する。
func NewNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeNotConfigured,
		Message:  "Gemini API key not configured",
		Detail:   "Please configure GEMINI_API_KEY in your .env file",
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

// NewRouteNotFoundError は存在しないエンドポイントへのリクエストのエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRouteNotFound,
		Message:  "Not found",
		Category: "validation",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method not allowed",
		Category: "validation",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
	}
}

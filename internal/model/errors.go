// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, favorite, movie, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeMissingField       = "MISSING_FIELD"
	ErrCodeInvalidField       = "INVALID_FIELD"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeFavoriteNotFound   = "FAVORITE_NOT_FOUND"
	ErrCodeDuplicateFavorite  = "DUPLICATE_FAVORITE"
	ErrCodeProviderFailed     = "PROVIDER_FAILED"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewMissingFieldError は必須項目が未指定の場合のエラーを生成する。
// fieldsには未指定の項目名をそのまま列挙する。
func NewMissingFieldError(fields ...string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("必須項目が指定されていません: %v", fields),
		Category: "validation",
		Action:   "必須項目をすべて入力してください。",
	}
}

// NewInvalidFieldError は項目の値が不正な場合のエラーを生成する。
func NewInvalidFieldError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidField,
		Message:  fmt.Sprintf("%s が不正です: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewEmailTakenError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewInvalidCredentialsError は認証情報が一致しない場合のエラーを生成する。
// アカウント列挙を防ぐため、ユーザー不存在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してから再度ログインしてください。",
	}
}

// NewUnauthorizedError は認証が必要な場合のエラーを生成する。
// トークンの期限切れと不正を区別しない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewFavoriteNotFoundError はお気に入りが見つからない場合のエラーを生成する。
// 他ユーザーのお気に入りの存在を漏らさないため、所有者不一致も同じエラーとする。
func NewFavoriteNotFoundError(favoriteID string) *APIError {
	return &APIError{
		Code:     ErrCodeFavoriteNotFound,
		Message:  fmt.Sprintf("指定されたお気に入りが見つかりません: %s", favoriteID),
		Category: "favorite",
		Action:   "お気に入り一覧を再読み込みしてください。",
	}
}

// NewDuplicateFavoriteError は同じ映画を再度お気に入り登録しようとした場合のエラーを生成する。
func NewDuplicateFavoriteError(movieID string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFavorite,
		Message:  fmt.Sprintf("この映画は既にお気に入りに登録されています: %s", movieID),
		Category: "favorite",
		Action:   "お気に入り一覧から該当の映画を確認してください。",
	}
}

// NewProviderFailedError は外部映画APIの呼び出し失敗エラーを生成する。
func NewProviderFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderFailed,
		Message:  "映画情報の取得に失敗しました。",
		Category: "movie",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitExceededError はリクエスト数が上限を超えた場合のエラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエスト数が上限を超えました。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, conflict, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailInUse         = "EMAIL_IN_USE"
	ErrCodeConfigMissing      = "CONFIG_MISSING"
	ErrCodeUpstream           = "UPSTREAM_ERROR"
	ErrCodeFileTooLarge       = "FILE_TOO_LARGE"
	ErrCodeBlockedMediaURL    = "BLOCKED_MEDIA_URL"
)

// NewValidationError は入力検証エラーを生成する。
// 理由はユーザーが自分で修正できる具体的な内容を含める。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー列挙を防ぐため、存在しないメールアドレスとパスワード不一致で
// 完全に同一のメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力した認証情報を確認してください。",
	}
}

// NewEmailInUseError は登録済みメールアドレスの重複エラーを生成する。
func NewEmailInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailInUse,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "conflict",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewConfigurationError は必須設定の欠落エラーを生成する。
// 安全でないデフォルト値へのフォールバックは行わない。
func NewConfigurationError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeConfigMissing,
		Message:  fmt.Sprintf("必須の設定が欠落しています: %s", name),
		Category: "system",
		Action:   "サーバーのデプロイ設定を確認してください。",
	}
}

// NewUpstreamError は外部ストア呼び出しの失敗エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewUpstreamError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstream,
		Message:  "外部ストレージとの通信に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewFileTooLargeError はアップロードファイルのサイズ超過エラーを生成する。
func NewFileTooLargeError(name string, limitBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("ファイル %s がサイズ上限（%dバイト）を超えています。", name, limitBytes),
		Category: "validation",
		Action:   "より小さいファイルを選択してください。",
	}
}

// NewBlockedMediaURLError は許可されていないメディアURLへのアクセスエラーを生成する。
func NewBlockedMediaURLError() *APIError {
	return &APIError{
		Code:     ErrCodeBlockedMediaURL,
		Message:  "指定されたファイルURLへのアクセスは許可されていません。",
		Category: "validation",
		Action:   "カタログAPIが返したファイルURLのみ指定できます。",
	}
}

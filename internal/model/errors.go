// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はAPIエラーの分類を表す。HTTPステータスへの変換はハンドラー層が行う。
type ErrorKind string

// 定義済みエラー分類
const (
	ErrKindInvalidInput        ErrorKind = "INVALID_INPUT"
	ErrKindUnauthenticated     ErrorKind = "UNAUTHENTICATED"
	ErrKindNotFound            ErrorKind = "NOT_FOUND"
	ErrKindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
	ErrKindUpstreamError       ErrorKind = "UPSTREAM_ERROR"
)

// APIError は呼び出し元に返すエラーを表す。
// レスポンスにはMessageのみを含め、Kindはステータスコードの決定に使う。
type APIError struct {
	Kind    ErrorKind
	Message string
	Err     error // 原因となったエラー（ログ用、レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewInvalidInputError は入力不備エラーを生成する。
func NewInvalidInputError(message string) *APIError {
	return &APIError{Kind: ErrKindInvalidInput, Message: message}
}

// NewUnauthenticatedError はセッション未検出エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{Kind: ErrKindUnauthenticated, Message: "User not found in Redis"}
}

// NewNotFoundError は対象未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	return &APIError{Kind: ErrKindNotFound, Message: message}
}

// NewUpstreamUnavailableError は外部サービスへの到達失敗エラーを生成する。
func NewUpstreamUnavailableError(service string, err error) *APIError {
	return &APIError{
		Kind:    ErrKindUpstreamUnavailable,
		Message: fmt.Sprintf("Failed to reach %s", service),
		Err:     err,
	}
}

// NewUpstreamError は外部サービスの応答が不正な場合のエラーを生成する。
func NewUpstreamError(message string) *APIError {
	return &APIError{Kind: ErrKindUpstreamError, Message: message}
}

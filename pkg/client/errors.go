package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnexpectedResponse はレスポンスが想定した形でない場合に返される
var ErrUnexpectedResponse = errors.New("unexpected response from server")

// APIError はバックエンドが2xx以外を返した場合のエラー
type APIError struct {
	StatusCode    int
	Endpoint      string
	Message       string
	ServiceStatus string
	RetryAfter    int
	Err           error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsUnauthorized はセッション切れ・認証失敗かを返す
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsServiceUnavailable は予測サービスが停止中かを返す
func (e *APIError) IsServiceUnavailable() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.ServiceStatus == "offline"
}

// AsAPIError はerrからAPIErrorを取り出す
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Package login はログイン画面の状態と操作を扱います。
package login

import (
	"context"
	"errors"
	"strings"
	"sync"

	"energenius/pkg/client"
	"energenius/pkg/models"
)

var (
	// ErrValidation は入力欄の検証に失敗した場合に返される
	ErrValidation = errors.New("login form is invalid")
	// ErrSubmitInFlight は送信中に再度送信された場合に返される
	ErrSubmitInFlight = errors.New("login request already in flight")
)

// DefaultRedirect はレスポンスに遷移先がない場合のダッシュボードURL
const DefaultRedirect = "/dashboard.html"

const genericLoginError = "Login failed. Please try again."

// View はログイン画面の表示
type View interface {
	ShowFieldError(field Field, message string)
	ClearFieldError(field Field)
	ShowAlert(message string)
	HideAlert()
	SetSubmitEnabled(enabled bool)
	Redirect(url string)
}

// Authenticator はログインAPI
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
}

// Controller はログインフォームの状態を管理します
type Controller struct {
	mu         sync.Mutex
	auth       Authenticator
	view       View
	submitting bool
	alert      string
}

// NewController は新しいControllerを生成します
func NewController(auth Authenticator, view View) *Controller {
	return &Controller{auth: auth, view: view}
}

// Blur は入力欄からフォーカスが外れたときに検証し、エラーメッセージを返す
func (c *Controller) Blur(field Field, value string) string {
	msg := validate(field, value)
	if msg != "" {
		c.view.ShowFieldError(field, msg)
	} else {
		c.view.ClearFieldError(field)
	}
	return msg
}

// Submit は入力を検証してログインを実行します。成功時はダッシュボードへ遷移します。
func (c *Controller) Submit(ctx context.Context, username, password string) error {
	userMsg := c.Blur(FieldUsername, username)
	passMsg := c.Blur(FieldPassword, password)
	if userMsg != "" || passMsg != "" {
		return ErrValidation
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	c.submitting = true
	c.alert = ""
	c.mu.Unlock()

	c.view.HideAlert()
	c.view.SetSubmitEnabled(false)

	resp, err := c.auth.Login(ctx, strings.TrimSpace(username), password)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.alert = loginErrorMessage(err)
	}
	alert := c.alert
	c.mu.Unlock()

	c.view.SetSubmitEnabled(true)
	if err != nil {
		c.view.ShowAlert(alert)
		return err
	}

	redirect := resp.Redirect
	if redirect == "" {
		redirect = DefaultRedirect
	}
	c.view.Redirect(redirect)
	return nil
}

func loginErrorMessage(err error) string {
	if apiErr, ok := client.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return genericLoginError
}

// DismissAlert はエラー表示を閉じる
func (c *Controller) DismissAlert() {
	c.mu.Lock()
	c.alert = ""
	c.mu.Unlock()
	c.view.HideAlert()
}

// Alert は表示中のエラーメッセージを返す
func (c *Controller) Alert() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alert
}

// SubmitEnabled は送信ボタンが押せるかを返す
func (c *Controller) SubmitEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.submitting
}

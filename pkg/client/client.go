// Package client はEnergeniusバックエンドのHTTP APIクライアントです。
// セッションCookieはクライアント内のCookieJarに保持されます。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"energenius/pkg/models"
)

// Client はバックエンドAPIへのリクエストを管理します
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option はClientの設定を変更する
type Option func(*Client)

// WithHTTPClient は利用するhttp.Clientを差し替えます。Jarが未設定ならCookieJarを付けます。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout はリクエストのタイムアウトを設定します
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New は新しいClientを作成します
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("CookieJarの作成に失敗: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// BaseURL はバックエンドのURLを返す
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckSession は現在のセッション状態を取得します
func (c *Client) CheckSession(ctx context.Context) (*models.SessionStatus, error) {
	var status models.SessionStatus
	if err := c.doJSON(ctx, http.MethodGet, "/auth/check-session", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Login は資格情報を送信します。成功するとセッションCookieが保存されます。
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	req := models.LoginRequest{Username: username, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Endpoint: "/auth/login", Message: resp.Message}
	}
	return &resp, nil
}

// Logout はセッションを終了します
func (c *Client) Logout(ctx context.Context) (*models.LogoutResponse, error) {
	var resp models.LogoutResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/logout", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload はファイルをmultipartで送信し、プレビューと統計量を返します
func (c *Client) Upload(ctx context.Context, fileName string, r io.Reader) (*models.UploadData, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("multipartの作成に失敗: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("multipartの作成に失敗: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp models.APIResponse[*models.UploadData]
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("/api/upload: %w", ErrUnexpectedResponse)
	}
	return resp.Data, nil
}

// Predict は予測を要求します
func (c *Client) Predict(ctx context.Context, request models.PredictRequest) (*models.PredictionResult, error) {
	var resp models.APIResponse[*models.PredictionResult]
	if err := c.doJSON(ctx, http.MethodPost, "/api/predict", request, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("/api/predict: %w", ErrUnexpectedResponse)
	}
	return resp.Data, nil
}

// Export は予測結果をファイルとして取得します
func (c *Client) Export(ctx context.Context, result *models.PredictionResult, format string) (*models.ExportFile, error) {
	payload, err := json.Marshal(models.ExportRequest{Data: result, Format: format})
	if err != nil {
		return nil, fmt.Errorf("リクエストのJSON化に失敗: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/export", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("/api/export: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("/api/export", resp, data)
	}

	name := "predikcija_" + time.Now().Format("20060102_150405") + extensionFor(format)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return &models.ExportFile{Name: name, Data: data}, nil
}

func extensionFor(format string) string {
	switch format {
	case models.FormatExcel:
		return ".xlsx"
	case models.FormatPDF:
		return ".txt"
	}
	return ".csv"
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON はJSONリクエストを送信してレスポンスをデコードする共通メソッドです
func (c *Client) doJSON(ctx context.Context, method, path string, requestData, responseData interface{}) error {
	var body io.Reader
	if requestData != nil {
		payload, err := json.Marshal(requestData)
		if err != nil {
			return fmt.Errorf("リクエストのJSON化に失敗: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, responseData)
}

func (c *Client) do(req *http.Request, responseData interface{}) error {
	endpoint := req.URL.Path
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(endpoint, resp, data)
	}
	if err := json.Unmarshal(data, responseData); err != nil {
		return fmt.Errorf("%s: %w: %v", endpoint, ErrUnexpectedResponse, err)
	}
	return nil
}

func newAPIError(endpoint string, resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	var payload struct {
		Message       string `json:"message"`
		Error         string `json:"error"`
		ServiceStatus string `json:"service_status"`
		RetryAfter    int    `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
		apiErr.ServiceStatus = payload.ServiceStatus
		apiErr.RetryAfter = payload.RetryAfter
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)
	}
	return apiErr
}

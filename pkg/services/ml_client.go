package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// modelEndpoints はモデル種別ごとの予測エンドポイント
var modelEndpoints = map[string]string{
	"nbeats":     "/predict/nbeats",
	"cnn-nbeats": "/predict/cnn-nbeats",
	"nbeats-cnn": "/predict/nbeats-cnn",
}

// IsKnownModel はモデル種別が対応済みかを判定する
func IsKnownModel(modelType string) bool {
	_, ok := modelEndpoints[modelType]
	return ok
}

// MLClient は予測モデルAPI（FastAPI）へのリクエストを管理します
type MLClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMLClient は新しいMLClientを作成します
func NewMLClient(baseURL string, timeout time.Duration) *MLClient {
	return &MLClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// mlPredictRequest 予測APIリクエスト
type mlPredictRequest struct {
	Data [][]float64 `json:"data"`
}

// mlPredictResponse 予測APIレスポンス
type mlPredictResponse struct {
	Success      bool      `json:"success"`
	Forecast     []float64 `json:"forecast"`
	ErrorMessage string    `json:"error_message"`
	Metadata     struct {
		ProcessingTime float64 `json:"processing_time"`
	} `json:"metadata"`
}

// MLPrediction はモデル1回分の予測結果
type MLPrediction struct {
	ModelType      string
	Forecast       []float64
	ProcessingTime float64
}

// HealthCheck はML APIが利用可能かを確認する
func (c *MLClient) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("⚠️ [ml] ヘルスチェックに失敗: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "ok"
}

// Predict は24x24の入力で指定モデルの予測を実行する
func (c *MLClient) Predict(ctx context.Context, matrix [][]float64, modelType string) (*MLPrediction, error) {
	endpoint, ok := modelEndpoints[modelType]
	if !ok {
		return nil, fmt.Errorf("Unknown model type: %s", modelType)
	}
	if len(matrix) != 24 || len(matrix[0]) != 24 {
		return nil, fmt.Errorf("Input data must be 24x24")
	}

	log.Printf("🤖 [ml] %s へ予測リクエストを送信 (model=%s)", endpoint, modelType)

	var response mlPredictResponse
	if err := c.doRequest(ctx, c.baseURL+endpoint, mlPredictRequest{Data: matrix}, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		msg := response.ErrorMessage
		if msg == "" {
			msg = "Unknown error from ML API"
		}
		return nil, fmt.Errorf("%s", msg)
	}

	return &MLPrediction{
		ModelType:      modelType,
		Forecast:       response.Forecast,
		ProcessingTime: response.Metadata.ProcessingTime,
	}, nil
}

// doRequest はHTTPリクエストの実行と基本的なレスポンス処理を行う共通メソッドです。
func (c *MLClient) doRequest(ctx context.Context, url string, requestData interface{}, responseData interface{}) error {
	requestBody, err := json.Marshal(requestData)
	if err != nil {
		return fmt.Errorf("リクエストのJSON化に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Cannot connect to ML API service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateText(string(body), maxErrorBodyBytes))
	}

	if err := json.Unmarshal(body, responseData); err != nil {
		return fmt.Errorf("レスポンスのJSON解析に失敗: %w", err)
	}
	return nil
}

// エラーメッセージに含めるレスポンス本文の上限
const maxErrorBodyBytes = 200

// truncateText はUTF-8の文字境界を保ったままnバイト以内に切り詰める
func truncateText(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

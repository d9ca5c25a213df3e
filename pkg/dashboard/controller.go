// Package dashboard はダッシュボード画面の状態遷移と操作を扱います。
//
// アップロードの状態は empty → uploading → uploaded → predicting → results-shown と進み、
// どの状態からでも error に入れます。error からは直前の状態へ戻ります。
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"energenius/pkg/chart"
	"energenius/pkg/client"
	"energenius/pkg/models"
)

var (
	// ErrNotAuthenticated はセッションがない場合に返される
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrBusy はアップロードまたは予測の実行中に返される
	ErrBusy = errors.New("another request is in flight")
	// ErrUnsupportedFile はスプレッドシート以外のファイルを選んだ場合に返される
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrFileTooLarge はファイルが上限を超える場合に返される
	ErrFileTooLarge = errors.New("file is too large")
	// ErrPredictDisabled はアップロード前に予測しようとした場合に返される
	ErrPredictDisabled = errors.New("prediction is not available")
	// ErrNoResults は予測結果がない場合に返される
	ErrNoResults = errors.New("no prediction results")
	// ErrInvalidSelection は期間やモデルの指定が不正な場合に返される
	ErrInvalidSelection = errors.New("invalid selection")
)

// 画面遷移先
const (
	LoginURL = "/index.html"
)

// 表示メッセージ
const (
	msgUnsupportedFile = "Please select an Excel or CSV file (.xlsx, .xls, .csv)"
	msgFileTooLarge    = "File is too large. Maximum size is 10MB"
	msgUploaded        = "File uploaded successfully"
	msgPredicted       = "Prediction completed successfully"
	msgExported        = "Export completed"
	msgNoResults       = "No prediction data to export"
	msgGenericError    = "An unexpected error occurred. Please try again."
	msgUnavailable     = "ML prediction service is currently unavailable. Please try again later."
)

// 予測期間の上限（時間）
const maxPeriod = 168

var knownModels = map[string]bool{
	models.ModelNBeats:    true,
	models.ModelCNNNBeats: true,
	models.ModelNBeatsCNN: true,
}

// View はダッシュボード画面の表示
type View interface {
	Notify(level Level, message string)
	Redirect(url string)
	SetUser(name string)
	// RenderPreview はアップロード結果を表示する。nilなら表示を消す。
	RenderPreview(upload *models.UploadData)
	SetPredictEnabled(enabled bool)
	ShowServiceUnavailable(message string)
	HideServiceUnavailable()
	RenderChart(png []byte)
	RenderTable(table Table)
	ClearResults()
	Download(name string, data []byte)
}

// Backend はダッシュボードが使うAPI
type Backend interface {
	CheckSession(ctx context.Context) (*models.SessionStatus, error)
	Logout(ctx context.Context) (*models.LogoutResponse, error)
	Upload(ctx context.Context, fileName string, r io.Reader) (*models.UploadData, error)
	Predict(ctx context.Context, request models.PredictRequest) (*models.PredictionResult, error)
	Export(ctx context.Context, result *models.PredictionResult, format string) (*models.ExportFile, error)
}

// Controller はダッシュボードの状態を管理します。
// Viewの呼び出しはロックの外で行います。
type Controller struct {
	mu      sync.Mutex
	backend Backend
	view    View
	state   State

	chartWidth  int
	chartHeight int
	renderChart func(result *models.PredictionResult, width, height int) ([]byte, error)
}

// Option はControllerの設定を変更する
type Option func(*Controller)

// WithChartSize はグラフ画像のサイズを指定する
func WithChartSize(width, height int) Option {
	return func(c *Controller) {
		c.chartWidth = width
		c.chartHeight = height
	}
}

// NewController は新しいControllerを生成します
func NewController(backend Backend, view View, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		view:    view,
		state: State{
			Status: StatusEmpty,
			Period: models.HoursPerDay,
			Models: []string{models.ModelNBeats},
		},
		chartWidth:  chart.DefaultWidth,
		chartHeight: chart.DefaultHeight,
		renderChart: chart.RenderPNG,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State は現在の状態のコピーを返す
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Status は現在の状態を返す
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Status
}

// PredictEnabled は予測ボタンが押せるかを返す。
// アップロード済みで、リクエスト実行中でない場合だけtrue。
func (c *Controller) PredictEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.predictEnabledLocked()
}

func (c *Controller) predictEnabledLocked() bool {
	return c.state.FileID != "" && !c.state.InFlight
}

// Init はセッションを確認します。未ログインならログイン画面へ遷移します。
func (c *Controller) Init(ctx context.Context) error {
	status, err := c.backend.CheckSession(ctx)
	if err != nil || status == nil || !status.Authenticated || status.User == nil {
		if err != nil {
			log.Printf("⚠️ [dashboard] セッション確認に失敗: %v", err)
		}
		c.view.Redirect(LoginURL)
		return ErrNotAuthenticated
	}

	c.mu.Lock()
	user := *status.User
	c.state.User = &user
	c.mu.Unlock()

	c.view.SetUser(user.DisplayName())
	c.view.SetPredictEnabled(false)
	return nil
}

// SelectFile はファイルを検証してアップロードします。
// スプレッドシート以外やサイズ超過はネットワークに出さずに拒否します。
func (c *Controller) SelectFile(ctx context.Context, file FileHandle) error {
	if !file.IsSpreadsheet() {
		c.view.Notify(LevelError, msgUnsupportedFile)
		return ErrUnsupportedFile
	}
	if file.Size > MaxFileSize {
		c.view.Notify(LevelError, msgFileTooLarge)
		return ErrFileTooLarge
	}

	c.mu.Lock()
	if c.state.InFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state.InFlight = true
	c.state.Status = StatusUploading
	c.state.FileName = file.Name
	c.state.FileID = ""
	c.state.Upload = nil
	c.state.Result = nil
	c.state.ErrorMessage = ""
	c.state.ServiceUnavailable = false
	c.mu.Unlock()

	c.view.SetPredictEnabled(false)
	c.view.HideServiceUnavailable()
	c.view.ClearResults()

	upload, err := c.upload(ctx, file)

	c.mu.Lock()
	c.state.InFlight = false
	c.mu.Unlock()

	if err != nil {
		c.handleError(err, StatusEmpty, "Upload failed")
		return err
	}
	if upload == nil || upload.FileID == "" {
		c.structuralMismatch("upload response without file id")
		return client.ErrUnexpectedResponse
	}

	c.mu.Lock()
	c.state.Status = StatusUploaded
	c.state.FileID = upload.FileID
	c.state.Upload = upload
	if upload.FileName != "" {
		c.state.FileName = upload.FileName
	}
	enabled := c.predictEnabledLocked()
	c.mu.Unlock()

	c.view.RenderPreview(upload)
	c.view.SetPredictEnabled(enabled)
	c.view.Notify(LevelSuccess, msgUploaded)
	return nil
}

func (c *Controller) upload(ctx context.Context, file FileHandle) (*models.UploadData, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("%s: ファイルを開けません", file.Name)
	}
	r, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("ファイルを開けません: %w", err)
	}
	defer r.Close()
	return c.backend.Upload(ctx, file.Name, r)
}

// RemoveFile はアップロード済みファイルと結果を破棄して初期状態に戻します
func (c *Controller) RemoveFile() {
	c.mu.Lock()
	c.state.Status = StatusEmpty
	c.state.Previous = StatusEmpty
	c.state.FileName = ""
	c.state.FileID = ""
	c.state.Upload = nil
	c.state.Result = nil
	c.state.ErrorMessage = ""
	c.state.ServiceUnavailable = false
	enabled := c.predictEnabledLocked()
	c.mu.Unlock()

	c.view.RenderPreview(nil)
	c.view.ClearResults()
	c.view.HideServiceUnavailable()
	c.view.SetPredictEnabled(enabled)
}

// SetPeriod は予測期間（時間）を設定します
func (c *Controller) SetPeriod(hours int) error {
	if hours <= 0 || hours > maxPeriod {
		return fmt.Errorf("%w: period must be between 1 and %d hours", ErrInvalidSelection, maxPeriod)
	}
	c.mu.Lock()
	c.state.Period = hours
	c.mu.Unlock()
	return nil
}

// SetModels は使用する予測モデルを設定します。1つ以上必要です。
func (c *Controller) SetModels(modelTypes []string) error {
	if len(modelTypes) == 0 {
		c.view.Notify(LevelWarning, "At least one model must be selected")
		return fmt.Errorf("%w: at least one model must be selected", ErrInvalidSelection)
	}
	seen := make(map[string]bool, len(modelTypes))
	var selected []string
	for _, m := range modelTypes {
		if !knownModels[m] {
			return fmt.Errorf("%w: unknown model %q", ErrInvalidSelection, m)
		}
		if !seen[m] {
			seen[m] = true
			selected = append(selected, m)
		}
	}
	c.mu.Lock()
	c.state.Models = selected
	c.mu.Unlock()
	return nil
}

// Predict は予測を要求し、結果を現在の表示形式で描画します
func (c *Controller) Predict(ctx context.Context) error {
	c.mu.Lock()
	if c.state.InFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.predictEnabledLocked() {
		c.mu.Unlock()
		return ErrPredictDisabled
	}
	c.state.InFlight = true
	c.state.Status = StatusPredicting
	// 以前の結果は新しい予測で置き換わるので、失敗時に残さない
	c.state.Result = nil
	c.state.ErrorMessage = ""
	c.state.ServiceUnavailable = false
	request := models.PredictRequest{
		FileID:           c.state.FileID,
		PredictionPeriod: c.state.Period,
		PredictionType:   "country-level",
		ModelTypes:       append([]string(nil), c.state.Models...),
	}
	c.mu.Unlock()

	c.view.SetPredictEnabled(false)
	c.view.HideServiceUnavailable()
	c.view.ClearResults()

	result, err := c.backend.Predict(ctx, request)

	c.mu.Lock()
	c.state.InFlight = false
	c.mu.Unlock()

	if err != nil {
		c.handleError(err, StatusUploaded, "Prediction failed")
		c.view.SetPredictEnabled(c.PredictEnabled())
		return err
	}
	if !validResult(result, request.ModelTypes) {
		c.structuralMismatch("prediction result without hours or model values")
		return client.ErrUnexpectedResponse
	}

	c.mu.Lock()
	c.state.Status = StatusResultsShown
	c.state.Result = result
	enabled := c.predictEnabledLocked()
	c.mu.Unlock()

	c.view.SetPredictEnabled(enabled)
	if err := c.renderResults(); err != nil {
		return err
	}
	c.view.Notify(LevelSuccess, msgPredicted)
	return nil
}

// RetryPrediction はサービス停止の表示を閉じて予測をやり直します
func (c *Controller) RetryPrediction(ctx context.Context) error {
	c.mu.Lock()
	c.state.ServiceUnavailable = false
	c.mu.Unlock()
	c.view.HideServiceUnavailable()
	return c.Predict(ctx)
}

// DismissError はエラー表示を閉じて直前の状態に戻ります
func (c *Controller) DismissError() {
	c.mu.Lock()
	if c.state.Status == StatusError {
		c.state.Status = c.state.Previous
	}
	c.state.ErrorMessage = ""
	c.state.ServiceUnavailable = false
	c.mu.Unlock()
	c.view.HideServiceUnavailable()
}

func validResult(result *models.PredictionResult, modelTypes []string) bool {
	if result == nil || len(result.Hours) == 0 {
		return false
	}
	for _, m := range modelTypes {
		p, ok := result.Predictions[m]
		if !ok || len(p.Values) == 0 {
			return false
		}
	}
	return true
}

// ShowChart は結果をグラフで表示します
func (c *Controller) ShowChart() error {
	return c.setViewMode(ViewChart)
}

// ShowTable は結果を表で表示します
func (c *Controller) ShowTable() error {
	return c.setViewMode(ViewTable)
}

func (c *Controller) setViewMode(mode ViewMode) error {
	c.mu.Lock()
	c.state.ViewMode = mode
	hasResult := c.state.Result != nil
	c.mu.Unlock()

	if !hasResult {
		return ErrNoResults
	}
	return c.renderResults()
}

func (c *Controller) renderResults() error {
	c.mu.Lock()
	result, mode := c.state.Result, c.state.ViewMode
	c.mu.Unlock()

	if result == nil {
		return ErrNoResults
	}
	if mode == ViewTable {
		c.view.RenderTable(BuildTable(result))
		return nil
	}
	png, err := c.renderChart(result, c.chartWidth, c.chartHeight)
	if err != nil {
		log.Printf("❌ [dashboard] グラフの描画に失敗: %v", err)
		c.view.Notify(LevelError, "Failed to render chart")
		return err
	}
	c.view.RenderChart(png)
	return nil
}

// Export は現在の結果を指定形式でダウンロードします。失敗しても状態は変わりません。
func (c *Controller) Export(ctx context.Context, format string) error {
	c.mu.Lock()
	result := c.state.Result
	c.mu.Unlock()

	if result == nil {
		c.view.Notify(LevelWarning, msgNoResults)
		return ErrNoResults
	}

	file, err := c.backend.Export(ctx, result, format)
	if err != nil {
		if apiErr, ok := client.AsAPIError(err); ok && apiErr.IsUnauthorized() {
			c.view.Redirect(LoginURL)
			return err
		}
		c.view.Notify(LevelError, "Export failed: "+errorMessage(err))
		return err
	}
	if file == nil || len(file.Data) == 0 {
		c.view.Notify(LevelError, msgGenericError)
		return client.ErrUnexpectedResponse
	}

	c.view.Download(file.Name, file.Data)
	c.view.Notify(LevelSuccess, msgExported)
	return nil
}

// Logout はセッションを終了してログイン画面へ遷移します
func (c *Controller) Logout(ctx context.Context) error {
	redirect := LoginURL
	resp, err := c.backend.Logout(ctx)
	if err != nil {
		log.Printf("⚠️ [dashboard] ログアウトに失敗: %v", err)
	} else if resp != nil && resp.Redirect != "" {
		redirect = resp.Redirect
	}

	c.mu.Lock()
	c.state = State{
		Status: StatusEmpty,
		Period: c.state.Period,
		Models: c.state.Models,
	}
	c.mu.Unlock()

	c.view.Redirect(redirect)
	return err
}

// handleError はエラーを表示してerror状態に入る。401ならログイン画面へ遷移する。
func (c *Controller) handleError(err error, previous Status, prefix string) {
	apiErr, isAPI := client.AsAPIError(err)
	if isAPI && apiErr.IsUnauthorized() {
		c.mu.Lock()
		c.state = State{
			Status: StatusEmpty,
			Period: c.state.Period,
			Models: c.state.Models,
		}
		c.mu.Unlock()
		c.view.Redirect(LoginURL)
		return
	}

	unavailable := isAPI && apiErr.IsServiceUnavailable()
	msg := prefix + ": " + errorMessage(err)
	if unavailable {
		msg = errorMessage(err)
		if msg == "" {
			msg = msgUnavailable
		}
	}

	c.mu.Lock()
	c.state.Status = StatusError
	c.state.Previous = previous
	c.state.ErrorMessage = msg
	c.state.ServiceUnavailable = unavailable
	c.mu.Unlock()

	if unavailable {
		c.view.ShowServiceUnavailable(msg)
		return
	}
	c.view.Notify(LevelError, msg)
}

// structuralMismatch は想定外のレスポンスを汎用エラーとして扱い、ファイルを破棄する
func (c *Controller) structuralMismatch(detail string) {
	log.Printf("❌ [dashboard] 想定外のレスポンス: %s", detail)
	c.view.Notify(LevelError, msgGenericError)
	c.RemoveFile()
}

func errorMessage(err error) string {
	if apiErr, ok := client.AsAPIError(err); ok {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}
	return err.Error()
}

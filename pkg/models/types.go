package models

// User はセッションに保持されるユーザー情報
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// DisplayName は画面表示用の名前を返す
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// LoginRequest represents an incoming login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login
type LoginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	User     *User  `json:"user,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// LogoutResponse is returned by POST /auth/logout
type LogoutResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// SessionStatus is returned by GET /auth/check-session
type SessionStatus struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

// Preview はアップロードされたシートのプレビュー（列順を保持）
type Preview struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Statistics は「Prethodna 24h」列の基本統計量
type Statistics struct {
	TotalRows        int     `json:"totalRows"`
	TotalColumns     int     `json:"totalColumns"`
	AvgConsumption   float64 `json:"avgConsumption"`
	PeakConsumption  float64 `json:"peakConsumption"`
	MinConsumption   float64 `json:"minConsumption"`
	TotalConsumption float64 `json:"totalConsumption"`
}

// UploadData is the payload of a successful POST /api/upload
type UploadData struct {
	FileID     string     `json:"fileId"`
	FileName   string     `json:"fileName"`
	Preview    Preview    `json:"preview"`
	Statistics Statistics `json:"statistics"`
}

// PredictRequest is the body of POST /api/predict
type PredictRequest struct {
	FileID           string   `json:"fileId"`
	PredictionPeriod int      `json:"predictionPeriod,omitempty"`
	PredictionType   string   `json:"predictionType,omitempty"`
	ModelTypes       []string `json:"modelTypes,omitempty"`
}

// ModelPrediction はモデル1つ分の予測値と信頼区間
type ModelPrediction struct {
	Values         []float64 `json:"values"`
	ConfidenceMin  []float64 `json:"confidence_min"`
	ConfidenceMax  []float64 `json:"confidence_max"`
	ProcessingTime float64   `json:"processing_time"`
}

// PredictionResult は時間帯（0-23）ごとの予測結果
type PredictionResult struct {
	PredictionID        string                     `json:"predictionId"`
	Hours               []string                   `json:"hours"`
	Historical          []*float64                 `json:"historical"`
	ModelTypes          []string                   `json:"modelTypes"`
	Predictions         map[string]ModelPrediction `json:"predictions"`
	StartHour           int                        `json:"startHour"`
	PredictionPeriod    int                        `json:"predictionPeriod,omitempty"`
	PredictionType      string                     `json:"predictionType,omitempty"`
	TotalProcessingTime float64                    `json:"totalProcessingTime"`
	ServiceStatus       string                     `json:"serviceStatus,omitempty"`
}

// ExportRequest is the body of POST /api/export
type ExportRequest struct {
	Data   *PredictionResult `json:"data"`
	Format string            `json:"format,omitempty"`
}

// ExportFile はダウンロード用に生成されたファイル
type ExportFile struct {
	Name string
	Data []byte
}

// 予測モデルの種類
const (
	ModelNBeats    = "nbeats"
	ModelCNNNBeats = "cnn-nbeats"
	ModelNBeatsCNN = "nbeats-cnn"
)

// エクスポート形式
const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatPDF   = "pdf"
)

// HoursPerDay は予測対象の時間数
const HoursPerDay = 24

// Float はfloat64のポインタを返すヘルパー
func Float(v float64) *float64 {
	return &v
}

// APIResponse はJSON APIの共通エンベロープ
type APIResponse[T any] struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Data          T      `json:"data,omitempty"`
	ServiceStatus string `json:"service_status,omitempty"`
}

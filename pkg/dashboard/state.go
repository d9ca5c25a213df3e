package dashboard

import "energenius/pkg/models"

// Status はアップロードと予測の進行状態
type Status int

const (
	StatusEmpty Status = iota
	StatusUploading
	StatusUploaded
	StatusPredicting
	StatusResultsShown
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusUploading:
		return "uploading"
	case StatusUploaded:
		return "uploaded"
	case StatusPredicting:
		return "predicting"
	case StatusResultsShown:
		return "results-shown"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// ViewMode は結果の表示形式
type ViewMode int

const (
	ViewChart ViewMode = iota
	ViewTable
)

func (m ViewMode) String() string {
	if m == ViewTable {
		return "table"
	}
	return "chart"
}

// ParseViewMode は "chart" / "table" を変換する
func ParseViewMode(s string) (ViewMode, bool) {
	switch s {
	case "chart":
		return ViewChart, true
	case "table":
		return ViewTable, true
	}
	return ViewChart, false
}

// Level は通知の重要度
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "info"
}

// State はダッシュボードの状態のスナップショット
type State struct {
	Status Status
	// Previous はエラー状態に入る前の状態。エラーを閉じるとここへ戻る。
	Previous Status

	User     *models.User
	FileName string
	FileID   string
	Upload   *models.UploadData

	Period int
	Models []string

	Result   *models.PredictionResult
	ViewMode ViewMode

	ErrorMessage       string
	ServiceUnavailable bool
	InFlight           bool
}

// Effective はエラー状態なら直前の状態を、そうでなければ現在の状態を返す
func (s State) Effective() Status {
	if s.Status == StatusError {
		return s.Previous
	}
	return s.Status
}

func (s State) clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	out.Models = append([]string(nil), s.Models...)
	return out
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"energenius/pkg/models"

	"github.com/google/uuid"
)

// 信頼区間の幅（予測値に対する比率）
const (
	confidenceLowerRatio = 0.97
	confidenceUpperRatio = 1.03
)

var (
	// ErrNoModels はモデルが1つも指定されていない場合に返される
	ErrNoModels = errors.New("At least one model must be selected")
	// ErrServiceUnavailable はML APIがヘルスチェックに応答しない場合に返される
	ErrServiceUnavailable = errors.New("ML prediction service is currently unavailable. Please try again later.")
)

// InvalidInputError はファイル内容がモデル入力に変換できない場合のエラー
type InvalidInputError struct {
	Err error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("Failed to prepare data for ML model: %v", e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// ModelError は個別モデルの予測に失敗した場合のエラー
type ModelError struct {
	ModelType string
	Err       error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("ML prediction failed for %s: %v", e.ModelType, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Predictor は予測モデルAPIの抽象
type Predictor interface {
	HealthCheck(ctx context.Context) bool
	Predict(ctx context.Context, matrix [][]float64, modelType string) (*MLPrediction, error)
}

// ForecastService 電力消費予測サービス
type ForecastService struct {
	uploads   *UploadStore
	predictor Predictor
}

// NewForecastService 新しい予測サービスを作成
func NewForecastService(uploads *UploadStore, predictor Predictor) *ForecastService {
	return &ForecastService{
		uploads:   uploads,
		predictor: predictor,
	}
}

// Predict はアップロード済みファイルから各モデルの24時間予測を作る
func (fs *ForecastService) Predict(ctx context.Context, req models.PredictRequest, userID string) (*models.PredictionResult, error) {
	if req.PredictionPeriod == 0 {
		req.PredictionPeriod = models.HoursPerDay
	}
	if req.PredictionType == "" {
		req.PredictionType = "country-level"
	}
	if req.ModelTypes == nil {
		req.ModelTypes = []string{models.ModelNBeats}
	}
	if len(req.ModelTypes) == 0 {
		return nil, ErrNoModels
	}

	meta, data, err := fs.uploads.Get(req.FileID)
	if err != nil {
		return nil, err
	}
	if meta.UserID != userID {
		return nil, ErrFileNotFound
	}

	sheet, err := ReadSheet(meta.FileName, data)
	if err != nil {
		return nil, &InvalidInputError{Err: err}
	}

	if !fs.predictor.HealthCheck(ctx) {
		return nil, ErrServiceUnavailable
	}

	matrix, err := sheet.Matrix()
	if err != nil {
		return nil, &InvalidInputError{Err: err}
	}

	predictions := make(map[string]models.ModelPrediction, len(req.ModelTypes))
	total := 0.0
	for _, modelType := range req.ModelTypes {
		result, err := fs.predictor.Predict(ctx, matrix, modelType)
		if err != nil {
			return nil, &ModelError{ModelType: modelType, Err: err}
		}
		if len(result.Forecast) != models.HoursPerDay {
			return nil, &ModelError{
				ModelType: modelType,
				Err:       fmt.Errorf("Invalid prediction length: expected %d, got %d", models.HoursPerDay, len(result.Forecast)),
			}
		}

		predictions[modelType] = withConfidence(result)
		total += result.ProcessingTime
	}

	startHour := sheet.StartHour()
	log.Printf("📈 [predict] file=%s models=%v 処理時間=%.3fs", req.FileID, req.ModelTypes, total)

	return &models.PredictionResult{
		PredictionID:        uuid.New().String(),
		Hours:               HourLabels(startHour),
		Historical:          sheet.Consumption(),
		ModelTypes:          req.ModelTypes,
		Predictions:         predictions,
		StartHour:           startHour,
		PredictionPeriod:    req.PredictionPeriod,
		PredictionType:      req.PredictionType,
		TotalProcessingTime: total,
		ServiceStatus:       "online",
	}, nil
}

func withConfidence(result *MLPrediction) models.ModelPrediction {
	lower := make([]float64, len(result.Forecast))
	upper := make([]float64, len(result.Forecast))
	for i, v := range result.Forecast {
		lower[i] = v * confidenceLowerRatio
		upper[i] = v * confidenceUpperRatio
	}
	return models.ModelPrediction{
		Values:         result.Forecast,
		ConfidenceMin:  lower,
		ConfidenceMax:  upper,
		ProcessingTime: result.ProcessingTime,
	}
}

package handlers

import (
	"errors"
	"log"
	"net/http"

	"energenius/pkg/models"
	"energenius/pkg/services"

	"github.com/gin-gonic/gin"
)

// PredictionHandler 予測とエクスポートのハンドラー
type PredictionHandler struct {
	forecastService *services.ForecastService
	exporter        *services.Exporter
}

// NewPredictionHandler 新しい予測ハンドラーを作成
func NewPredictionHandler(forecastService *services.ForecastService, exporter *services.Exporter) *PredictionHandler {
	return &PredictionHandler{
		forecastService: forecastService,
		exporter:        exporter,
	}
}

// Predict 予測を実行
func (ph *PredictionHandler) Predict(c *gin.Context) {
	var request models.PredictRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request: " + err.Error()})
		return
	}
	if request.FileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": services.ErrFileNotFound.Error()})
		return
	}
	for _, modelType := range request.ModelTypes {
		if !services.IsKnownModel(modelType) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Unknown model type: " + modelType})
			return
		}
	}

	result, err := ph.forecastService.Predict(c.Request.Context(), request, currentUser(c).Username)
	if err != nil {
		ph.respondPredictError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse[*models.PredictionResult]{
		Success: true,
		Data:    result,
	})
}

func (ph *PredictionHandler) respondPredictError(c *gin.Context, err error) {
	var inputErr *services.InvalidInputError
	var modelErr *services.ModelError

	switch {
	case errors.Is(err, services.ErrFileNotFound), errors.Is(err, services.ErrNoModels):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, services.ErrServiceUnavailable):
		log.Printf("⚠️ [predict] ML APIが利用できません")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success":        false,
			"message":        err.Error(),
			"service_status": "offline",
		})
	case errors.As(err, &inputErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.As(err, &modelErr):
		log.Printf("❌ [predict] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":        false,
			"message":        err.Error(),
			"service_status": "error",
		})
	default:
		log.Printf("❌ [predict] 予測に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":        false,
			"message":        "Prediction failed: " + err.Error(),
			"service_status": "error",
		})
	}
}

// Export 予測結果をファイルとして返す
func (ph *PredictionHandler) Export(c *gin.Context) {
	var request models.ExportRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request: " + err.Error()})
		return
	}
	if request.Data == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": services.ErrNoExportData.Error()})
		return
	}

	file, err := ph.exporter.Export(request.Data, request.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Export failed: " + err.Error()})
		return
	}

	log.Printf("💾 [export] %s (%s)", file.Name, formatFileSize(int64(len(file.Data))))
	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, "application/octet-stream", file.Data)
}

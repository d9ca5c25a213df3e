package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMonitoringMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := NewMonitoringService()

	r := gin.New()
	r.Use(service.LoggingMiddleware())
	r.GET("/api/upload", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/predict", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/api/export", func(c *gin.Context) { c.Status(http.StatusTooManyRequests) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/upload", "/api/upload", "/api/predict", "/api/export", "/health"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
	}

	data := service.GetDashboardData(1)
	assert.Equal(t, 2, data.Endpoints["/api/upload"])
	assert.Equal(t, 1, data.Endpoints["/api/predict"])
	assert.NotContains(t, data.Endpoints, "/health")
	assert.Len(t, data.RecentErrors, 1)
	assert.Len(t, data.RequestsOverTime, 1)
	assert.Equal(t, 4, data.RequestsOverTime[0].Requests)

	assert.Equal(t, Activity{Uploads: 2, RateLimited: 1}, data.Activity)
	assert.Equal(t, []StatusCount{
		{Name: "2xx Success", Value: 2},
		{Name: "4xx Client Error", Value: 0},
		{Name: "429 Rate Limited", Value: 1},
		{Name: "5xx Server Error", Value: 1},
	}, data.StatusCodes)
	assert.Len(t, data.AvgResponseTimes, 3)
	assert.Equal(t, "/api/export", data.AvgResponseTimes[0].Endpoint)
}

func TestMonitoringIgnoresOldEntries(t *testing.T) {
	service := NewMonitoringService()
	now := time.Now()
	service.LogRequest(LogEntry{Timestamp: now.Add(-3 * time.Hour), Path: "/api/upload", StatusCode: 200})
	service.LogRequest(LogEntry{Timestamp: now, Path: "/auth/login", StatusCode: 401})

	data := service.GetDashboardData(1)
	assert.NotContains(t, data.Endpoints, "/api/upload")
	assert.Equal(t, 1, data.Activity.FailedLogins)

	data = service.GetDashboardData(24)
	assert.Len(t, data.RequestsOverTime, 24)
	assert.Equal(t, 1, data.Endpoints["/api/upload"])
	assert.Equal(t, 1, data.RequestsOverTime[23].Requests)
}

func TestMonitoringServiceCapsLogs(t *testing.T) {
	service := NewMonitoringService()
	now := time.Now()
	for i := 0; i < maxLogEntries+5; i++ {
		service.LogRequest(LogEntry{Timestamp: now, Path: "/api/upload", StatusCode: 200})
	}
	assert.Len(t, service.logs, maxLogEntries)
}

func TestLogEntryJSON(t *testing.T) {
	entry := LogEntry{
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Path:         "/api/predict",
		Method:       "POST",
		StatusCode:   503,
		ResponseTime: 1500 * time.Millisecond,
	}
	data, err := json.Marshal(DashboardData{RecentErrors: []LogEntry{entry}})
	assert.NoError(t, err)

	var decoded struct {
		RecentErrors []map[string]interface{} `json:"recentErrors"`
	}
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]interface{}{
		"timestamp":    "2024-05-01T12:00:00Z",
		"path":         "/api/predict",
		"method":       "POST",
		"statusCode":   float64(503),
		"responseTime": float64(1500),
	}, decoded.RecentErrors[0])
}

package services

import (
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"-"`
}

// MarshalJSON は応答時間をミリ秒で出力する
func (e LogEntry) MarshalJSON() ([]byte, error) {
	type entry LogEntry
	return json.Marshal(struct {
		entry
		ResponseTime int64 `json:"responseTime"`
	}{entry(e), e.ResponseTime.Milliseconds()})
}

// maxLogEntries は保持するリクエストログの上限
const maxLogEntries = 10000

// MonitoringService はAPIのモニタリング機能を提供します。
type MonitoringService struct {
	logs     []LogEntry
	mu       sync.RWMutex
	location *time.Location
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		logs:     make([]LogEntry, 0),
		location: time.Local,
	}
}

// LogRequest はリクエストを記録します。上限を超えた古いログは捨てます。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if over := len(s.logs) - maxLogEntries; over > 0 {
		s.logs = append(s.logs[:0:0], s.logs[over:]...)
	}
}

// excludedPrefixes は記録対象外のパス
var excludedPrefixes = []string{"/api/admin", "/api/monitoring", "/health"}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		path := c.Request.URL.Path
		for _, prefix := range excludedPrefixes {
			if strings.HasPrefix(path, prefix) {
				return
			}
		}

		// リクエスト情報を記録
		entry := LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		}
		s.LogRequest(entry)

		if entry.StatusCode >= 500 {
			log.Printf("❌ [%s %s] status=%d %v", entry.Method, path, entry.StatusCode, entry.ResponseTime)
		}
	}
}

// HourlyCount は1時間あたりのリクエスト数
type HourlyCount struct {
	Time     string `json:"time"`
	Requests int    `json:"requests"`
}

// StatusCount はステータス区分ごとの件数
type StatusCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// EndpointLatency はエンドポイントごとの平均応答時間（ミリ秒）
type EndpointLatency struct {
	Endpoint     string `json:"endpoint"`
	ResponseTime int64  `json:"responseTime"`
}

// Activity はアップロードや予測など業務操作の件数
type Activity struct {
	Logins       int `json:"logins"`
	FailedLogins int `json:"failedLogins"`
	Uploads      int `json:"uploads"`
	Predictions  int `json:"predictions"`
	Exports      int `json:"exports"`
	RateLimited  int `json:"rateLimited"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []HourlyCount     `json:"requestsOverTime"`
	Endpoints        map[string]int    `json:"endpoints"`
	StatusCodes      []StatusCount     `json:"statusCodes"`
	AvgResponseTimes []EndpointLatency `json:"avgResponseTimes"`
	Activity         Activity          `json:"activity"`
	RecentErrors     []LogEntry        `json:"recentErrors"`
}

// ステータス区分（表示順）
const (
	statusSuccess     = "2xx Success"
	statusClientError = "4xx Client Error"
	statusRateLimited = "429 Rate Limited"
	statusServerError = "5xx Server Error"
)

const maxRecentErrors = 10

func statusClass(code int) string {
	switch {
	case code == 429:
		return statusRateLimited
	case code >= 500:
		return statusServerError
	case code >= 400:
		return statusClientError
	case code >= 200 && code < 300:
		return statusSuccess
	}
	return ""
}

func (a *Activity) count(entry LogEntry) {
	ok := entry.StatusCode >= 200 && entry.StatusCode < 300
	switch entry.Path {
	case "/auth/login":
		if ok {
			a.Logins++
		} else if entry.StatusCode == 401 {
			a.FailedLogins++
		}
	case "/api/upload":
		if ok {
			a.Uploads++
		}
	case "/api/predict":
		if ok {
			a.Predictions++
		}
	case "/api/export":
		if ok {
			a.Exports++
		}
	}
	if entry.StatusCode == 429 {
		a.RateLimited++
	}
}

// GetDashboardData は直近periodHours時間のログを時間帯・エンドポイント・ステータス別に集計します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 24
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().In(s.location)
	// 最も古いバケットの開始時刻
	first := now.Truncate(time.Hour).Add(-time.Duration(periodHours-1) * time.Hour)

	hourly := make([]HourlyCount, periodHours)
	for i := range hourly {
		hourly[i].Time = first.Add(time.Duration(i) * time.Hour).Format("15:00")
	}

	data := DashboardData{
		RequestsOverTime: hourly,
		Endpoints:        make(map[string]int),
		RecentErrors:     make([]LogEntry, 0),
	}
	statuses := map[string]int{}
	latency := map[string]time.Duration{}

	for i := len(s.logs) - 1; i >= 0; i-- {
		entry := s.logs[i]
		ts := entry.Timestamp.In(s.location)
		if ts.Before(first) {
			continue
		}
		if bucket := int(ts.Sub(first) / time.Hour); bucket < periodHours {
			hourly[bucket].Requests++
		}

		data.Endpoints[entry.Path]++
		latency[entry.Path] += entry.ResponseTime
		if class := statusClass(entry.StatusCode); class != "" {
			statuses[class]++
		}
		data.Activity.count(entry)

		if entry.StatusCode >= 500 && len(data.RecentErrors) < maxRecentErrors {
			data.RecentErrors = append(data.RecentErrors, entry)
		}
	}

	for _, name := range []string{statusSuccess, statusClientError, statusRateLimited, statusServerError} {
		data.StatusCodes = append(data.StatusCodes, StatusCount{Name: name, Value: statuses[name]})
	}

	paths := make([]string, 0, len(latency))
	for path := range latency {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		avg := latency[path].Milliseconds() / int64(data.Endpoints[path])
		data.AvgResponseTimes = append(data.AvgResponseTimes, EndpointLatency{Endpoint: path, ResponseTime: avg})
	}

	return data
}

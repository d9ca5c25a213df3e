package handlers

import (
	"net/http"
	"time"

	config "energenius/configs"
	"energenius/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps はルーターが利用するサービス群
type Deps struct {
	Users      services.UserStore
	Sessions   *services.SessionService
	Uploads    *services.UploadStore
	Predictor  services.Predictor
	Monitoring *services.MonitoringService
	Exporter   *services.Exporter
	RateLimits *RateLimits
}

// SetupRouter はGinエンジンにミドルウェアとルートを登録します。
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if deps.Monitoring == nil {
		deps.Monitoring = services.NewMonitoringService()
	}
	if deps.Exporter == nil {
		deps.Exporter = services.NewExporter()
	}
	limits := RateLimits{}
	if cfg.RateLimitEnabled {
		if deps.RateLimits != nil {
			limits = *deps.RateLimits
		} else {
			limits = DefaultRateLimits()
		}
	}

	r := gin.Default()

	// ハンドラーの初期化
	authHandler := NewAuthHandler(deps.Users, deps.Sessions, cfg.Environment == "production")
	pagesHandler := NewPagesHandler(cfg.FrontendDir, authHandler)
	uploadHandler := NewUploadHandler(deps.Uploads, cfg.MaxUploadBytes)
	predictionHandler := NewPredictionHandler(services.NewForecastService(deps.Uploads, deps.Predictor), deps.Exporter)
	adminHandler := NewAdminHandler(cfg, deps.Users, deps.Predictor)
	monitoringHandler := NewMonitoringHandler(deps.Monitoring)

	// ミドルウェアの登録
	r.Use(deps.Monitoring.LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(adminHandler.MaintenanceGuard())

	// ヘルスチェックエンドポイント
	r.GET("/health", adminHandler.HealthCheck)

	// 画面
	r.GET("/", pagesHandler.Index)
	r.GET("/index.html", pagesHandler.Index)
	r.GET("/dashboard.html", pagesHandler.Dashboard)

	// 認証API
	auth := r.Group("/auth")
	{
		auth.POST("/login", RateLimit(limits.Login), authHandler.Login)
		auth.POST("/logout", RateLimit(limits.Logout), authHandler.Logout)
		auth.GET("/check-session", RateLimit(limits.CheckSession), authHandler.CheckSession)
	}

	// 予測API
	api := r.Group("/api")
	{
		protected := api.Group("")
		protected.Use(authHandler.RequireSession())
		{
			protected.POST("/upload", RateLimit(limits.Upload), uploadHandler.Upload)
			protected.POST("/predict", RateLimit(limits.Predict), predictionHandler.Predict)
			protected.POST("/export", RateLimit(limits.Export), predictionHandler.Export)
		}

		// 管理者向けAPI
		admin := api.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// モニタリングAPI
		monitoring := api.Group("/monitoring")
		monitoring.Use(authHandler.RequireSession())
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	r.NoRoute(pagesHandler.Static)

	return r
}

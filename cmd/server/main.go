package main

import (
	"context"
	"log"
	"time"

	config "energenius/configs"
	"energenius/pkg/handlers"
	"energenius/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r, cleanup, err := newApp(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer cleanup()

	log.Printf("Starting Energenius server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// newApp はサービスを初期化してルーターを組み立てます。
func newApp(ctx context.Context, cfg *config.Config) (*gin.Engine, func(), error) {
	// サービスの初期化
	users, closeUsers, err := services.OpenUserStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if n, err := users.Count(ctx); err == nil && n == 0 {
		log.Printf("⚠️ ユーザーが登録されていません。cmd/createuser で追加してください")
	}

	uploads := services.NewUploadStore(cfg.UploadTTL)
	if err := uploads.StartCleanup(time.Minute); err != nil {
		closeUsers()
		return nil, nil, err
	}

	r := handlers.SetupRouter(cfg, handlers.Deps{
		Users:      users,
		Sessions:   services.NewSessionService(cfg.SecretKey, cfg.SessionTTL),
		Uploads:    uploads,
		Predictor:  services.NewMLClient(cfg.MLAPIBaseURL, cfg.MLAPITimeout),
		Monitoring: services.NewMonitoringService(),
	})

	cleanup := func() {
		uploads.StopCleanup()
		if err := closeUsers(); err != nil {
			log.Printf("Warning: failed to close user store: %v", err)
		}
	}
	return r, cleanup, nil
}

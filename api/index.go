package handler

import (
	"context"
	"log"
	"net/http"
	"sync"

	config "energenius/configs"
	"energenius/pkg/handlers"
	"energenius/pkg/services"

	"github.com/gin-gonic/gin"
)

var (
	app     *gin.Engine
	initErr error
	once    sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() (*gin.Engine, error) {
	once.Do(func() {
		log.Printf("🟢 [setupApp] Initializing Gin application")

		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()

		users, _, err := services.OpenUserStore(context.Background(), cfg)
		if err != nil {
			log.Printf("FATAL: Failed to open user store in Vercel function: %v", err)
			initErr = err
			return
		}

		// 関数インスタンスは短命なので期限切れアップロードの定期掃除は行わない
		app = handlers.SetupRouter(cfg, handlers.Deps{
			Users:      users,
			Sessions:   services.NewSessionService(cfg.SecretKey, cfg.SessionTTL),
			Uploads:    services.NewUploadStore(cfg.UploadTTL),
			Predictor:  services.NewMLClient(cfg.MLAPIBaseURL, cfg.MLAPITimeout),
			Monitoring: services.NewMonitoringService(),
		})
	})
	return app, initErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	app, err := setupApp()
	if err != nil {
		http.Error(w, `{"success":false,"message":"Service initialization failed"}`, http.StatusInternalServerError)
		return
	}
	app.ServeHTTP(w, r)
}

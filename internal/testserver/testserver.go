// Package testserver は本物のルーターと疑似ML APIでバックエンドを起動するテスト用ヘルパーです。
package testserver

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	config "energenius/configs"
	"energenius/internal/fixtures"
	"energenius/pkg/handlers"
	"energenius/pkg/services"

	"github.com/gin-gonic/gin"
)

// テストユーザー
const (
	Username = "ana.test"
	Password = "secret123"
	Name     = "Ana Test"
)

// Backend は起動済みのテスト用バックエンド
type Backend struct {
	*httptest.Server

	Config  *config.Config
	ML      *fixtures.MLServer
	Users   *services.FileUserStore
	Uploads *services.UploadStore
}

// Option はバックエンド設定を変更する
type Option func(*config.Config)

// WithRateLimit はレート制限を有効にする
func WithRateLimit() Option {
	return func(cfg *config.Config) { cfg.RateLimitEnabled = true }
}

// WithMaxUploadBytes はアップロード上限を変更する
func WithMaxUploadBytes(n int64) Option {
	return func(cfg *config.Config) { cfg.MaxUploadBytes = n }
}

// WithFrontendDir は静的ファイルのディレクトリを変更する
func WithFrontendDir(dir string) Option {
	return func(cfg *config.Config) { cfg.FrontendDir = dir }
}

// New はテストユーザーを1人登録したバックエンドを起動します。
func New(t testing.TB, opts ...Option) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ml := fixtures.NewMLServer(t)
	dir := t.TempDir()

	cfg := &config.Config{
		Environment:    "test",
		SecretKey:      "test-secret",
		SessionTTL:     time.Hour,
		MaxUploadBytes: 10 << 20,
		UploadTTL:      time.Hour,
		UsersFile:      filepath.Join(dir, "users.yaml"),
		MLAPIBaseURL:   ml.URL,
		MLAPITimeout:   5 * time.Second,
		CORSOrigins:    []string{"http://localhost:3000"},
		AdminUsername:  "admin",
		AdminPassword:  "admin-pass",
		FrontendDir:    dir,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	users, err := services.NewFileUserStore(cfg.UsersFile)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := users.Create(context.Background(), services.NewUser{
		Username: Username,
		Email:    "ana@example.com",
		Name:     Name,
		Password: Password,
	}); err != nil {
		t.Fatal(err)
	}

	uploads := services.NewUploadStore(cfg.UploadTTL)
	r := handlers.SetupRouter(cfg, handlers.Deps{
		Users:     users,
		Sessions:  services.NewSessionService(cfg.SecretKey, cfg.SessionTTL),
		Uploads:   uploads,
		Predictor: services.NewMLClient(cfg.MLAPIBaseURL, cfg.MLAPITimeout),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &Backend{
		Server:  srv,
		Config:  cfg,
		ML:      ml,
		Users:   users,
		Uploads: uploads,
	}
}

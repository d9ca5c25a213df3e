package handlers

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	config "energenius/configs"
	"energenius/pkg/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler は管理者向け操作とヘルスチェックのハンドラです。
// メンテナンスモード中は/healthと/api配下が503を返します。
type AdminHandler struct {
	adminUsername string
	adminPassword string
	maintenance   atomic.Bool

	users     services.UserStore
	predictor services.Predictor
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config, users services.UserStore, predictor services.Predictor) *AdminHandler {
	return &AdminHandler{
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		users:         users,
		predictor:     predictor,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(true)
	log.Printf("🚧 [admin] メンテナンスモードを開始しました")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Maintenance mode started"})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(false)
	log.Printf("✅ [admin] メンテナンスモードを停止しました")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Maintenance mode stopped"})
}

// GetHealthStatus は現在のメンテナンス状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isMaintenanceMode": h.maintenance.Load()})
}

// authorize は管理者資格情報を検証し、失敗時はレスポンスを書き込んでfalseを返す
func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Username and password are required"})
		return false
	}
	// パスワード未設定なら管理APIは常に拒否
	if h.adminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.adminUsername)) != 1 ||
		subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.adminPassword)) != 1 {
		log.Printf("🔒 [admin] 管理者認証に失敗: %s", input.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
		return false
	}
	return true
}

// MaintenanceGuard はメンテナンス中のAPIリクエストを503で拒否します。管理APIは除外します。
func (h *AdminHandler) MaintenanceGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if h.maintenance.Load() && strings.HasPrefix(path, "/api/") && !strings.HasPrefix(path, "/api/admin") {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"message": "Server is in maintenance mode",
			})
			return
		}
		c.Next()
	}
}

// HealthCheck はロードバランサーなどからのヘルスチェックに応答します。
// ユーザーストアとML APIの状態も併せて返します。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	if h.maintenance.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	users := -1
	if n, err := h.users.Count(ctx); err == nil {
		users = n
	} else {
		log.Printf("⚠️ [health] ユーザー数の取得に失敗: %v", err)
	}

	mlStatus := "offline"
	if h.predictor.HealthCheck(ctx) {
		mlStatus = "online"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"users":      users,
		"session":    "jwt-cookie",
		"ml_service": mlStatus,
	})
}

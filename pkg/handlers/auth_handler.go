package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"energenius/pkg/models"
	"energenius/pkg/services"

	"github.com/gin-gonic/gin"
)

// contextUserKey はgin.Contextにユーザー情報を保存するキー
const contextUserKey = "user"

// 画面遷移先
const (
	DashboardPath = "/dashboard.html"
	LoginPath     = "/index.html"
)

// AuthHandler はログイン・ログアウト・セッション確認のハンドラです。
type AuthHandler struct {
	users        services.UserStore
	sessions     *services.SessionService
	secureCookie bool
}

// NewAuthHandler は新しいAuthHandlerを生成します。
func NewAuthHandler(users services.UserStore, sessions *services.SessionService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		sessions:     sessions,
		secureCookie: secureCookie,
	}
}

// Login はユーザー名とパスワードを検証し、セッションCookieを発行します。
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Username and password are required"})
		return
	}

	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Username and password are required"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), username, input.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		log.Printf("🔒 [auth] ログイン失敗: %s", username)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": services.ErrInvalidCredentials.Error()})
		return
	}
	if err != nil {
		log.Printf("❌ [auth] 認証処理でエラー: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "An error occurred during login"})
		return
	}

	token, err := h.sessions.Issue(*user)
	if err != nil {
		log.Printf("❌ [auth] セッション発行に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "An error occurred during login"})
		return
	}
	h.setSessionCookie(c, token, int(h.sessions.TTL().Seconds()))

	log.Printf("✅ [auth] ログイン成功: %s", user.Username)
	c.JSON(http.StatusOK, models.LoginResponse{
		Success:  true,
		Message:  "Login successful",
		User:     user,
		Redirect: DashboardPath,
	})
}

// Logout はセッションCookieを削除します。
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, models.LogoutResponse{
		Success:  true,
		Message:  "Logged out successfully",
		Redirect: LoginPath,
	})
}

// CheckSession は現在のセッション状態を返します。
func (h *AuthHandler) CheckSession(c *gin.Context) {
	user, ok := h.sessionUser(c)
	if !ok {
		c.JSON(http.StatusOK, models.SessionStatus{Authenticated: false})
		return
	}
	c.JSON(http.StatusOK, models.SessionStatus{Authenticated: true, User: user})
}

// RequireSession はセッションのないAPIリクエストを401で拒否するミドルウェアです。
func (h *AuthHandler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := h.sessionUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authenticated"})
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

func (h *AuthHandler) sessionUser(c *gin.Context) (*models.User, bool) {
	token, err := c.Cookie(services.SessionCookieName)
	if err != nil || token == "" {
		return nil, false
	}
	user, err := h.sessions.Parse(token)
	if err != nil {
		return nil, false
	}
	return user, true
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(services.SessionCookieName, value, maxAge, "/", "", h.secureCookie, true)
}

// currentUser はRequireSessionが保存したユーザーを取り出す
func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(contextUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

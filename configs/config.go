package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Port             string
	Environment      string
	SecretKey        string
	SessionTTL       time.Duration
	MaxUploadBytes   int64
	UploadTTL        time.Duration
	UsersFile        string
	DatabaseDSN      string
	MLAPIBaseURL     string
	MLAPITimeout     time.Duration
	CORSOrigins      []string
	AdminUsername    string
	AdminPassword    string
	FrontendDir      string
	RateLimitEnabled bool
}

// DefaultCORSOrigins はローカル開発用に許可するオリジン
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://localhost:8080",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	origins := DefaultCORSOrigins
	if raw := getEnv("CORS_ORIGINS", ""); raw != "" {
		origins = splitList(raw)
	}
	if domain := getEnv("PRODUCTION_DOMAIN", ""); domain != "" && getEnv("ENVIRONMENT", "development") == "production" {
		origins = append(origins, "https://"+domain)
	}

	return &Config{
		Port:             getEnv("PORT", "5050"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		SecretKey:        getEnv("SECRET_KEY", "electricity-prediction-secret-key-2024"),
		SessionTTL:       getEnvDuration("SESSION_TTL", 12*time.Hour),
		MaxUploadBytes:   getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		UploadTTL:        getEnvDuration("UPLOAD_TTL", time.Hour),
		UsersFile:        getEnv("USERS_FILE", "configs/users.yaml"),
		DatabaseDSN:      getEnv("DATABASE_DSN", ""),
		MLAPIBaseURL:     getEnv("ML_API_BASE_URL", "http://localhost:8000"),
		MLAPITimeout:     time.Duration(getEnvInt64("ML_API_TIMEOUT", 30)) * time.Second,
		CORSOrigins:      origins,
		AdminUsername:    getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		FrontendDir:      getEnv("FRONTEND_DIR", "frontend"),
		RateLimitEnabled: getEnv("RATE_LIMIT_ENABLED", "true") != "false",
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration は "90s" や "2h" 形式の値を読む
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

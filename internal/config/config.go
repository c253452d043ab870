// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Session
	SessionSecret string
	SessionTTL    time.Duration

	// Baserow
	BaserowAPIURL       string
	BaserowAPIKey       string
	BaserowUsersTableID string
	BaserowImagesTableID string
	BaserowMediaHost    string

	// Upstream
	UpstreamTimeout time.Duration

	// Upload
	MaxUploadSize int64

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAuth    int
	RateLimitUpload  int

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string
	StaticDir   string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は欠落している変数名の一覧を含むエラーを返す。
// 署名鍵を含むどの必須設定にもデフォルト値へのフォールバックは行わない。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaserowAPIURL = os.Getenv("BASEROW_API_URL")
	if cfg.BaserowAPIURL == "" {
		missing = append(missing, "BASEROW_API_URL")
	}

	cfg.BaserowAPIKey = os.Getenv("BASEROW_API_KEY")
	if cfg.BaserowAPIKey == "" {
		missing = append(missing, "BASEROW_API_KEY")
	}

	cfg.BaserowUsersTableID = os.Getenv("BASEROW_USERS_TABLE_ID")
	if cfg.BaserowUsersTableID == "" {
		missing = append(missing, "BASEROW_USERS_TABLE_ID")
	}

	cfg.BaserowImagesTableID = os.Getenv("BASEROW_IMAGES_TABLE_ID")
	if cfg.BaserowImagesTableID == "" {
		missing = append(missing, "BASEROW_IMAGES_TABLE_ID")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 7*24*time.Hour)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 4718592) // Baserow無料プランの上限5MBより少し下
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.StaticDir = getEnvString("STATIC_DIR", "./web")
	cfg.BaserowMediaHost = getEnvString("BASEROW_MEDIA_HOST", "")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

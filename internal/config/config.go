package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 署名者名の抽出方式
const (
	ExtractionAI      = "ai"
	ExtractionSection = "section"
	ExtractionPattern = "pattern"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// MongoDB
	MongoURL      string
	MongoDatabase string

	// Redis
	RedisURL   string
	SessionTTL time.Duration

	// WeSignature
	WeSignatureBaseURL string
	ProviderTimeout    time.Duration
	UploadMaxSize      int64

	// Gemini (Vertex AI)
	GCPProjectID   string
	VertexAIRegion string
	GeminiModel    string

	// 署名者抽出
	NameExtractionStrategy string

	// アーカイブ（任意）
	GCSArchiveBucket string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitAI      int

	// Logging
	LogLevel string

	// Server
	ServerPort  string
	FrontendURL string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// AIEnabled はGeminiクライアントを構成できるかを返す。
func (c *Config) AIEnabled() bool {
	return c.GCPProjectID != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.MongoURL = os.Getenv("MONGO_URL")
	if cfg.MongoURL == "" {
		missing = append(missing, "MONGO_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	cfg.FrontendURL = os.Getenv("FRONTEND_URL")
	if cfg.FrontendURL == "" {
		missing = append(missing, "FRONTEND_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.MongoDatabase = getEnvString("MONGO_DATABASE", "signbridge")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.WeSignatureBaseURL = strings.TrimRight(getEnvString("WESIGNATURE_BASE_URL", "https://app.wesignature.com"), "/")
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second)
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 20<<20)
	cfg.GCPProjectID = getEnvString("GCP_PROJECT_ID", "")
	cfg.VertexAIRegion = getEnvString("VERTEX_AI_REGION", "us-central1")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-1.5-flash")
	cfg.NameExtractionStrategy = strings.ToLower(getEnvString("NAME_EXTRACTION_STRATEGY", ExtractionSection))
	cfg.GCSArchiveBucket = getEnvString("GCS_ARCHIVE_BUCKET", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAI = getEnvInt("RATE_LIMIT_AI", 20)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", strings.HasPrefix(cfg.FrontendURL, "https://"))
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	switch cfg.NameExtractionStrategy {
	case ExtractionSection, ExtractionPattern:
	case ExtractionAI:
		if !cfg.AIEnabled() {
			return nil, fmt.Errorf("NAME_EXTRACTION_STRATEGY=ai requires GCP_PROJECT_ID")
		}
	default:
		return nil, fmt.Errorf("unknown NAME_EXTRACTION_STRATEGY: %q (allowed: ai, section, pattern)", cfg.NameExtractionStrategy)
	}

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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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

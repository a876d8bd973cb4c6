package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// minSecretLength はトークン署名シークレットの最小バイト数。
const minSecretLength = 16

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 各コンポーネントにはグローバル参照ではなく、この構造体から必要な値を渡す。
type Config struct {
	// Database
	DatabaseURL string
	AutoMigrate bool

	// Token
	SecretKey             string
	TokenMaxAge           time.Duration
	ApprovalTokenTTL      time.Duration
	ApprovalTokenRequired bool
	BcryptCost            int

	// Generative API
	GeminiAPIKey     string
	GeminiTextModel  string
	GeminiImageModel string
	GeminiBaseURL    string
	UpstreamTimeout  time.Duration

	// Prompt
	HistoryMaxEntries int

	// Rate Limit
	RateLimitGeneral int
	RateLimitImage   int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigins []string

	// Logging
	LogLevel string
}

// GenerationConfigured は生成APIのキーが設定されているかを返す。
func (c *Config) GenerationConfigured() bool {
	return c.GeminiAPIKey != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// GEMINI_API_KEYは必須ではない。未設定の場合、生成エンドポイントは呼び出し時に500を返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SecretKey = os.Getenv("SECRET_KEY")
	if cfg.SecretKey == "" {
		missing = append(missing, "SECRET_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.SecretKey) < minSecretLength {
		return nil, fmt.Errorf("SECRET_KEY must be at least %d bytes", minSecretLength)
	}

	// Optional fields with defaults
	cfg.AutoMigrate = getEnvBool("AUTO_MIGRATE", true)
	cfg.TokenMaxAge = getEnvDuration("TOKEN_MAX_AGE", 24*time.Hour)
	cfg.ApprovalTokenTTL = getEnvDuration("APPROVAL_TOKEN_TTL", 15*time.Minute)
	cfg.ApprovalTokenRequired = getEnvBool("APPROVAL_TOKEN_REQUIRED", false)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiTextModel = getEnvString("GEMINI_TEXT_MODEL", "gemini-2.5-flash")
	cfg.GeminiImageModel = getEnvString("GEMINI_IMAGE_MODEL", "imagen-4.0-generate-001")
	cfg.GeminiBaseURL = os.Getenv("GEMINI_BASE_URL")
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 60*time.Second)
	cfg.HistoryMaxEntries = getEnvInt("HISTORY_MAX_ENTRIES", 20)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 60)
	cfg.RateLimitImage = getEnvInt("RATE_LIMIT_IMAGE", 5)
	cfg.ServerPort = getEnvString("PORT", "5000")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

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

// getEnvList はカンマ区切りの環境変数をスライスとして読み込む。
// 空要素と末尾のスラッシュは除去する。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimRight(strings.TrimSpace(p), "/"); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

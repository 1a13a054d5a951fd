package config

import (
	"os"
	"strconv"
	"strings"

	"esign-backend/internal/shared/telemetry"
)

// DefaultMaxUploadBytes caps uploaded documents when MAX_FILE_SIZE is unset.
const DefaultMaxUploadBytes int64 = 10 << 20

// Config holds application configuration.
type Config struct {
	Port               string
	CORSAllowOrigin    []string
	ObjectStoreType    string
	LocalStoreDir      string
	AWSRegion          string
	S3Bucket           string
	S3Prefix           string
	SSEKMSKeyID        string
	DatabaseURL        string
	Env                string
	LogLevel           string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	PublicSignURL      string
	PublicLinkSecret   string
	NotifyQueueURL     string
	MaxUploadBytes     int64
	PublicRateLimitRPS float64
	PublicRateBurst    int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url_missing", map[string]any{"env": env})
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:        dbURL,
		Env:                env,
		LogLevel:           getEnv("LOG_LEVEL", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
		PublicSignURL:      getEnv("PUBLIC_SIGN_URL", "http://localhost:5173/external-sign"),
		PublicLinkSecret:   getEnv("PUBLIC_LINK_SECRET", os.Getenv("JWT_SECRET")),
		NotifyQueueURL:     getEnv("ESIGN_SQS_QUEUE_URL", ""),
		MaxUploadBytes:     getInt64("MAX_FILE_SIZE", DefaultMaxUploadBytes),
		PublicRateLimitRPS: getFloat("PUBLIC_RATE_LIMIT_RPS", 1),
		PublicRateBurst:    int(getInt64("PUBLIC_RATE_LIMIT_BURST", 10)),
	}
}

// IsDevLike reports whether the environment tolerates in-memory fallbacks.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		telemetry.Warn("config.invalid_value", map[string]any{"key": key, "value": raw, "default": def})
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		telemetry.Warn("config.invalid_value", map[string]any{"key": key, "value": raw, "default": def})
		return def
	}
	return f
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

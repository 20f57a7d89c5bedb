package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	WebSocket    WebSocketConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Upload       UploadConfig
	Cloudinary   CloudinaryConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSOrigins           string
}

// WebSocketConfig controls the real-time listener.
type WebSocketConfig struct {
	Port string
	Path string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level         string
	File          string
	MaxSizeMB     int
	MaxBackups    int
	MaxAgeDays    int
	CompressFiles bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	CookieName            string
	CookieSecure          bool
}

// UploadConfig controls where avatars land on disk.
type UploadConfig struct {
	Dir          string
	PublicPrefix string
	MaxBytes     int64
}

// CloudinaryConfig enables the hosted avatar backend when URL is set.
type CloudinaryConfig struct {
	URL    string
	Folder string
}

// RateLimitConfig holds fixed-window limits.
type RateLimitConfig struct {
	Max           int
	WindowSeconds int
	AuthMax       int
}

// NotificationConfig holds outbound notification endpoints.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
// envFiles are passed to godotenv; missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "marketplace-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSOrigins:           getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		WebSocket: WebSocketConfig{
			Port: getEnv("WS_PORT", "8081"),
			Path: getEnv("WS_PATH", "/ws"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:         getEnv("LOG_LEVEL", "info"),
			File:          os.Getenv("LOG_FILE"),
			MaxSizeMB:     getEnvAsInt("LOG_MAX_SIZE_MB", 10),
			MaxBackups:    getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays:    getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
			CompressFiles: getEnvAsBool("LOG_COMPRESS", true),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60*24),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			CookieName:            getEnv("AUTH_COOKIE_NAME", "token"),
			CookieSecure:          getEnvAsBool("AUTH_COOKIE_SECURE", false),
		},
		Upload: UploadConfig{
			Dir:          getEnv("UPLOAD_DIR", "uploads"),
			PublicPrefix: getEnv("UPLOAD_PUBLIC_PREFIX", "/uploads"),
			MaxBytes:     int64(getEnvAsInt("UPLOAD_MAX_BYTES", 2<<20)),
		},
		Cloudinary: CloudinaryConfig{
			URL:    os.Getenv("CLOUDINARY_URL"),
			Folder: getEnv("CLOUDINARY_FOLDER", "avatars"),
		},
		RateLimit: RateLimitConfig{
			Max:           getEnvAsInt("RATE_LIMIT_MAX", 300),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			AuthMax:       getEnvAsInt("RATE_LIMIT_AUTH_MAX", 20),
		},
		Notification: NotificationConfig{
			WebhookURL:            getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5),
		},
	}

	if cfg.Auth.JWTSecret == "dev-secret" && cfg.App.Env == "production" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Origins splits the comma separated CORS origin list.
func (a AppConfig) Origins() []string {
	var out []string
	for _, part := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

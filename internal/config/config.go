package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"waitlist-service/internal/pkg/jwt"
	"waitlist-service/internal/telemetry"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type AppConfig struct {
	// Server
	Env      string
	LogLevel string
	HTTPAddr string

	// Storage
	StoreBackend string
	DatabaseURL  string
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	// JWT
	JWT                jwt.Config
	SuperAdminPassword string

	// Retention
	RetentionSchedule string
	RetentionMaxAge   time.Duration

	// WebSocket
	WSMessagesPerSecond float64
	WSMessageBurst      int
	JoinLimitPerMinute  int
	AllowedOrigins      []string

	// Tracing
	Tracing telemetry.Config
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	env := getEnv("APP_ENV", "development")
	return AppConfig{
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", ":3001"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisPass:    getEnv("REDIS_PASS", ""),
		RedisDB:      getEnvInt("REDIS_DB", 0),

		JWT: jwt.Config{
			PrivPath:       getEnv("JWT_PRIVATE_KEY_PATH", "/app/secrets/jwt_private.pem"),
			PubPath:        getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/jwt_public.pem"),
			Issuer:         "waitlist-service",
			Audience:       "waitlist-staff",
			TTL:            getEnvDuration("JWT_TTL", 12*time.Hour),
			KID:            "waitlist-key",
			AllowEphemeral: env != "production",
		},
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", ""),

		RetentionSchedule: getEnv("RETENTION_SCHEDULE", "@daily"),
		RetentionMaxAge:   getEnvDuration("RETENTION_MAX_AGE", 168*time.Hour),

		WSMessagesPerSecond: getEnvFloat("WS_MESSAGES_PER_SECOND", 10),
		WSMessageBurst:      getEnvInt("WS_MESSAGE_BURST", 20),
		JoinLimitPerMinute:  getEnvInt("JOIN_LIMIT_PER_MINUTE", 10),
		AllowedOrigins:      getEnvSlice("ALLOWED_ORIGINS", nil),

		Tracing: telemetry.Config{
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}
}

// IsProduction reports whether APP_ENV is production.
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// SharedStore reports whether queue state is visible to every instance. Only
// then can peers act on each other's relay announcements.
func (c AppConfig) SharedStore() bool {
	return c.StoreBackend == BackendPostgres
}

// Validate checks combinations Load cannot catch on its own.
func (c AppConfig) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.WSMessagesPerSecond <= 0 || c.WSMessageBurst <= 0 {
		return fmt.Errorf("websocket rate limit must be positive")
	}
	if c.RetentionMaxAge <= 0 {
		return fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	return nil
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

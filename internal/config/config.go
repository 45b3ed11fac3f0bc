package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// SGP backend
	SGPBaseURL    string // API central (multipart form): contratos, titulos, extratouso...
	SGPRadiusURL  string // WS Radius (JSON body): radacct/list/all
	SGPURABaseURL string // API URA (JSON body): chamado
	SGPAppName    string // credencial estática app/token (notafiscal, radius, chamado)
	SGPAppToken   string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Chat
	GeminiAPIKey    string
	GeminiModel     string
	ConversationTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Session tokens
	JWTSecret  string
	SessionTTL time.Duration

	// SealKey protects the subscriber password inside the session token.
	// The cipher key is derived from it via SHA-256; empty falls back to
	// the JWT secret.
	SealKey string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SGPBaseURL:    getEnv("SGP_BASE_URL", "https://citrn.sgp.net.br/api/central"),
		SGPRadiusURL:  getEnv("SGP_RADIUS_URL", "https://citrn.sgp.net.br/ws/radius/radacct/list/all/"),
		SGPURABaseURL: getEnv("SGP_URA_BASE_URL", "https://citrn.sgp.net.br/api/ura"),
		SGPAppName:    getEnv("SGP_APP_NAME", ""),
		SGPAppToken:   getEnv("SGP_APP_TOKEN", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		ConversationTTL: getEnvDuration("CONVERSATION_TTL", 30*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret:  getEnv("JWT_SECRET", "central-default-dev-secret-change-me"),
		SessionTTL: getEnvDuration("SESSION_TTL", 12*time.Hour),

		SealKey: getEnv("SESSION_SEAL_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	GeoIPDBPath string
	StoragePath string

	SuperDuperBaseURL string
	SuperDuperWSURL   string
	SuperDuperToken   string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
	DefaultLocale    string

	// Tracker tuning. The defaults reproduce the production budget of the
	// polling fallback: first check 10s after request start, one check per
	// 10s, at most 6 attempts, 65s wall clock.
	TrackPollDelay       time.Duration
	TrackPollInterval    time.Duration
	TrackPollMaxAttempts int
	TrackPollWallClock   time.Duration
	HandlerLeakThreshold int
	StreamMaxReconnects  int
	SideTableTTL         time.Duration
	ProviderHTTPTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),
		StoragePath: getEnv("STORAGE_PATH", "./storage"),

		SuperDuperBaseURL: getEnv("SUPERDUPERAI_BASE_URL", "https://dev-editor.superduperai.co"),
		SuperDuperWSURL:   getEnv("SUPERDUPERAI_WS_URL", "wss://dev-editor.superduperai.co"),
		SuperDuperToken:   os.Getenv("SUPERDUPERAI_TOKEN"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),

		TrackPollDelay:       time.Second * time.Duration(getEnvInt("TRACK_POLL_DELAY_SECONDS", 10)),
		TrackPollInterval:    time.Second * time.Duration(getEnvInt("TRACK_POLL_INTERVAL_SECONDS", 10)),
		TrackPollMaxAttempts: getEnvInt("TRACK_POLL_MAX_ATTEMPTS", 6),
		TrackPollWallClock:   time.Second * time.Duration(getEnvInt("TRACK_POLL_WALL_CLOCK_SECONDS", 65)),
		HandlerLeakThreshold: getEnvInt("TRACK_HANDLER_LEAK_THRESHOLD", 8),
		StreamMaxReconnects:  getEnvInt("STREAM_MAX_RECONNECTS", 3),
		SideTableTTL:         time.Minute * time.Duration(getEnvInt("SIDETABLE_TTL_MINUTES", 60)),
		ProviderHTTPTimeout:  time.Second * time.Duration(getEnvInt("PROVIDER_HTTP_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

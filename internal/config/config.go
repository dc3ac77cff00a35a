package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all configuration values for the application
type Config struct {
	Environment    string
	Port           string
	AllowedOrigins []string
	LogLevel       string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	APIJWTSecret string

	YouTubeAPIKey      string
	YouTubeAPIKeyFile  string
	YouTubeOAuthToken  string
	YouTubeRegion      string
	YouTubeLanguage    string
	DailyQuotaLimit    int
	SearchDelay        time.Duration
	ChannelDelay       time.Duration
	TrackingDelay      time.Duration
	CallTimeout        time.Duration
	MaxPlaylistPages   int
	ChannelConcurrency int
	ChannelSearch      bool

	KeywordsFile  string
	TenantsFile   string
	TenantAPIKeys []string
	BatchSize     int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Environment:    getEnv("ENVIRONMENT", "production"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", defaultStoreDriver())),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "data/bgm-radar.db"),
		RedisURL:    getEnv("REDIS_URL", ""),

		APIJWTSecret: getEnv("API_JWT_SECRET", ""),

		YouTubeAPIKey:      getEnv("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFile:  getEnv("YOUTUBE_API_KEY_FILE", ""),
		YouTubeOAuthToken:  getEnv("YOUTUBE_OAUTH_TOKEN", ""),
		YouTubeRegion:      getEnv("YOUTUBE_REGION", "JP"),
		YouTubeLanguage:    getEnv("YOUTUBE_LANGUAGE", "ja"),
		DailyQuotaLimit:    getIntEnv("YOUTUBE_DAILY_QUOTA", 10000),
		SearchDelay:        getDurationEnv("SEARCH_DELAY", time.Second),
		ChannelDelay:       getDurationEnv("CHANNEL_DELAY", 500*time.Millisecond),
		TrackingDelay:      getDurationEnv("TRACKING_DELAY", 500*time.Millisecond),
		CallTimeout:        getDurationEnv("YOUTUBE_CALL_TIMEOUT", 10*time.Second),
		MaxPlaylistPages:   getIntEnv("MAX_PLAYLIST_PAGES", 10),
		ChannelConcurrency: getIntEnv("CHANNEL_CONCURRENCY", 1),
		ChannelSearch:      getBoolEnv("ENABLE_CHANNEL_SEARCH", false),

		KeywordsFile:  getEnv("KEYWORDS_FILE", ""),
		TenantsFile:   getEnv("TENANTS_FILE", ""),
		TenantAPIKeys: parseList(getEnv("YOUTUBE_API_KEYS", "")),
		BatchSize:     getIntEnv("BATCH_SIZE", 3),
	}, nil
}

// IsProduction reports whether the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func defaultStoreDriver() string {
	if os.Getenv("DATABASE_URL") != "" {
		return StorePostgres
	}
	return StoreSQLite
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseList parses a comma-separated value into a slice
func parseList(value string) []string {
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv accepts Go durations ("750ms") or plain milliseconds ("750")
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Store
	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string

	// Redis (optional: guru cache, session denylist, live updates)
	RedisURL string

	// Sessions
	JWTSecret  string
	SessionTTL time.Duration

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiTimeout        time.Duration
	GeminiConcurrentReqs int

	// Guru directory
	GuruCacheTTL time.Duration

	// Chat persistence
	PersistWorkers int
	PersistQueue   int
	PersistTimeout time.Duration

	// Auth rate limit (requests per minute per IP)
	AuthRateLimit int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		StoreDriver:          strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreMongo)),
		MongoDatabase:        getEnvOrDefault("MONGODB_DB", "guruchat"),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		SessionTTL:           getEnvAsDurationOrDefault("SESSION_TTL", 24*time.Hour),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTimeout:        getEnvAsDurationOrDefault("GEMINI_TIMEOUT", 2*time.Minute),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		GuruCacheTTL:         getEnvAsDurationOrDefault("GURU_CACHE_TTL", 5*time.Minute),
		PersistWorkers:       getEnvAsIntOrDefault("PERSIST_WORKERS", 4),
		PersistQueue:         getEnvAsIntOrDefault("PERSIST_QUEUE", 256),
		PersistTimeout:       getEnvAsDurationOrDefault("PERSIST_TIMEOUT", 10*time.Second),
		AuthRateLimit:        getEnvAsIntOrDefault("AUTH_RATE_LIMIT", 10),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:8080"),
	}

	switch cfg.StoreDriver {
	case StoreMongo:
		cfg.MongoURI = mustGetEnv("MONGODB_URI")
	case StorePostgres:
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	default:
		panic(fmt.Sprintf("unsupported STORE_DRIVER %q (want %q or %q)", cfg.StoreDriver, StoreMongo, StorePostgres))
	}

	return cfg
}

// IsProduction controls cookie Secure flags and logger encoding.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

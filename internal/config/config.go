package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	// Redis
	RedisURL string

	// AI provider (OpenAI-compatible endpoint, e.g. Groq)
	AIAPIKey         string
	AIFallbackAPIKey string // optional; empty disables credential failover
	AIBaseURL        string
	AIModel          string

	// Sampling parameters
	AITemperature      float64
	AIMaxTokens        int
	AIFrequencyPenalty float64
	AIPresencePenalty  float64
	AITimeoutSeconds   int

	// Chat endpoint rate limiting
	ChatRateLimit      int
	ChatRateWindowSecs int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		DBMaxConns:  getEnvAsIntOrDefault("DB_MAX_CONNS", 25),
		DBMinConns:  getEnvAsIntOrDefault("DB_MIN_CONNS", 5),
		RedisURL:    mustGetEnv("REDIS_URL"),

		AIAPIKey:         mustGetEnv("GROQ_API_KEY"),
		AIFallbackAPIKey: getEnvOrDefault("GROQ_API_KEY_FALLBACK", ""),
		AIBaseURL:        getEnvOrDefault("AI_BASE_URL", "https://api.groq.com/openai/v1"),
		AIModel:          getEnvOrDefault("AI_MODEL", "llama-3.3-70b-versatile"),

		AITemperature:      getEnvAsFloatOrDefault("AI_TEMPERATURE", 0.7),
		AIMaxTokens:        getEnvAsIntOrDefault("AI_MAX_TOKENS", 1024),
		AIFrequencyPenalty: getEnvAsFloatOrDefault("AI_FREQUENCY_PENALTY", 0.5),
		AIPresencePenalty:  getEnvAsFloatOrDefault("AI_PRESENCE_PENALTY", 0.6),
		AITimeoutSeconds:   getEnvAsIntOrDefault("AI_TIMEOUT_SECONDS", 60),

		ChatRateLimit:      getEnvAsIntOrDefault("CHAT_RATE_LIMIT", 20),
		ChatRateWindowSecs: getEnvAsIntOrDefault("CHAT_RATE_WINDOW_SECONDS", 60),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
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

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

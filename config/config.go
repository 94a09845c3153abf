package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	JWTSecret      string
	Logger         LoggerConfig
	Redis          RedisConfig
	WS             WSConfig
}

type LoggerConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	// Addr empty disables the presence mirror entirely.
	Addr     string
	Password string
	DB       int
	// PresenceTTL ages out mirrored keys if cleanup is missed.
	PresenceTTL time.Duration
}

type WSConfig struct {
	ReadLimit    int64
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	PingInterval time.Duration
	SendBuffer   int
}

func Load() *Config {
	// Parse allowed origins (comma-separated)
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			PresenceTTL: getEnvDuration("REDIS_PRESENCE_TTL", 24*time.Hour),
		},
		WS: WSConfig{
			ReadLimit:    int64(getEnvInt("WS_READ_LIMIT", 512*1024)),
			WriteTimeout: getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			PongTimeout:  getEnvDuration("WS_PONG_TIMEOUT", 60*time.Second),
			PingInterval: getEnvDuration("WS_PING_INTERVAL", 54*time.Second),
			SendBuffer:   getEnvInt("WS_SEND_BUFFER", 256),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

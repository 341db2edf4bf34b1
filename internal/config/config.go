package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB        DBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	JWT       JWTConfig
	Server    ServerConfig
	Room      RoomConfig
	RateLimit RateLimitConfig
	Cleanup   CleanupConfig
}

type DBConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	ConnectRetries int
	RetryDelay     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

type RoomConfig struct {
	DefaultMaxParticipants int
	CodeLength             int
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

type CleanupConfig struct {
	Interval time.Duration
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "sketchroom"),
			Password:       getEnv("DB_PASSWORD", "sketchroom_secret"),
			Name:           getEnv("DB_NAME", "sketchroom"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ConnectRetries: getEnvAsInt("DB_CONNECT_RETRIES", 5),
			RetryDelay:     getEnvAsDuration("DB_RETRY_DELAY", 3*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "sketchroom"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "sketchroom_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "avatars"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "5000"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		},
		Room: RoomConfig{
			DefaultMaxParticipants: getEnvAsInt("ROOM_DEFAULT_MAX_PARTICIPANTS", 10),
			CodeLength:             getEnvAsInt("ROOM_CODE_LENGTH", 6),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 20),
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Cleanup: CleanupConfig{
			Interval: getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	workerconfig "paperPatent/worker/config"
)

type Config struct {
	Port              string
	Env               string
	UploadDir         string
	MaxFileSize       int64
	DefaultAPIKey     string
	HeartbeatInterval time.Duration
	WorkerCount       int
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string

	KafkaBrokers string
	KafkaTopic   string
	DatabaseURL  string
	RedisAddr    string

	Pipeline *workerconfig.Config
}

func Load() *Config {
	_ = godotenv.Load()

	pipeline := workerconfig.Load()

	return &Config{
		Port:              getEnv("SERVICE_PORT", "8000"),
		Env:               getEnv("ENV", "development"),
		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		MaxFileSize:       getEnvAsInt64("MAX_FILE_SIZE", 100*1024*1024),
		DefaultAPIKey:     getEnv("OPENROUTER_API_KEY", ""),
		HeartbeatInterval: getEnvAsDuration("STREAM_HEARTBEAT", 10*time.Second),
		WorkerCount:       int(getEnvAsInt64("WORKER_COUNT", 4)),
		ShutdownTimeout:   getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),

		KafkaBrokers: pipeline.KafkaBrokers,
		KafkaTopic:   pipeline.KafkaTopic,
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),

		Pipeline: pipeline,
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

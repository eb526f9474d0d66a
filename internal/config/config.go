package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	SessionBackend      string        `env:"SESSION_BACKEND" envDefault:"redis"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB       string `env:"MONGO_DB" envDefault:"bookreview"`

	RatingsURL     string        `env:"RATINGS_URL" envDefault:"https://www.goodreads.com/book/review_counts.json"`
	RatingsAPIKey  string        `env:"RATINGS_API_KEY"`
	RatingsTimeout time.Duration `env:"RATINGS_TIMEOUT" envDefault:"3s"`

	LoginRateLimit int      `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Minio MinioConfig
}

// MinioConfig is only read by the catalog importer.
type MinioConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"catalog"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

// Load reads a .env file when one exists in the working directory and then
// parses the environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	switch cfg.SessionBackend {
	case "redis", "mongo", "memory":
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q (use redis, mongo or memory)", cfg.SessionBackend)
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	defaultImageURL       = "/static/images/default-pic.svg"
	defaultHeaderImageURL = "/static/images/warbler-hero.svg"
)

type Config struct {
	DatabaseURL string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort string

	SessionSecret string
	JWTSecret     string
	// SecureCookies marks the session cookie HTTPS-only.
	SecureCookies bool

	AccessTokenMaxAge int

	// RedisURL is optional. When empty the home timeline is read straight from Postgres.
	RedisURL        string
	TimelineWorkers int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	DefaultImageURL       string
	DefaultHeaderImageURL string

	LogLevel string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	accessTokenMaxAge, err := strconv.Atoi(os.Getenv("ACCESS_TOKEN_MAX_AGE"))
	if err != nil || accessTokenMaxAge <= 0 {
		accessTokenMaxAge = 900
	}

	timelineWorkers, err := strconv.Atoi(os.Getenv("TIMELINE_WORKERS"))
	if err != nil || timelineWorkers <= 0 {
		timelineWorkers = 2
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "warbler"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		ServerPort: getEnv("SERVER_PORT", "8080"),

		SessionSecret: sessionSecret,
		JWTSecret:     getEnv("JWT_SECRET", sessionSecret),
		SecureCookies: os.Getenv("SECURE_COOKIES") == "true",

		AccessTokenMaxAge: accessTokenMaxAge,

		RedisURL:        os.Getenv("REDIS_URL"),
		TimelineWorkers: timelineWorkers,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		DefaultImageURL:       getEnv("DEFAULT_IMAGE_URL", defaultImageURL),
		DefaultHeaderImageURL: getEnv("DEFAULT_HEADER_IMAGE_URL", defaultHeaderImageURL),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// DSN returns DATABASE_URL when set, otherwise builds a key/value DSN from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// MediaEnabled reports whether every R2 setting needed for uploads is present.
func (c *Config) MediaEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicURL != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

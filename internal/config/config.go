package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Record store (SQLite)
	DatabasePath string `json:"database_path" validate:"required"`

	// Blob store
	BlobBackend string `json:"blob_backend" validate:"oneof=s3 file"`
	BlobBucket  string `json:"blob_bucket" validate:"required_if=BlobBackend s3"`
	S3Endpoint  string `json:"s3_endpoint"`
	S3Region    string `json:"s3_region"`
	S3AccessKey string `json:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key"`
	BlobPath    string `json:"blob_path"`

	// Redis settings cache
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	CacheTTL    time.Duration `json:"cache_ttl"`

	// AI Configuration
	AIApiKey     string        `json:"ai_api_key" validate:"required"`
	AIBaseURL    string        `json:"ai_base_url"`
	AIModel      string        `json:"ai_model"`
	AIImageModel string        `json:"ai_image_model"`
	AITimeout    time.Duration `json:"ai_timeout"`

	// Image download
	ImageFetchTimeout time.Duration `json:"image_fetch_timeout"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Security
	AdminAPIKey string `json:"admin_api_key"`
}

// Load loads configuration from environment variables and validates it
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// Record store
		DatabasePath: getEnv("DATABASE_PATH", "./data/postforge.db"),

		// Blob store
		BlobBackend: getEnv("BLOB_BACKEND", "file"),
		BlobBucket:  getEnv("BLOB_BUCKET", ""),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "auto"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		BlobPath:    getEnv("BLOB_PATH", "./data/blobs"),

		// Redis settings cache
		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "postforge:"),
		CacheTTL:    getEnvAsDuration("CACHE_TTL", 10*time.Minute),

		// AI Configuration
		AIApiKey:     getEnv("AI_API_KEY", ""),
		AIBaseURL:    getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
		AIModel:      getEnv("AI_MODEL", "gpt-4o"),
		AIImageModel: getEnv("AI_IMAGE_MODEL", "dall-e-3"),
		AITimeout:    getEnvAsDuration("AI_TIMEOUT", 120*time.Second),

		// Image download
		ImageFetchTimeout: getEnvAsDuration("IMAGE_FETCH_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	// A missing required setting is a configuration error: fatal before any
	// request is served.
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				return fmt.Errorf("field %s failed on %q", fe.Field(), fe.Tag())
			}
		}
		return err
	}
	return nil
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

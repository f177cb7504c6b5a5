package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	TablePrefix string
	CORSOrigins string
	// RunMigrations applies embedded migrations at server start
	RunMigrations bool

	// Logging
	LogDir      string // Empty disables the file sink
	LogMaxFiles int

	// Identity (tokens are issued upstream)
	JWKSURL    string // Empty trusts the gateway and skips signature checks
	AdminGroup string

	// Object storage
	S3Bucket       string
	S3Region       string
	S3Endpoint     string // Custom endpoint for MinIO/LocalStack
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	UploadURLTTL   time.Duration
	DownloadURLTTL time.Duration

	// Extraction
	AnthropicAPIKey     string
	ExtractionModel     string
	ExtractionMaxTokens int
	ExtractionTestMode  bool // Short-circuits the AI call; refused in prod

	// Retry policy for extraction calls
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64

	// Processing and serving limits
	MaxConcurrentRuns int
	RateLimitRPS      float64
	RateLimitBurst    int
	LetterCacheSize   int // 0 disables; the cache is per instance
	LetterCacheTTL    time.Duration
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   env,
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		TablePrefix:   getTablePrefix(env),
		CORSOrigins:   getEnv("CORS_ORIGINS", "http://localhost:3000"),
		RunMigrations: getBool("RUN_MIGRATIONS", true),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getInt("LOG_MAX_FILES", 10),

		JWKSURL:    getEnv("JWKS_URL", ""),
		AdminGroup: getEnv("ADMIN_GROUP", "admin"),

		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3UsePathStyle: getBool("S3_USE_PATH_STYLE", false),
		UploadURLTTL:   getDuration("UPLOAD_URL_TTL", 15*time.Minute),
		DownloadURLTTL: getDuration("DOWNLOAD_URL_TTL", 15*time.Minute),

		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		ExtractionModel:     getEnv("EXTRACTION_MODEL", "claude-sonnet-4-5-20250929"),
		ExtractionMaxTokens: getInt("EXTRACTION_MAX_TOKENS", 8192),
		ExtractionTestMode:  getBool("EXTRACTION_TEST_MODE", env == "test"),

		RetryMaxAttempts:  getInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: getDuration("RETRY_INITIAL_DELAY", time.Second),
		RetryMaxDelay:     getDuration("RETRY_MAX_DELAY", 10*time.Second),
		RetryMultiplier:   getFloat("RETRY_BACKOFF_MULTIPLIER", 2),

		MaxConcurrentRuns: getInt("MAX_CONCURRENT_RUNS", 4),
		RateLimitRPS:      getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:    getInt("RATE_LIMIT_BURST", 20),
		LetterCacheSize:   getInt("LETTER_CACHE_SIZE", 0),
		LetterCacheTTL:    getDuration("LETTER_CACHE_TTL", 5*time.Minute),
	}
}

// Validate reports configuration that would make the server unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.S3Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required"))
	}
	if c.ExtractionTestMode && c.Environment == "prod" {
		errs = append(errs, errors.New("EXTRACTION_TEST_MODE cannot be enabled in prod"))
	}
	if !c.ExtractionTestMode && c.AnthropicAPIKey == "" {
		errs = append(errs, errors.New("ANTHROPIC_API_KEY is required unless EXTRACTION_TEST_MODE is enabled"))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts))
	}
	if c.MaxConcurrentRuns < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_RUNS must be at least 1, got %d", c.MaxConcurrentRuns))
	}
	return errors.Join(errs...)
}

// placeholderKeys are values copied from sample env files.
var placeholderKeys = []string{"your-api-key", "your_api_key", "changeme", "sk-ant-xxx", "xxx", "placeholder"}

// APIKeyLooksPlaceholder flags credentials that are present but obviously fake.
func APIKeyLooksPlaceholder(key string) bool {
	if key == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(key))
	for _, p := range placeholderKeys {
		if lower == p || strings.HasPrefix(lower, p) {
			return true
		}
	}
	return len(lower) < MinAPIKeyLength
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

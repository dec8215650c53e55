package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ClassifierModeMultiClass = "multiclass"
	ClassifierModeBinary     = "binary"

	DedupScan = "scan"
	DedupNMS  = "nms"

	StorageDisk  = "disk"
	StorageS3    = "s3"
	StorageAzure = "azure"
)

type Config struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxUploadSize  int64
	AllowedOrigins []string

	DBDriver string
	DBDSN    string

	StorageBackend string
	UploadDir      string
	AWSRegion      string
	AWSAccessKey   string
	AWSSecretKey   string
	AWSBucket      string
	AzureAccount   string
	AzureKey       string
	AzureContainer string

	ModelPath           string
	ModelConfigPath     string
	ClassifierMode      string
	ClassifierInputSize int // Square side the crops are resized to; 0 keeps the crop size
	ClassifierWorkers   int // Number of loaded networks serving inference
	PredictionThreshold float64

	MatchThreshold float64
	BoxDedup       string
	RowYThreshold  int

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	JWTSecret         string
	AdminPasswordHash string
	TokenTTL          time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	LogDirectory string
	LogLevel     string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	mode := strings.ToLower(getEnv("CLASSIFIER_MODE", ClassifierModeMultiClass))

	cfg := &Config{
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnvAsInt("PORT", 8080),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		MaxUploadSize:  getEnvAsInt64("MAX_UPLOAD_SIZE", 20<<20),
		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{
			"http://localhost",
			"http://localhost:3000",
			"https://psitest-imagem-front.vercel.app",
		}),

		DBDriver: getEnv("DB_DRIVER", "sqlite3"),
		DBDSN:    getEnv("DB_DSN", "data/annotations.db"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageDisk)),
		UploadDir:      getEnv("UPLOAD_DIR", "uploaded_images"),
		AWSRegion:      getEnv("AWS_REGION", ""),
		AWSAccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSBucket:      getEnv("AWS_BUCKET_NAME", ""),
		AzureAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		AzureKey:       getEnv("AZURE_STORAGE_KEY", ""),
		AzureContainer: getEnv("AZURE_CONTAINER", "answer-sheets"),

		ModelPath:           getEnv("MODEL_PATH", "model.onnx"),
		ModelConfigPath:     getEnv("MODEL_CONFIG_PATH", ""),
		ClassifierMode:      mode,
		ClassifierInputSize: getEnvAsInt("CLASSIFIER_INPUT_SIZE", defaultInputSize(mode)),
		ClassifierWorkers:   getEnvAsInt("CLASSIFIER_WORKERS", 2),
		PredictionThreshold: getEnvAsFloat("PREDICTION_THRESHOLD", 0.9),

		MatchThreshold: getEnvAsFloat("MATCH_THRESHOLD", 0.5),
		BoxDedup:       strings.ToLower(getEnv("BOX_DEDUP", DedupScan)),
		RowYThreshold:  getEnvAsInt("ROW_Y_THRESHOLD", 20),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		LockTTL:       getEnvAsDuration("LOCK_TTL", 2*time.Minute),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		TokenTTL:          getEnvAsDuration("TOKEN_TTL", 24*time.Hour),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 10),

		LogDirectory: getEnv("LOG_DIR", "logs"),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", c.MaxUploadSize)
	}
	if c.RequestTimeout <= 0 || c.LockTTL <= 0 || c.TokenTTL <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, lock=%s, token=%s)",
			c.RequestTimeout, c.LockTTL, c.TokenTTL)
	}
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.StorageBackend {
	case StorageDisk:
	case StorageS3:
		if c.AWSBucket == "" {
			return fmt.Errorf("AWS_BUCKET_NAME is required for the s3 storage backend")
		}
	case StorageAzure:
		if c.AzureAccount == "" || c.AzureKey == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY are required for the azure storage backend")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.ClassifierMode {
	case ClassifierModeMultiClass, ClassifierModeBinary:
	default:
		return fmt.Errorf("unsupported CLASSIFIER_MODE %q", c.ClassifierMode)
	}
	if c.ClassifierInputSize < 0 {
		return fmt.Errorf("CLASSIFIER_INPUT_SIZE must be >= 0 (got %d)", c.ClassifierInputSize)
	}
	if c.ClassifierWorkers < 1 {
		return fmt.Errorf("CLASSIFIER_WORKERS must be >= 1 (got %d)", c.ClassifierWorkers)
	}
	if c.PredictionThreshold < 0 || c.PredictionThreshold > 1 {
		return fmt.Errorf("PREDICTION_THRESHOLD must be in [0,1] (got %g)", c.PredictionThreshold)
	}
	switch c.BoxDedup {
	case DedupScan, DedupNMS:
	default:
		return fmt.Errorf("unsupported BOX_DEDUP %q", c.BoxDedup)
	}
	if c.RowYThreshold < 0 {
		return fmt.Errorf("ROW_Y_THRESHOLD must be >= 0 (got %d)", c.RowYThreshold)
	}
	if c.JWTSecret != "" && c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH is required when JWT_SECRET is set")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive (got rps=%g, burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	return nil
}

// ServerAddress returns the host:port the HTTP server listens on.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(c.Port))
}

// AuthEnabled reports whether bearer tokens are required.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

func defaultInputSize(mode string) int {
	if mode == ClassifierModeBinary {
		return 224
	}
	return 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

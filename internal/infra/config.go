package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	StorageDriver     string
	StoragePath       string
	StorageBaseURL    string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIOrg        string
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiImageModel string
	DashScopeAPIKey  string
	DashScopeBaseURL string
	StabilityAPIKey  string
	StabilityBaseURL string
	ReplicateToken   string
	ReplicateBaseURL string

	VisionProvider string
	VisionModel    string

	ProviderTimeout time.Duration
	FetchTimeout    time.Duration
	ScoringTimeout  time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	MetricsEnabled   bool
	CORSOrigins      []string
	DBMaxConns       int32
	LogLevel         string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		StorageDriver:     strings.ToLower(getEnv("STORAGE_DRIVER", "filesystem")),
		StoragePath:       getEnv("STORAGE_PATH", "./data/images"),
		StorageBaseURL:    strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/files"), "/"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:        os.Getenv("OPENAI_ORG"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		DashScopeAPIKey:  os.Getenv("DASHSCOPE_API_KEY"),
		DashScopeBaseURL: os.Getenv("DASHSCOPE_BASE_URL"),
		StabilityAPIKey:  os.Getenv("STABILITY_API_KEY"),
		StabilityBaseURL: os.Getenv("STABILITY_BASE_URL"),
		ReplicateToken:   os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL: os.Getenv("REPLICATE_BASE_URL"),

		VisionProvider: strings.ToLower(getEnv("VISION_PROVIDER", "openai")),
		VisionModel:    os.Getenv("VISION_MODEL"),

		ProviderTimeout: getEnvSeconds("PROVIDER_TIMEOUT_SECONDS", 120),
		FetchTimeout:    getEnvSeconds("FETCH_TIMEOUT_SECONDS", 30),
		ScoringTimeout:  getEnvSeconds("SCORING_TIMEOUT_SECONDS", 60),

		HTTPReadTimeout:  getEnvSeconds("HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPWriteTimeout: getEnvSeconds("HTTP_WRITE_TIMEOUT_SECONDS", 150),
		HTTPIdleTimeout:  getEnvSeconds("HTTP_IDLE_TIMEOUT_SECONDS", 60),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS"),
		DBMaxConns:       int32(getEnvInt("DB_MAX_CONNS", 10)),
		LogLevel:         strings.ToLower(os.Getenv("LOG_LEVEL")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.StorageDriver {
	case "filesystem":
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.VisionProvider != "openai" && cfg.VisionProvider != "gemini" {
		return nil, fmt.Errorf("unsupported VISION_PROVIDER %q", cfg.VisionProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	n := getEnvInt(key, fallback)
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

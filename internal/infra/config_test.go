package infra

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaultStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:8080/files"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
	if cfg.StorageDriver != "filesystem" {
		t.Fatalf("StorageDriver = %q, want filesystem", cfg.StorageDriver)
	}
	if cfg.ProviderTimeout != 120*time.Second || cfg.FetchTimeout != 30*time.Second || cfg.ScoringTimeout != 60*time.Second {
		t.Fatalf("unexpected timeouts: %v %v %v", cfg.ProviderTimeout, cfg.FetchTimeout, cfg.ScoringTimeout)
	}
	if !cfg.MetricsEnabled {
		t.Fatal("expected metrics enabled by default")
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/files"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigHonorsExplicitStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/files/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "https://cdn.example.com/files" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "x")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadConfigS3RequiresBucket(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("S3_BUCKET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without S3_BUCKET")
	}
	t.Setenv("S3_BUCKET", "images")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageDriver != "s3" || cfg.S3Bucket != "images" {
		t.Fatalf("unexpected s3 config: %q %q", cfg.StorageDriver, cfg.S3Bucket)
	}
}

func TestLoadConfigRejectsUnknownDrivers(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "ftp")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("VISION_PROVIDER", "claude")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown vision provider")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "false")
	t.Setenv("X_BAD_BOOL", "nope")
	t.Setenv("X_SECONDS", "-5")
	if getEnvBool("X_BOOL", true) {
		t.Fatal("expected false")
	}
	if !getEnvBool("X_BAD_BOOL", true) {
		t.Fatal("expected fallback for unparsable bool")
	}
	if got := getEnvSeconds("X_SECONDS", 7); got != 7*time.Second {
		t.Fatalf("getEnvSeconds = %v, want 7s", got)
	}
}

func TestLoadConfigCORSOrigins(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	if got := NewLogger("production", "").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("production level = %v", got)
	}
	if got := NewLogger("production", "warn").GetLevel(); got != zerolog.WarnLevel {
		t.Fatalf("override level = %v", got)
	}
	if got := NewLogger("development", "bogus").GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("development level = %v", got)
	}
}

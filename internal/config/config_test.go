package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CLASSIFIER_MODE", "")
	t.Setenv("CLASSIFIER_INPUT_SIZE", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ClassifierMode != ClassifierModeMultiClass {
		t.Errorf("Expected multiclass mode, got %s", cfg.ClassifierMode)
	}
	if cfg.ClassifierInputSize != 0 {
		t.Errorf("Expected crops to keep their size in multiclass mode, got %d", cfg.ClassifierInputSize)
	}
	if cfg.PredictionThreshold != 0.9 {
		t.Errorf("Expected prediction threshold 0.9, got %g", cfg.PredictionThreshold)
	}
	if cfg.RowYThreshold != 20 {
		t.Errorf("Expected row threshold 20, got %d", cfg.RowYThreshold)
	}
	if cfg.BoxDedup != DedupScan {
		t.Errorf("Expected scan dedup, got %s", cfg.BoxDedup)
	}
	if len(cfg.AllowedOrigins) != 3 {
		t.Errorf("Expected 3 default origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoad_BinaryModeInputSize(t *testing.T) {
	t.Setenv("CLASSIFIER_MODE", "Binary")
	t.Setenv("CLASSIFIER_INPUT_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ClassifierMode != ClassifierModeBinary {
		t.Errorf("Expected binary mode, got %s", cfg.ClassifierMode)
	}
	if cfg.ClassifierInputSize != 224 {
		t.Errorf("Expected input size 224, got %d", cfg.ClassifierInputSize)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LOCK_TTL", "45s")
	t.Setenv("BOX_DEDUP", "NMS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerAddress() != "0.0.0.0:9090" {
		t.Errorf("Unexpected address %s", cfg.ServerAddress())
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.LockTTL != 45*time.Second {
		t.Errorf("Expected 45s lock ttl, got %s", cfg.LockTTL)
	}
	if cfg.BoxDedup != DedupNMS {
		t.Errorf("Expected nms dedup, got %s", cfg.BoxDedup)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"bad driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"s3 without bucket", func(c *Config) { c.StorageBackend = StorageS3 }},
		{"azure without key", func(c *Config) { c.StorageBackend = StorageAzure; c.AzureAccount = "acct" }},
		{"bad mode", func(c *Config) { c.ClassifierMode = "softmax" }},
		{"threshold above one", func(c *Config) { c.PredictionThreshold = 1.5 }},
		{"no workers", func(c *Config) { c.ClassifierWorkers = 0 }},
		{"bad dedup", func(c *Config) { c.BoxDedup = "kmeans" }},
		{"jwt without hash", func(c *Config) { c.JWTSecret = "secret" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}

	if err := validConfig().Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		Port:                8080,
		RequestTimeout:      time.Minute,
		MaxUploadSize:       1 << 20,
		DBDriver:            "sqlite3",
		StorageBackend:      StorageDisk,
		ClassifierMode:      ClassifierModeMultiClass,
		ClassifierWorkers:   1,
		PredictionThreshold: 0.9,
		BoxDedup:            DedupScan,
		RowYThreshold:       20,
		LockTTL:             time.Minute,
		TokenTTL:            time.Hour,
		RateLimitRPS:        5,
		RateLimitBurst:      10,
	}
}

package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "hdu")
	t.Setenv("DB_NAME", "hdu")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DBMaxOpenConns != 10 {
		t.Errorf("Expected 10 max open conns, got %d", cfg.DBMaxOpenConns)
	}
	if cfg.JWTExpiry != time.Hour {
		t.Errorf("Expected 1h JWT expiry, got %s", cfg.JWTExpiry)
	}
	if cfg.StorageBackend != StorageLocal {
		t.Errorf("Expected local storage backend, got %s", cfg.StorageBackend)
	}
	if cfg.TrustProxy {
		t.Error("Expected X-Forwarded-For to be untrusted by default")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Unexpected allowed origins: %v", cfg.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CRITICAL_LOOKBACK", "6h")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.JWTExpiry != 30*time.Minute {
		t.Errorf("Expected 30m expiry, got %s", cfg.JWTExpiry)
	}
	if cfg.CriticalLookback != 6*time.Hour {
		t.Errorf("Expected 6h lookback, got %s", cfg.CriticalLookback)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected allowed origins: %v", cfg.AllowedOrigins)
	}
	if !cfg.TrustProxy {
		t.Error("Expected TRUST_PROXY=true to be honoured")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			JWTSecret:      "secret",
			JWTExpiry:      time.Hour,
			DBHost:         "localhost",
			DBUser:         "hdu",
			DBName:         "hdu",
			StorageBackend: StorageLocal,
		}
	}

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "missing db host", mutate: func(c *Config) { c.DBHost = "" }, wantErr: true},
		{name: "zero expiry", mutate: func(c *Config) { c.JWTExpiry = 0 }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *Config) { c.StorageBackend = StorageS3 }, wantErr: true},
		{name: "s3 with bucket", mutate: func(c *Config) { c.StorageBackend = StorageS3; c.S3Bucket = "docs" }},
		{name: "unknown backend", mutate: func(c *Config) { c.StorageBackend = "ftp" }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends for patient documents.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`

	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	JWTExpiry       time.Duration `mapstructure:"JWT_EXPIRY"`
	PermissionsFile string        `mapstructure:"PERMISSIONS_FILE"`

	UploadDir      string `mapstructure:"UPLOAD_DIR"`
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3Prefix       string `mapstructure:"S3_PREFIX"`

	RabbitMQURL    string   `mapstructure:"RABBITMQ_URL"`
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`

	LoginRateLimitRPS   float64 `mapstructure:"LOGIN_RATE_LIMIT_RPS"`
	LoginRateLimitBurst int     `mapstructure:"LOGIN_RATE_LIMIT_BURST"`
	TrustProxy          bool    `mapstructure:"TRUST_PROXY"`

	CriticalScanInterval time.Duration `mapstructure:"CRITICAL_SCAN_INTERVAL"`
	CriticalLookback     time.Duration `mapstructure:"CRITICAL_LOOKBACK"`

	SeedAdminUsername string `mapstructure:"SEED_ADMIN_USERNAME"`
	SeedAdminEmail    string `mapstructure:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
	"JWT_SECRET", "JWT_EXPIRY", "PERMISSIONS_FILE",
	"UPLOAD_DIR", "STORAGE_BACKEND", "S3_BUCKET", "S3_PREFIX",
	"RABBITMQ_URL", "ALLOWED_ORIGINS",
	"LOGIN_RATE_LIMIT_RPS", "LOGIN_RATE_LIMIT_BURST", "TRUST_PROXY",
	"CRITICAL_SCAN_INTERVAL", "CRITICAL_LOOKBACK",
	"SEED_ADMIN_USERNAME", "SEED_ADMIN_EMAIL", "SEED_ADMIN_PASSWORD",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit env file path; a missing file is ignored.
func LoadFrom(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("JWT_EXPIRY", "1h")
	v.SetDefault("PERMISSIONS_FILE", "permissions.yml")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("STORAGE_BACKEND", StorageLocal)
	v.SetDefault("S3_PREFIX", "patient-documents")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOGIN_RATE_LIMIT_RPS", 5)
	v.SetDefault("LOGIN_RATE_LIMIT_BURST", 10)
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("CRITICAL_SCAN_INTERVAL", "5m")
	v.SetDefault("CRITICAL_LOOKBACK", "24h")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// viper only splits slices coming from a config file, not from env
	if origins := v.GetString("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
		return fmt.Errorf("DB_HOST, DB_USER and DB_NAME are required")
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive, got %s", c.JWTExpiry)
	}
	switch c.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is %q", StorageS3)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageLocal, StorageS3, c.StorageBackend)
	}
	return nil
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

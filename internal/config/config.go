// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the bulk mail service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	MailAPI    MailAPIConfig    `yaml:"mail_api"`
	Blobs      BlobConfig       `yaml:"blobs"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the SQL connection used for both the template store
// and recipient queries. Driver is "postgres" or "snowflake"; both are
// database/sql drivers so the rest of the code does not care which.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

// RedisConfig holds the Redis connection for run status and run locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// MailAPIConfig holds the external transactional-email API settings.
type MailAPIConfig struct {
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c MailAPIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BlobConfig holds S3 settings for attachment storage.
type BlobConfig struct {
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	AWSProfile string `yaml:"aws_profile"`
	KeyPrefix  string `yaml:"key_prefix"`
}

// DispatchConfig holds the batch dispatch tunables.
type DispatchConfig struct {
	BatchSize        int    `yaml:"batch_size"`
	FallbackSubject  string `yaml:"fallback_subject"`
	FallbackBody     string `yaml:"fallback_body"`
	LockTTLMinutes   int    `yaml:"lock_ttl_minutes"`
	StatusTTLHours   int    `yaml:"status_ttl_hours"`
	PreviewLimit     int    `yaml:"preview_limit"`
}

// LockTTL returns the run-lock TTL as a duration.
func (c DispatchConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// StatusTTL returns the run-status retention as a duration.
func (c DispatchConfig) StatusTTL() time.Duration {
	return time.Duration(c.StatusTTLHours) * time.Hour
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Env-only deployments run without a config file.
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.MailAPI.TimeoutSeconds == 0 {
		cfg.MailAPI.TimeoutSeconds = 30
	}
	if cfg.Blobs.Region == "" {
		cfg.Blobs.Region = "us-west-2"
	}
	if cfg.Dispatch.BatchSize == 0 {
		cfg.Dispatch.BatchSize = 45
	}
	if cfg.Dispatch.FallbackSubject == "" {
		cfg.Dispatch.FallbackSubject = "Bulk Email"
	}
	if cfg.Dispatch.FallbackBody == "" {
		cfg.Dispatch.FallbackBody = "Default email body"
	}
	if cfg.Dispatch.LockTTLMinutes == 0 {
		cfg.Dispatch.LockTTLMinutes = 30
	}
	if cfg.Dispatch.StatusTTLHours == 0 {
		cfg.Dispatch.StatusTTLHours = 24
	}
	if cfg.Dispatch.PreviewLimit == 0 {
		cfg.Dispatch.PreviewLimit = 100
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MAIL_API_ENDPOINT"); v != "" {
		cfg.MailAPI.Endpoint = v
	}
	if v := os.Getenv("MAIL_API_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.MailAPI.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("BLOB_S3_BUCKET"); v != "" {
		cfg.Blobs.Bucket = v
	}
	if v := os.Getenv("BLOB_S3_REGION"); v != "" {
		cfg.Blobs.Region = v
	}
	if v := os.Getenv("AWS_PROFILE"); v != "" {
		cfg.Blobs.AWSProfile = v
	}

	return cfg, nil
}

// Validate checks that the pieces needed to dispatch mail are present.
func (c *Config) Validate() error {
	if c.MailAPI.Endpoint == "" {
		return fmt.Errorf("mail_api.endpoint is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "snowflake" {
		return fmt.Errorf("database.driver must be postgres or snowflake, got %q", c.Database.Driver)
	}
	if c.Dispatch.BatchSize < 1 {
		return fmt.Errorf("dispatch.batch_size must be positive")
	}
	return nil
}

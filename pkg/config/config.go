package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/platinummonkey/orgaccess/pkg/observability"
	"github.com/platinummonkey/orgaccess/pkg/orgs"
	"github.com/platinummonkey/orgaccess/pkg/permcache"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      db.Config           `yaml:"database"`
	Cache         permcache.Config    `yaml:"cache"`
	Users         UsersConfig         `yaml:"users"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// UsersConfig describes the optional columns of the external users table. With
// AutoDetect the columns are read from information_schema at startup instead, and
// again on RefreshSchedule (a cron expression) when it is set.
type UsersConfig struct {
	AutoDetect      bool            `yaml:"auto_detect"`
	Fields          orgs.UserFields `yaml:"fields"`
	RefreshSchedule string          `yaml:"refresh_schedule"`
}

// ObservabilityConfig holds logging, metrics and tracing settings
type ObservabilityConfig struct {
	LogLevel       string                   `yaml:"log_level"`
	LogFormat      string                   `yaml:"log_format"`
	MetricsEnabled bool                     `yaml:"metrics_enabled"`
	OTel           observability.OTelConfig `yaml:"otel"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Database: db.DefaultConfig(),
		Cache:    permcache.DefaultConfig(),
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      observability.FormatJSON,
			MetricsEnabled: true,
			OTel: observability.OTelConfig{
				Endpoint:       "localhost:4317",
				ServiceName:    "orgaccess",
				ServiceVersion: "1.0.0",
				Insecure:       true,
			},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path, a
// .env file and the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides cfg with every ORGACCESS_* variable that is set
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("ORGACCESS_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("ORGACCESS_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("ORGACCESS_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("ORGACCESS_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("ORGACCESS_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Database.URL = getEnv("ORGACCESS_DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConns = getEnvInt("ORGACCESS_DB_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvInt("ORGACCESS_DB_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.Timeout = getEnvDuration("ORGACCESS_DB_TIMEOUT", cfg.Database.Timeout)

	cfg.Cache.Backend = getEnv("ORGACCESS_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = getEnvDuration("ORGACCESS_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.MaxEntries = getEnvInt("ORGACCESS_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.RedisURL = getEnv("ORGACCESS_REDIS_URL", cfg.Cache.RedisURL)

	if fields := os.Getenv("ORGACCESS_USER_FIELDS"); fields != "" {
		parsed := parseUserFields(fields)
		cfg.Users.AutoDetect = parsed.AutoDetect
		cfg.Users.Fields = parsed.Fields
	}
	cfg.Users.RefreshSchedule = getEnv("ORGACCESS_USER_FIELDS_REFRESH", cfg.Users.RefreshSchedule)

	cfg.Observability.LogLevel = getEnv("ORGACCESS_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = getEnv("ORGACCESS_LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.MetricsEnabled = getEnvBool("ORGACCESS_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTel.Enabled = getEnvBool("ORGACCESS_OTEL_ENABLED", cfg.Observability.OTel.Enabled)
	cfg.Observability.OTel.Endpoint = getEnv("ORGACCESS_OTEL_ENDPOINT", cfg.Observability.OTel.Endpoint)
	cfg.Observability.OTel.ServiceName = getEnv("ORGACCESS_OTEL_SERVICE_NAME", cfg.Observability.OTel.ServiceName)
	cfg.Observability.OTel.Insecure = getEnvBool("ORGACCESS_OTEL_INSECURE", cfg.Observability.OTel.Insecure)
}

// parseUserFields reads a comma separated column list such as "real_name,phone"
func parseUserFields(value string) UsersConfig {
	if strings.EqualFold(strings.TrimSpace(value), "auto") {
		return UsersConfig{AutoDetect: true}
	}

	var uc UsersConfig
	for _, name := range strings.Split(value, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "real_name":
			uc.Fields.RealName = true
		case "phone":
			uc.Fields.Phone = true
		case "avatar":
			uc.Fields.Avatar = true
		case "status":
			uc.Fields.Status = true
		}
	}
	return uc
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database max_conns must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database min_conns cannot exceed max_conns")
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if c.Users.RefreshSchedule != "" {
		if !c.Users.AutoDetect {
			return fmt.Errorf("users.refresh_schedule requires users.auto_detect")
		}
		if _, err := cron.ParseStandard(c.Users.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid users.refresh_schedule: %w", err)
		}
	}

	switch strings.ToLower(c.Observability.LogFormat) {
	case "", observability.FormatJSON, observability.FormatText:
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Definitions   DefinitionsConfig   `yaml:"definitions"`
	Store         StoreConfig         `yaml:"store"`
	Lifecycle     LifecycleConfig     `yaml:"lifecycle"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// DefinitionsConfig describes where to find form and workflow definition
// files. With Strict set, definition validation errors abort startup;
// otherwise they are logged and the definitions are served as loaded.
type DefinitionsConfig struct {
	Directories []string `yaml:"directories"`
	Strict      bool     `yaml:"strict"`
}

// StoreConfig describes the document store backing field configuration,
// records and stage-change history.
type StoreConfig struct {
	Driver          string        `yaml:"driver"`
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig describes the redis store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	AddrEnv   string `yaml:"addr_env"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Address returns Addr, or the value of the AddrEnv variable when set.
func (r RedisConfig) Address() string {
	if r.AddrEnv != "" {
		if v := os.Getenv(r.AddrEnv); v != "" {
			return v
		}
	}
	return r.Addr
}

// LifecycleConfig describes how stage changes on lifecycle fields are
// handled.
type LifecycleConfig struct {
	// EnforceTransitions rejects stage changes the field's transition rules
	// do not allow.
	EnforceTransitions bool `yaml:"enforce_transitions"`
	// RecordHistory appends a stage change event for every accepted change.
	RecordHistory bool `yaml:"record_history"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name"`
	LogLevel    string        `yaml:"log_level"`
	Tracing     TracingConfig `yaml:"tracing"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	// Insecure disables TLS on the OTLP gRPC connection.
	Insecure bool `yaml:"insecure"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "X-Actor-Id",
					"X-Correlation-Id", "X-Timezone"},
				MaxAge: 86400,
			},
		},
		Definitions: DefinitionsConfig{
			Directories: []string{"/definitions"},
			Strict:      true,
		},
		Store: StoreConfig{
			Driver:          DriverMemory,
			DSNEnv:          "FORMCONFIG_DATABASE_URL",
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "formconfig:",
			},
		},
		Lifecycle: LifecycleConfig{
			EnforceTransitions: true,
			RecordHistory:      true,
		},
		Observability: ObservabilityConfig{
			ServiceName: "formconfig",
			LogLevel:    "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load layers the YAML file at path and the FORMCONFIG_* environment over
// Defaults and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if len(c.Definitions.Directories) == 0 {
		errs = append(errs, "definitions.directories is required")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSNEnv == "" {
			errs = append(errs, "store.dsn_env is required for the postgres driver")
		}
	case DriverRedis:
		if c.Store.Redis.Addr == "" && c.Store.Redis.AddrEnv == "" {
			errs = append(errs, "store.redis.addr or store.redis.addr_env is required for the redis driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be one of memory, postgres, redis", c.Store.Driver))
	}

	if !logLevels[strings.ToLower(c.Observability.LogLevel)] {
		errs = append(errs, fmt.Sprintf("observability.log_level %q must be one of debug, info, warn, error", c.Observability.LogLevel))
	}
	if t := c.Observability.Tracing; t.Enabled {
		if t.Exporter != "otlp" && t.Exporter != "stdout" {
			errs = append(errs, fmt.Sprintf("observability.tracing.exporter %q must be otlp or stdout", t.Exporter))
		}
		if t.SamplingRate < 0 || t.SamplingRate > 1 {
			errs = append(errs, "observability.tracing.sampling_rate must be between 0 and 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// envOverrides maps FORMCONFIG_* variables onto config fields. Values that
// do not parse are ignored.
var envOverrides = map[string]func(*Config, string){
	"FORMCONFIG_SERVER_PORT": func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	},
	"FORMCONFIG_DEFINITIONS_DIRECTORIES": func(c *Config, v string) {
		c.Definitions.Directories = splitList(v)
	},
	"FORMCONFIG_DEFINITIONS_STRICT": func(c *Config, v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Definitions.Strict = b
		}
	},
	"FORMCONFIG_STORE_DRIVER":            func(c *Config, v string) { c.Store.Driver = v },
	"FORMCONFIG_REDIS_ADDR":              func(c *Config, v string) { c.Store.Redis.Addr = v },
	"FORMCONFIG_OBSERVABILITY_LOG_LEVEL": func(c *Config, v string) { c.Observability.LogLevel = v },
	"FORMCONFIG_TRACING_ENABLED": func(c *Config, v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Observability.Tracing.Enabled = b
		}
	},
	"FORMCONFIG_ENFORCE_TRANSITIONS": func(c *Config, v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Lifecycle.EnforceTransitions = b
		}
	},
}

func applyEnvOverrides(cfg *Config) {
	for name, apply := range envOverrides {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			apply(cfg, v)
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

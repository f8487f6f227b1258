// Package config provides configuration types for accessgate.
//
// Configuration is read from accessgate.yaml and ACCESSGATE_* environment
// variables. Every field has a default, so the control plane starts with
// an empty file: in-memory store, in-memory cache and localhost-only admin
// access.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the top-level configuration.
type Config struct {
	// Server configures the HTTP listener and logging.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Store selects where policies, sessions and audit logs live.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Cache configures the per-organization policy cache.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Engine configures policy evaluation.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Recorder configures the decision recorder and its async queue.
	Recorder RecorderConfig `yaml:"recorder" mapstructure:"recorder"`

	// Gateway configures the gateway-facing API.
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`

	// Admin configures the internal API.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`

	// Telemetry configures tracing and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// Seed optionally bootstraps data at startup.
	Seed SeedConfig `yaml:"seed" mapstructure:"seed"`

	// DevMode enables debug logging and seeds the demo organization.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the listen address. Defaults to "127.0.0.1:8080".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel is one of debug, info, warn, error. DevMode forces debug.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format" mapstructure:"log_format" validate:"omitempty,oneof=text json"`

	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"min=0"`
}

// StoreConfig configures the persistent store.
type StoreConfig struct {
	// Driver is memory, sqlite or postgres.
	Driver string `yaml:"driver" mapstructure:"driver" validate:"required,oneof=memory sqlite postgres"`

	// DSN is the data source name. Required for sqlite and postgres.
	DSN string `yaml:"dsn" mapstructure:"dsn"`

	// MaxOpenConns caps the postgres connection pool. 0 keeps the driver
	// default. SQLite always uses a single connection.
	MaxOpenConns int `yaml:"max_open_conns" mapstructure:"max_open_conns" validate:"min=0"`
}

// CacheConfig configures the policy cache.
type CacheConfig struct {
	// Backend is memory or redis.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required,oneof=memory redis"`

	// TTL is how long an organization's policy set stays cached. Defaults to 5m.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gt=0"`

	// Timeout bounds each cache read or write during evaluation. Defaults
	// to 250ms.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// Redis is used when Backend is redis.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db" validate:"min=0"`
}

// EngineConfig configures the evaluation engine.
type EngineConfig struct {
	// Timeout bounds one evaluation, including the policy load. Defaults to 2s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
}

// RecorderConfig configures decision recording.
type RecorderConfig struct {
	// Timeout bounds one store write. Defaults to 2s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// QueueSize is the async queue buffer. Defaults to 1000.
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size" validate:"min=1"`

	// SendTimeout is how long to block on a full queue before dropping.
	// 0 drops immediately. Defaults to 100ms.
	SendTimeout time.Duration `yaml:"send_timeout" mapstructure:"send_timeout" validate:"min=0"`

	// Workers is the number of background writers. Defaults to 1.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"min=1"`
}

// GatewayConfig configures the gateway API.
type GatewayConfig struct {
	// AutoRecord records every gateway evaluation through the async queue.
	AutoRecord bool `yaml:"auto_record" mapstructure:"auto_record"`

	// KeyCacheSize is the number of resolved API keys kept in memory.
	KeyCacheSize int `yaml:"key_cache_size" mapstructure:"key_cache_size" validate:"min=1"`

	// KeyCacheTTL is how long a resolved API key is trusted. Defaults to 1m.
	KeyCacheTTL time.Duration `yaml:"key_cache_ttl" mapstructure:"key_cache_ttl" validate:"gt=0"`

	// RateLimit limits requests per gateway.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig configures the per-gateway token bucket.
type RateLimitConfig struct {
	// PerSecond is the refill rate. 0 disables rate limiting.
	PerSecond float64 `yaml:"per_second" mapstructure:"per_second" validate:"min=0"`
	Burst     int     `yaml:"burst" mapstructure:"burst" validate:"min=0"`
}

// AdminConfig configures the internal API.
type AdminConfig struct {
	// JWTSecret signs HS256 admin tokens. When empty the internal API only
	// accepts requests from localhost.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret" validate:"omitempty,min=16"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	// TraceStdout exports spans to stdout.
	TraceStdout bool `yaml:"trace_stdout" mapstructure:"trace_stdout"`

	// Metrics exposes /metrics. Defaults to true.
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`
}

// SeedConfig configures bootstrap data.
type SeedConfig struct {
	// File is a YAML seed file loaded at startup.
	File string `yaml:"file" mapstructure:"file"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	// Bind to localhost only; network access must be opted into.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "text"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.Timeout == 0 {
		c.Cache.Timeout = 250 * time.Millisecond
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "127.0.0.1:6379"
	}

	if c.Engine.Timeout == 0 {
		c.Engine.Timeout = 2 * time.Second
	}

	if c.Recorder.Timeout == 0 {
		c.Recorder.Timeout = 2 * time.Second
	}
	if c.Recorder.QueueSize == 0 {
		c.Recorder.QueueSize = 1000
	}
	// viper.IsSet distinguishes "not set" from an explicit 0 (drop immediately).
	if c.Recorder.SendTimeout == 0 && !viper.IsSet("recorder.send_timeout") {
		c.Recorder.SendTimeout = 100 * time.Millisecond
	}
	if c.Recorder.Workers == 0 {
		c.Recorder.Workers = 1
	}

	if c.Gateway.KeyCacheSize == 0 {
		c.Gateway.KeyCacheSize = 1024
	}
	if c.Gateway.KeyCacheTTL == 0 {
		c.Gateway.KeyCacheTTL = time.Minute
	}
	if c.Gateway.RateLimit.PerSecond == 0 && !viper.IsSet("gateway.rate_limit.per_second") {
		c.Gateway.RateLimit.PerSecond = 50
	}
	if c.Gateway.RateLimit.Burst == 0 {
		c.Gateway.RateLimit.Burst = 100
	}

	if !viper.IsSet("telemetry.metrics") {
		c.Telemetry.Metrics = true
	}
}

// SetDevDefaults applies development defaults. Call after SetDefaults.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for accessgate.yaml/.yml in standard locations.
// The search requires an explicit YAML extension so the binary itself is never
// matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// ReadInConfig then returns ConfigFileNotFoundError, which callers ignore.
		viper.SetConfigName("accessgate")
		viper.SetConfigType("yaml")
	}

	// ACCESSGATE_SERVER_HTTP_ADDR overrides server.http_addr.
	viper.SetEnvPrefix("ACCESSGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	return findConfigFileInPaths([]string{
		".",
		filepath.Join(home, ".accessgate"),
		"/etc/accessgate",
	})
}

// findConfigFileInPaths returns the first accessgate.yaml or .yml found in paths.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "accessgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// envKeys are bound explicitly so Unmarshal sees env-only values.
var envKeys = []string{
	"server.http_addr",
	"server.log_level",
	"server.log_format",
	"server.shutdown_timeout",
	"store.driver",
	"store.dsn",
	"store.max_open_conns",
	"cache.backend",
	"cache.ttl",
	"cache.timeout",
	"cache.redis.addr",
	"cache.redis.password",
	"cache.redis.db",
	"engine.timeout",
	"recorder.timeout",
	"recorder.queue_size",
	"recorder.send_timeout",
	"recorder.workers",
	"gateway.auto_record",
	"gateway.key_cache_size",
	"gateway.key_cache_ttl",
	"gateway.rate_limit.per_second",
	"gateway.rate_limit.burst",
	"admin.jwt_secret",
	"telemetry.trace_stdout",
	"telemetry.metrics",
	"seed.file",
	"dev_mode",
}

func bindNestedEnvKeys() {
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
}

// LoadConfig reads the configuration, applies defaults and validates it.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration and applies defaults without
// validating. Use it when CLI flags may still change the result.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path of the loaded configuration file, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

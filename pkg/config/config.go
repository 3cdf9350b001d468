// Package config loads vaultd configuration from defaults, an optional YAML
// file and VAULTD_* environment variables, in increasing order of
// precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime settings for the vaultd server.
type Config struct {
	// Listen is the HTTP bind address.
	Listen string `mapstructure:"listen" validate:"required"`

	// DataDir holds one subdirectory per user plus the user database.
	DataDir string `mapstructure:"data_dir" validate:"required"`

	// TempDir holds in-flight chunk uploads. Defaults to <data_dir>/temp and
	// must stay outside every user's visible root.
	TempDir string `mapstructure:"temp_dir"`

	// DBPath is the SQLite user database location. Defaults to
	// <data_dir>/users.db.
	DBPath string `mapstructure:"db_path"`

	// Secret signs login tokens (HS256). Override the default in any real
	// deployment.
	Secret string `mapstructure:"secret" validate:"required,min=16"`

	// TokenTTL is the login token lifetime.
	TokenTTL time.Duration `mapstructure:"token_ttl" validate:"required,gt=0"`

	// DefaultQuotaBytes is assigned to accounts created without an explicit
	// quota.
	DefaultQuotaBytes int64 `mapstructure:"default_quota_bytes" validate:"gt=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// LogLevel is the minimum log level: debug or info.
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info"`

	// Bootstrap optionally creates an initial admin account on first start.
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
}

// BootstrapConfig describes the initial admin account created when the user
// database is empty. Skipped entirely when Username is empty.
type BootstrapConfig struct {
	Username string `mapstructure:"username" validate:"omitempty,min=3"`
	Password string `mapstructure:"password" validate:"required_with=Username,omitempty,min=8"`
}

// Load builds a Config by applying defaults, an optional config file and
// environment overrides, then validating the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen", ":8080")
	v.SetDefault("data_dir", "data")
	v.SetDefault("secret", "dev-secret-change-me")
	v.SetDefault("token_ttl", 12*time.Hour)
	v.SetDefault("default_quota_bytes", int64(100*1024*1024))
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("VAULTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDerivedDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDerivedDefaults(cfg *Config) {
	if cfg.TempDir == "" {
		cfg.TempDir = cfg.DataDir + "/temp"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = cfg.DataDir + "/users.db"
	}
}

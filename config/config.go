// Package config loads process configuration from environment variables
// (spf13/viper), applies struct-tag defaults (creasty/defaults), and
// validates the result (go-playground/validator), mirroring the teacher's
// three-phase InitializeConfig pipeline in runtime/config.go.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// StoreBackend selects the Data Store implementation.
type StoreBackend string

const (
	BackendMemory   StoreBackend = "memory"
	BackendFile     StoreBackend = "file"
	BackendPostgres StoreBackend = "postgres"
)

// Config is the full process configuration, sourced from environment
// variables per spec.md §6 ("listener port... datastore backend
// selector, backend-specific host/credentials").
type Config struct {
	ListenAddr string `mapstructure:"listen_addr" default:":8080"`

	StoreBackend StoreBackend `mapstructure:"store_backend" default:"memory" validate:"oneof=memory file postgres"`
	StoreDir     string       `mapstructure:"store_dir" default:"./data"`
	PostgresDSN  string       `mapstructure:"postgres_dsn"`

	AuthToken string `mapstructure:"auth_token"`

	LoopParallelism int `mapstructure:"loop_parallelism" default:"4" validate:"gte=1,lte=64"`
}

var validate = validator.New()

// Load reads environment variables prefixed APIFLOW_ (e.g.
// APIFLOW_STORE_BACKEND), applies defaults, and validates. A missing
// required variable (e.g. postgres_dsn when store_backend=postgres)
// causes a startup failure with a precise diagnostic, per spec.md §6.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APIFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"listen_addr", "store_backend", "store_dir", "postgres_dsn",
		"auth_token", "loop_parallelism",
	} {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to apply defaults: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to read environment: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		slog.Error("config: validation failed", "error", err.Error())
		return nil, err
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	if cfg.StoreBackend == BackendPostgres && cfg.PostgresDSN == "" {
		return fmt.Errorf("config: APIFLOW_POSTGRES_DSN is required when store_backend=postgres")
	}
	return nil
}

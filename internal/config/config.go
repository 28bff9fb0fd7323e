// Package config provides application configuration with multi-source priority.
//
// Sources (highest to lowest priority):
//  1. Environment variables (DATABASE_URL, GEMINI_API_KEY, ARGONAUT_*)
//  2. Config file (~/.argonaut/config.yaml or ./config.yaml)
//  3. Default values
//
// Sensitive values (database password, API keys) are never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates a required model-provider API key is
	// missing. Not raised by Validate: a missing key degrades the service to
	// fallback-only mode instead of blocking startup.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidHistoryWindow indicates the session history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidMaxResultRows indicates the result row cap is out of range.
	ErrInvalidMaxResultRows = errors.New("invalid max result rows")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider"`   // "gemini" (default) or "ollama"
	ModelName string `mapstructure:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3"
	MaxTurns  int    `mapstructure:"max_turns"`  // maximum agentic loop turns

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host"`

	// Conversation configuration
	HistoryWindow int `mapstructure:"history_window"` // turns kept per session

	// Query execution configuration
	MaxResultRows int `mapstructure:"max_result_rows"` // cap on materialized rows

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Observability configuration. Tracing is disabled when OTLPEndpoint is empty.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".argonaut")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("max_turns", 5)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Conversation defaults
	v.SetDefault("history_window", 5)

	// Query execution defaults
	v.SetDefault("max_result_rows", 500)

	// PostgreSQL defaults (local development database)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "argonaut")
	v.SetDefault("postgres_password", "argonaut_dev_password")
	v.SetDefault("postgres_db_name", "argo")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Observability defaults
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "argonaut")
}

// bindEnvVariables binds environment overrides explicitly.
//
// NOTE: GEMINI_API_KEY is read directly by Genkit, not via viper; its
// presence is checked at agent setup.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "ARGONAUT_PROVIDER")
	mustBind("model_name", "ARGONAUT_MODEL_NAME")
	mustBind("ollama_host", "ARGONAUT_OLLAMA_HOST")
	mustBind("history_window", "ARGONAUT_HISTORY_WINDOW")
	mustBind("max_result_rows", "ARGONAUT_MAX_RESULT_ROWS")
	mustBind("otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	mustBind("service_name", "OTEL_SERVICE_NAME")
}

// Validate performs fail-fast validation of the loaded configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		// GEMINI_API_KEY is checked at agent setup, not here; its absence
		// puts the service in fallback-only mode rather than failing startup.
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host is empty", ErrInvalidProvider)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if c.HistoryWindow < 1 || c.HistoryWindow > 100 {
		return fmt.Errorf("%w: %d (expected 1-100)", ErrInvalidHistoryWindow, c.HistoryWindow)
	}
	if c.MaxResultRows < 1 || c.MaxResultRows > 100000 {
		return fmt.Errorf("%w: %d (expected 1-100000)", ErrInvalidMaxResultRows, c.MaxResultRows)
	}

	return nil
}

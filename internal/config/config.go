// Package config provides application configuration with multi-source
// priority: environment variables (SPRINAI_ prefix) override the config
// file (sprinai.yaml), which overrides built-in defaults.
//
// Validation is fail-fast: Load returns an error before any component is
// constructed if a value is out of range. Sentinel errors support
// errors.Is checks in callers and tests.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	ErrInvalidModelName    = errors.New("invalid model name")
	ErrInvalidTemperature  = errors.New("invalid temperature")
	ErrInvalidMaxTokens    = errors.New("invalid max output tokens")
	ErrInvalidTopP         = errors.New("invalid top_p")
	ErrInvalidTopK         = errors.New("invalid retrieval top_k")
	ErrInvalidMinScore     = errors.New("invalid retrieval min_score")
	ErrInvalidChunkSize    = errors.New("invalid chunk token size")
	ErrInvalidMaxChunks    = errors.New("invalid max chunks")
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")
	ErrInvalidMaskPattern  = errors.New("invalid masking pattern")
)

// DefaultEmbedderModel is the Gemini embedder used for chunk vectors.
const DefaultEmbedderModel = "gemini-embedding-001"

// ProfileConfig holds the tunable parameters of one generation profile.
type ProfileConfig struct {
	Model           string  `mapstructure:"model" json:"model"`
	Temperature     float32 `mapstructure:"temperature" json:"temperature"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens" json:"max_output_tokens"`
	TopP            float32 `mapstructure:"top_p" json:"top_p"`
}

// RetrievalConfig bounds the similarity search feeding generation.
type RetrievalConfig struct {
	TopK     int     `mapstructure:"top_k" json:"top_k"`
	MinScore float32 `mapstructure:"min_score" json:"min_score"`
}

// ChunkingConfig bounds per-document indexing cost.
type ChunkingConfig struct {
	ChunkTokenSize int `mapstructure:"chunk_token_size" json:"chunk_token_size"`
	MaxChunks      int `mapstructure:"max_chunks" json:"max_chunks"`
}

// Config stores application configuration.
// SECURITY: the PostgreSQL password must never be logged; see Redacted().
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Generation profiles
	Primary  ProfileConfig `mapstructure:"primary" json:"primary"`
	Fallback ProfileConfig `mapstructure:"fallback" json:"fallback"`
	Analyzer ProfileConfig `mapstructure:"analyzer" json:"analyzer"`

	// Embedding
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Retrieval
	Retrieval RetrievalConfig `mapstructure:"retrieval" json:"retrieval"`

	// Chunking
	Chunking ChunkingConfig `mapstructure:"chunking" json:"chunking"`

	// Extra masking patterns by category name, applied before the built-in
	// email/phone/national-id redactions.
	MaskPatterns map[string]string `mapstructure:"mask_patterns" json:"mask_patterns"`

	// Storage
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load reads configuration from defaults, sprinai.yaml (working directory)
// and SPRINAI_* environment variables, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("sprinai")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("SPRINAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("config file not found, using defaults", "config_name", "sprinai.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every default value. The profile numbers mirror the
// tuning the generation pipeline has been run with: a high-fidelity primary
// profile, a minimal-budget fallback, and a mid-size analyzer for
// summarization.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("primary.model", "gemini-2.5-pro")
	v.SetDefault("primary.temperature", 0.2)
	v.SetDefault("primary.max_output_tokens", 2500)
	v.SetDefault("primary.top_p", 0.9)

	v.SetDefault("fallback.model", "gemini-2.5-flash-lite")
	v.SetDefault("fallback.temperature", 0.5)
	v.SetDefault("fallback.max_output_tokens", 1000)
	v.SetDefault("fallback.top_p", 0.8)

	v.SetDefault("analyzer.model", "gemini-2.5-flash")
	v.SetDefault("analyzer.temperature", 0.5)
	v.SetDefault("analyzer.max_output_tokens", 1500)
	v.SetDefault("analyzer.top_p", 0.9)

	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("retrieval.top_k", 15)
	v.SetDefault("retrieval.min_score", 0.4)

	v.SetDefault("chunking.chunk_token_size", 200)
	v.SetDefault("chunking.max_chunks", 400)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "sprinai")
	v.SetDefault("postgres_password", "sprinai_dev_password")
	v.SetDefault("postgres_db_name", "sprinai")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// Validate performs range checks on every tunable value.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration is nil")
	}

	for _, p := range []struct {
		name string
		cfg  ProfileConfig
	}{
		{"primary", c.Primary},
		{"fallback", c.Fallback},
		{"analyzer", c.Analyzer},
	} {
		if strings.TrimSpace(p.cfg.Model) == "" {
			return fmt.Errorf("%w: %s profile model is empty", ErrInvalidModelName, p.name)
		}
		if p.cfg.Temperature < 0 || p.cfg.Temperature > 2 {
			return fmt.Errorf("%w: %s profile temperature %.2f not in [0, 2]", ErrInvalidTemperature, p.name, p.cfg.Temperature)
		}
		if p.cfg.MaxOutputTokens <= 0 {
			return fmt.Errorf("%w: %s profile max_output_tokens %d must be positive", ErrInvalidMaxTokens, p.name, p.cfg.MaxOutputTokens)
		}
		if p.cfg.TopP <= 0 || p.cfg.TopP > 1 {
			return fmt.Errorf("%w: %s profile top_p %.2f not in (0, 1]", ErrInvalidTopP, p.name, p.cfg.TopP)
		}
	}

	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidModelName)
	}

	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: top_k %d must be at least 1", ErrInvalidTopK, c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("%w: min_score %.2f not in [0, 1]", ErrInvalidMinScore, c.Retrieval.MinScore)
	}

	if c.Chunking.ChunkTokenSize <= 0 {
		return fmt.Errorf("%w: chunk_token_size %d must be positive", ErrInvalidChunkSize, c.Chunking.ChunkTokenSize)
	}
	if c.Chunking.MaxChunks <= 0 {
		return fmt.Errorf("%w: max_chunks %d must be positive", ErrInvalidMaxChunks, c.Chunking.MaxChunks)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d not in [1, 65535]", ErrInvalidPostgresPort, c.PostgresPort)
	}

	return nil
}

// PostgresURL returns the postgres:// connection URL used by both the
// migration runner and the pgx pool. The password is URL-escaped.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// Redacted returns a copy safe for logging: the password is masked.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.PostgresPassword != "" {
		cp.PostgresPassword = "***"
	}
	return cp
}

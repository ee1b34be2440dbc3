package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "SMRITI"
	DefaultConfigFile = "./config/settings.yaml"
)

type Config struct {
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Media      MediaConfig      `mapstructure:"media"`
}

type SummarizerConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type TranscriptConfig struct {
	Languages     []string      `mapstructure:"languages"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MediaConfig struct {
	Transcriber   string        `mapstructure:"transcriber"`
	Model         string        `mapstructure:"model"`
	ChunkDuration time.Duration `mapstructure:"chunk_duration"`
	Concurrency   int           `mapstructure:"concurrency"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads defaults, then the optional YAML file, then SMRITI_* env
// overrides. An empty path falls back to ./config/settings.yaml, which may
// be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	v.SetConfigFile(filepath.Clean(path))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound)
		if explicit || !missing {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("summarizer.provider", "openai")
	v.SetDefault("summarizer.model", "")
	v.SetDefault("summarizer.api_key", "")
	v.SetDefault("summarizer.max_tokens", 1000)
	v.SetDefault("summarizer.temperature", 0.3)

	v.SetDefault("transcript.languages", []string{"en"})
	v.SetDefault("transcript.timeout", "30s")
	v.SetDefault("transcript.rate_per_second", 2.0)
	v.SetDefault("transcript.cache_ttl", "10m")

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "smriti")
	v.SetDefault("storage.sqlite.path", "./data/smriti.db")
	v.SetDefault("storage.postgres.dsn", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5002)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("media.transcriber", "openai")
	v.SetDefault("media.model", "")
	v.SetDefault("media.chunk_duration", "1m")
	v.SetDefault("media.concurrency", 3)
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch cfg.Storage.Backend {
	case "mongo", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage backend: %q", cfg.Storage.Backend)
	}

	if cfg.Storage.Backend == "postgres" && cfg.Storage.Postgres.DSN == "" {
		return errors.New("storage.postgres.dsn is required for the postgres backend")
	}

	if cfg.Summarizer.Temperature < 0 || cfg.Summarizer.Temperature > 2 {
		return fmt.Errorf("summarizer temperature out of range: %v", cfg.Summarizer.Temperature)
	}

	// auto-correct
	if cfg.Summarizer.MaxTokens <= 0 {
		cfg.Summarizer.MaxTokens = 1000
	}
	if cfg.Media.Concurrency <= 0 {
		cfg.Media.Concurrency = 3
	}
	if cfg.Media.ChunkDuration <= 0 {
		cfg.Media.ChunkDuration = time.Minute
	}
	if len(cfg.Transcript.Languages) == 0 {
		cfg.Transcript.Languages = []string{"en"}
	}

	return nil
}

// ProviderAPIKey returns the configured key, or the provider's conventional
// environment variable.
func ProviderAPIKey(provider, configured string) string {
	if configured != "" {
		return configured
	}
	switch strings.ToLower(provider) {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

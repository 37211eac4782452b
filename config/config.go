package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Web       WebConfig       `mapstructure:"web"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig configures the intent-extraction and embedding provider.
type LLMConfig struct {
	Type            string        `mapstructure:"type"` // openai-compatible only for now
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// DatabasesConfig selects and configures the species store backend.
type DatabasesConfig struct {
	Backend  string         `mapstructure:"backend"` // "postgres" or "sqlite"
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// PostgresConfig holds connection settings for the relational backend.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection string, preferring an explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// SQLiteConfig holds the path of the embedded backend.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// WebConfig configures the external web collaborators.
type WebConfig struct {
	WikipediaBaseURL string        `mapstructure:"wikipedia_base_url"`
	GBIFBaseURL      string        `mapstructure:"gbif_base_url"`
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ImageLimit       int           `mapstructure:"image_limit"`
}

// CacheConfig configures the optional redis read-through cache for web lookups.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func (c CacheConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("cache.addr must be set when cache is enabled")
	}
	return nil
}

// RetrievalConfig bounds the structured-data stage queries.
type RetrievalConfig struct {
	SnippetK     int `mapstructure:"snippet_k"`
	HabitatLimit int `mapstructure:"habitat_limit"`
	ImageLimit   int `mapstructure:"image_limit"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort < 0 {
		return fmt.Errorf("telemetry.metrics_port must be >= 0")
	}
	return nil
}

// LoadConfig reads configuration from file and environment (UNDERTHREAT_*).
// It panics on unreadable or invalid configuration; missing files fall back
// to defaults so the embedded backend works out of the box.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("UNDERTHREAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}

	return &config
}

func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "20s")

	viper.SetDefault("server.address", ":10011")

	viper.SetDefault("llm.type", "openai")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.max_tokens", 900)
	viper.SetDefault("llm.timeout", "20s")

	viper.SetDefault("databases.backend", "sqlite")
	viper.SetDefault("databases.sqlite.path", "data/underthreat.db")

	viper.SetDefault("web.wikipedia_base_url", "https://en.wikipedia.org/api/rest_v1")
	viper.SetDefault("web.gbif_base_url", "https://api.gbif.org/v1")
	viper.SetDefault("web.user_agent", "under-threat-bot/0.1")
	viper.SetDefault("web.timeout", "20s")
	viper.SetDefault("web.image_limit", 12)

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.ttl", "1h")

	viper.SetDefault("retrieval.snippet_k", 12)
	viper.SetDefault("retrieval.habitat_limit", 15)
	viper.SetDefault("retrieval.image_limit", 8)

	viper.SetDefault("telemetry.enabled", true)
}

// Package config provides configuration loading and structs for the reviewdesk server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Cache    CacheConfig    `yaml:"cache"`
	LLM      LLMConfig      `yaml:"llm"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Import   ImportConfig   `yaml:"import"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds the relational store settings.
// Driver is "sqlite3" (DatabasePath is used) or "postgres" (DSN is used).
type StorageConfig struct {
	Driver           string        `yaml:"driver"`
	DatabasePath     string        `yaml:"database_path"`
	DSN              string        `yaml:"dsn"`
	MaxOpenConns     int           `yaml:"max_open_conns"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// SearchConfig holds search index settings.
type SearchConfig struct {
	IndexPath   string        `yaml:"index_path"`
	DefaultSize int           `yaml:"default_size"`
	MaxSize     int           `yaml:"max_size"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CacheConfig holds listing/aggregate cache settings.
// Backend is one of "memory", "redis" or "none".
type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	Namespace string        `yaml:"namespace"`
	TTL       time.Duration `yaml:"ttl"`
	Capacity  int           `yaml:"capacity"`
	Timeout   time.Duration `yaml:"timeout"`
	Redis     RedisConfig   `yaml:"redis"`
}

// RedisConfig holds redis connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LLMConfig selects and configures the inference provider.
// Provider is one of "openai", "deepinfra", "ollama", "anthropic" or "none".
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AnalysisConfig holds collaborative analysis settings.
type AnalysisConfig struct {
	Enabled       *bool         `yaml:"enabled"`
	MaxRounds     int           `yaml:"max_rounds"`
	Timeout       time.Duration `yaml:"timeout"`
	DigestLimit   int           `yaml:"digest_limit"`
	ExcerptLength int           `yaml:"excerpt_length"`
}

// EnabledOrDefault returns whether collaborative analysis is enabled; defaults to true when unset.
func (a *AnalysisConfig) EnabledOrDefault() bool {
	if a.Enabled != nil {
		return *a.Enabled
	}
	return true
}

// ImportConfig holds bulk import and inbox watching settings.
type ImportConfig struct {
	InboxDir   string   `yaml:"inbox_dir"`
	Workers    int      `yaml:"workers"`
	Extensions []string `yaml:"extensions"`
}

// Environment variables that override secrets from the config file.
const (
	EnvLLMAPIKey     = "REVIEWDESK_LLM_API_KEY"
	EnvStorageDSN    = "REVIEWDESK_STORAGE_DSN"
	EnvRedisPassword = "REVIEWDESK_REDIS_PASSWORD"
	EnvDebug         = "REVIEWDESK_DEBUG"
)

// Load reads and parses the config file at path, expands paths, applies environment
// overrides and defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Search.IndexPath = expandPath(cfg.Search.IndexPath, configDir)
	if cfg.Import.InboxDir != "" {
		cfg.Import.InboxDir = expandPath(cfg.Import.InboxDir, configDir)
	}

	return &cfg, nil
}

// ApplyEnv overrides secrets and flags from the environment when set.
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvLLMAPIKey); ok && v != "" {
		cfg.LLM.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvStorageDSN); ok && v != "" {
		cfg.Storage.DSN = v
	}
	if v, ok := os.LookupEnv(EnvRedisPassword); ok && v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v, ok := os.LookupEnv(EnvDebug); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

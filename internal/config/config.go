// Package config provides configuration loading and structs for the tenantrag server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig holds the data directory and snapshot backend.
type StoreConfig struct {
	DataDir     string `yaml:"data_dir"`
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	CatalogPath string `yaml:"catalog_path"`
}

// SnapshotDir is the root of per-tenant snapshot directories for the file backend.
func (s StoreConfig) SnapshotDir() string {
	return filepath.Join(s.DataDir, "vector_store")
}

// ChunkingConfig holds chunk size and overlap, in characters.
type ChunkingConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

// OverlapOrDefault returns the configured overlap; defaults to 200 when unset.
func (c *ChunkingConfig) OverlapOrDefault() int {
	if c.ChunkOverlap != nil {
		return *c.ChunkOverlap
	}
	return defaultChunkOverlap
}

// RetrievalConfig holds result-count defaults for retrieval requests.
type RetrievalConfig struct {
	DefaultResults int    `yaml:"default_results"`
	MaxResults     int    `yaml:"max_results"`
	Scorer         string `yaml:"scorer"` // overlap (default) or coverage
}

// WatchConfig holds inbox watch settings. Each subdirectory of Directory is a tenant inbox.
type WatchConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
	Recursive  *bool    `yaml:"recursive"`
	DebounceMs int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// LoggingConfig holds the log level override.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the config file at path. ${VAR} and ${VAR:-default} are expanded
// from the environment before parsing. Paths are expanded, defaults applied, and the
// result validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.DataDir = expandPath(cfg.Store.DataDir, configDir)
	cfg.Store.SQLitePath = expandPath(cfg.Store.SQLitePath, configDir)
	cfg.Store.CatalogPath = expandPath(cfg.Store.CatalogPath, configDir)
	if cfg.Watch.Directory != "" {
		cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied, rooted at dataDir.
func Default(dataDir string) *Config {
	cfg := &Config{Store: StoreConfig{DataDir: dataDir}}
	ApplyDefaults(cfg)
	return cfg
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store.backend must be \"file\" or \"sqlite\", got %q", c.Store.Backend)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if o := c.Chunking.OverlapOrDefault(); o < 0 {
		return fmt.Errorf("chunking.chunk_overlap must not be negative, got %d", o)
	}
	if c.Retrieval.DefaultResults <= 0 || c.Retrieval.DefaultResults > c.Retrieval.MaxResults {
		return fmt.Errorf("retrieval.default_results must be between 1 and max_results (%d), got %d",
			c.Retrieval.MaxResults, c.Retrieval.DefaultResults)
	}
	switch c.Retrieval.Scorer {
	case "overlap", "coverage":
	default:
		return fmt.Errorf("retrieval.scorer must be \"overlap\" or \"coverage\", got %q", c.Retrieval.Scorer)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. "~/" is the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
